package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"golang.org/x/time/rate"

	"br.com.tavares.disparo/internal/boot"
	"br.com.tavares.disparo/internal/handlers"
	"br.com.tavares.disparo/internal/service/dispatch"
	"br.com.tavares.disparo/internal/service/session"
	"br.com.tavares.disparo/internal/store"
	"br.com.tavares.disparo/internal/transport"
	"br.com.tavares.disparo/pkg/phone"
)

func main() {
	bootConfig, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	sessionStore, err := store.NewSessionStore(bootConfig)
	if err != nil {
		log.Fatalf("creating session store: %+v", err)
	}

	runlog, err := store.NewRunLog(bootConfig)
	if err != nil {
		log.Fatalf("creating run log: %+v", err)
	}
	defer runlog.Close()

	plan := phone.CountryPlan{
		CountryCode: bootConfig.WhatsApp.CountryCode,
		TrunkPrefix: "0",
		Suffix:      phone.DefaultSuffix,
	}

	// The transport is dialed per connection attempt; swap the DialFn to
	// bind a real network client.
	sessionService := session.New(bootConfig, sessionStore, transport.Loopback())
	dispatchService := dispatch.New(bootConfig, sessionService, plan, runlog)

	server := echo.New()
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("disparo"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(log.INFO)

	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     strings.Split(bootConfig.Server.Origins, ","),
		AllowHeaders:     headers,
		AllowCredentials: true,
	}))

	server.GET("/health", handlers.Health())

	api := server.Group("/api")
	api.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(bootConfig.RateLimit.PerSecond),
		Burst:     bootConfig.RateLimit.Burst,
		ExpiresIn: 3 * time.Minute,
	})))
	if secret := bootConfig.Server.AuthSecret; secret != "" {
		api.Use(handlers.BearerAuth(secret))
	}

	whatsapp := api.Group("/whatsapp")
	whatsapp.GET("/status", handlers.GetStatus(sessionService))
	whatsapp.POST("/connect", handlers.Connect(sessionService))
	whatsapp.POST("/disconnect", handlers.Disconnect(sessionService))
	whatsapp.POST("/reset", handlers.Reset(sessionService))
	whatsapp.POST("/send", handlers.SendMessage(dispatchService))
	whatsapp.POST("/send-bulk", handlers.SendBulk(dispatchService))
	whatsapp.GET("/dispatches", handlers.ListDispatches(runlog))

	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":" + bootConfig.Server.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(":" + bootConfig.Server.Port); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	// Bring the session up at boot; operators can still drive it through
	// the connect/disconnect endpoints.
	if err := sessionService.Open(context.Background()); err != nil {
		log.Errorf("initial connect: %+v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sessionService.Close(ctx); err != nil {
		log.Errorf("closing session: %+v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		server.Logger.Fatal(err)
	}
}

package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env     string `env:"ENV,default=dev"`
	DataDir string `env:"DATA_DIR,default=./data"`
	Server  struct {
		Port        string `env:"PORT,default=3000"`
		MetricsPort string `env:"METRICS_PORT,default=8081"`
		Origins     string `env:"ALLOWED_ORIGINS,default=*"`
		AuthSecret  string `env:"API_TOKEN_SECRET"`
	}
	WhatsApp struct {
		SessionDir       string `env:"WHATSAPP_SESSION_DIR,default=./sessions"`
		CountryCode      string `env:"WHATSAPP_COUNTRY_CODE,default=55"`
		MessageDelayMS   int    `env:"WHATSAPP_MESSAGE_DELAY,default=2000"`
		ReconnectDelayMS int    `env:"WHATSAPP_RECONNECT_DELAY,default=3000"`
	}
	RateLimit struct {
		PerSecond float64 `env:"RATE_LIMIT_PER_SECOND,default=1"`
		Burst     int     `env:"RATE_LIMIT_BURST,default=5"`
	}
}

func Load() (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

func (c *Config) DataDirectory() string {
	return c.DataDir
}

func (c *Config) SessionDirectory() string {
	return c.WhatsApp.SessionDir
}

// MessageDelay is the pause between consecutive messages in a bulk run.
func (c *Config) MessageDelay() time.Duration {
	return time.Duration(c.WhatsApp.MessageDelayMS) * time.Millisecond
}

// ReconnectDelay is how long the session waits before retrying after an
// involuntary disconnect.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.WhatsApp.ReconnectDelayMS) * time.Millisecond
}

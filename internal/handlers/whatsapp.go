package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"br.com.tavares.disparo/internal/model"
	"br.com.tavares.disparo/pkg/validate"
)

type SessionService interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Wipe() (int, error)
	Status() model.SessionInfo
}

type DispatchService interface {
	Dispatch(ctx context.Context, messages []model.OutboundMessage) (*model.DispatchResult, error)
	SendOne(ctx context.Context, number string, text string) (model.MessageID, error)
}

type RunLogReader interface {
	Recent(limit int) ([]model.DispatchRun, error)
}

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, response{Success: true, Message: message, Data: data})
}

func fail(c echo.Context, status int, message string, err error) error {
	r := response{Success: false, Error: message}
	if err != nil {
		r.Details = err.Error()
	}
	return c.JSON(status, r)
}

func invalid(c echo.Context, violations []validate.Violation) error {
	return c.JSON(http.StatusBadRequest, response{
		Success: false,
		Error:   "invalid request",
		Details: violations,
	})
}

func Health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "OK",
			"service":   "whatsapp bulk gateway",
			"timestamp": time.Now().UTC(),
		})
	}
}

func GetStatus(session SessionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		return ok(c, "", session.Status())
	}
}

func Connect(session SessionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := session.Open(c.Request().Context()); err != nil {
			return fail(c, http.StatusInternalServerError, "failed to initialize whatsapp session", err)
		}
		return ok(c, "whatsapp initialization started", map[string]interface{}{
			"status": "initializing",
		})
	}
}

func Disconnect(session SessionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := session.Close(c.Request().Context()); err != nil {
			return fail(c, http.StatusInternalServerError, "failed to disconnect whatsapp session", err)
		}
		return ok(c, "whatsapp disconnected", nil)
	}
}

// Reset disconnects and then wipes every credential file, forcing a fresh
// pairing on the next connect.
func Reset(session SessionService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := session.Close(c.Request().Context()); err != nil {
			return fail(c, http.StatusInternalServerError, "failed to disconnect whatsapp session", err)
		}
		removed, err := session.Wipe()
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to clear session files", err)
		}
		return ok(c, "whatsapp disconnected and session files cleared", map[string]interface{}{
			"filesRemoved": removed,
		})
	}
}

func SendMessage(dispatch DispatchService) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &model.SendRequest{}
		if err := c.Bind(req); err != nil {
			return fail(c, http.StatusBadRequest, "malformed request body", err)
		}
		if violations := validate.SendRequest(req); len(violations) > 0 {
			return invalid(c, violations)
		}

		id, err := dispatch.SendOne(c.Request().Context(), req.Number, req.Message)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to send message", err)
		}

		return ok(c, "message sent", map[string]interface{}{
			"messageId": id,
			"number":    req.Number,
			"timestamp": time.Now().UTC(),
		})
	}
}

func SendBulk(dispatch DispatchService) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &model.BulkSendRequest{}
		if err := c.Bind(req); err != nil {
			return fail(c, http.StatusBadRequest, "malformed request body", err)
		}
		if violations := validate.BulkSendRequest(req); len(violations) > 0 {
			return invalid(c, violations)
		}

		result, err := dispatch.Dispatch(c.Request().Context(), req.Outbound())
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to process bulk send", err)
		}

		return ok(c, "bulk send processed", result)
	}
}

func ListDispatches(runlog RunLogReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		runs, err := runlog.Recent(50)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "failed to list dispatch runs", err)
		}
		return ok(c, "", runs)
	}
}

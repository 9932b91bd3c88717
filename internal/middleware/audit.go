package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/logging"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Audit emits one structured record per request. Client errors log at warn and
// server errors at error; the verified signer is named when the route had one.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := auditStatus(c, err)
		log := logging.FromContext(c.UserContext(), logger)
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if signer, ok := c.Locals(auth.SignerLocal).(pda.Address); ok {
			attrs = append(attrs, slog.String("signer", signer.String()))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		log.LogAttrs(c.UserContext(), auditLevel(status), "request completed", attrs...)
		return err
	}
}

// auditStatus reports the status the error handler will write for err, since
// the response still holds the default when a handler returned an error.
func auditStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func auditLevel(status int) slog.Level {
	switch {
	case status >= fiber.StatusInternalServerError:
		return slog.LevelError
	case status >= fiber.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vaultkeep/vaultkeep/internal/logging"
)

const maxRequestIDLen = 128

// RequestID tags each request with an identifier, echoed in X-Request-ID and
// carried on the user context so services log under it. Client supplied ids
// are kept only when short and printable.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(fiber.HeaderXRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, reqID)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), reqID))
		return c.Next()
	}
}

// RequestIDFrom returns the identifier RequestID attached to ctx.
func RequestIDFrom(ctx context.Context) string {
	return logging.RequestID(ctx)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

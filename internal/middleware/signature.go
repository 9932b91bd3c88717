package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/auth"
)

// SignatureAuth verifies the ed25519 request signature and stores the signer
// under auth.SignerLocal.
func SignatureAuth(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := auth.Headers{
			Signer:         c.Get(auth.SignerHeader),
			Timestamp:      c.Get(auth.TimestampHeader),
			Signature:      c.Get(auth.SignatureHeader),
			IdempotencyKey: c.Get(auth.IdempotencyKeyHeader),
		}
		signer, err := verifier.Verify(c.Method(), c.Path(), headers, c.Body())
		if err != nil {
			if errors.Is(err, auth.ErrMalformed) {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		c.Locals(auth.SignerLocal, signer)
		return c.Next()
	}
}

// OperatorOnly guards routes with the bcrypt-checked operator key.
func OperatorOnly(gate *auth.OperatorGate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := gate.Check(c.Get(auth.OperatorKeyHeader)); err != nil {
			return fiber.NewError(http.StatusForbidden, err.Error())
		}
		return c.Next()
	}
}

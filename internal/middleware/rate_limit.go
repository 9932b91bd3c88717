package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// SignerRateLimit limits instructions per verified signer, falling back to the
// client IP, using Redis if available.
func SignerRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		who := c.IP()
		if signer, ok := c.Locals(auth.SignerLocal).(pda.Address); ok && !signer.IsZero() {
			who = signer.String()
		}
		key := "rl:signer:" + who
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

const (
	idempotencyPrefix = "vault:idempotency:v1:"
	inProgressMarker  = "__in_progress__"
	// unsignedScope holds keys for routes that run without a request signer,
	// such as the operator faucet.
	unsignedScope = "unsigned"

	idempotencyStoreTimeout = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency makes retried instructions safe: the first response for a
// verified signer and Idempotency-Key is stored in Redis and replayed for
// repeats. It must run after SignatureAuth so the scope is the verified
// signer rather than a client-supplied header.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(auth.IdempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := idempotencyPrefix + idempotencyScope(c) + ":" + key
		log := logger.With(slog.String("idempotency_key", key))

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyStoreTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return replay(ctx, c, cache, cacheKey, log)
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}

		payload, err := json.Marshal(capture(c))
		if err != nil {
			log.Error("failed to encode idempotent response", slog.Any("error", err))
			release(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			log.Error("failed to persist idempotent response", slog.Any("error", err))
			release(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}
		return nil
	}
}

func idempotencyScope(c *fiber.Ctx) string {
	if signer, ok := c.Locals(auth.SignerLocal).(pda.Address); ok && !signer.IsZero() {
		return signer.String()
	}
	return unsignedScope
}

// replay answers a request whose key another request already reserved.
func replay(ctx context.Context, c *fiber.Ctx, cache *redis.Client, cacheKey string, log *slog.Logger) error {
	cached, err := cache.Get(ctx, cacheKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// The holder failed and released the key between our SETNX and GET.
		return fiber.NewError(fiber.StatusConflict, "duplicate request, retry")
	case err != nil:
		log.Error("idempotency lookup failed", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
	case cached == inProgressMarker:
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		log.Warn("failed to decode stored idempotent response", slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	for header, value := range stored.Headers {
		c.Set(header, value)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

// capture snapshots the response, leaving out headers that belong to a
// single exchange.
func capture(c *fiber.Ctx) storedResponse {
	stored := storedResponse{
		Status:  c.Response().StatusCode(),
		Body:    string(c.Response().Body()),
		Headers: map[string]string{},
	}
	c.Response().Header.VisitAll(func(k, v []byte) {
		name := string(k)
		if strings.EqualFold(name, fiber.HeaderContentLength) || strings.EqualFold(name, fiber.HeaderXRequestID) {
			return
		}
		stored.Headers[name] = string(v)
	})
	return stored
}

// release drops a reservation so the client can retry after a failure.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey) // best effort
}

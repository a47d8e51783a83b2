package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency enforces idempotent semantics across unsafe HTTP methods by
// persisting responses in Redis keyed by the provided Idempotency-Key header.
// A retried deposit or transfer replays the stored response instead of moving
// money twice.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		switch method {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		cacheKey := idempotencyPrefix + key

		cached, err := cache.Get(ctx, cacheKey).Result()
		if err == nil {
			if cached == inProgressMarker {
				return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
			}

			var stored storedResponse
			if err := json.Unmarshal([]byte(cached), &stored); err != nil {
				logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			for name, value := range stored.Headers {
				c.Set(name, value)
			}
			return c.Status(stored.Status).SendString(stored.Body)
		}
		if err != redis.Nil {
			logger.Warn("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}

		if err := cache.Set(ctx, cacheKey, inProgressMarker, ttl).Err(); err != nil {
			logger.Warn("failed to reserve idempotency key", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}

		handlerErr := c.Next()
		if handlerErr != nil {
			// The request failed outright; allow a retry with the same key.
			if delErr := cache.Del(ctx, cacheKey).Err(); delErr != nil {
				logger.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
			return handlerErr
		}

		stored := storedResponse{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{fiber.HeaderContentType: string(c.Response().Header.ContentType())},
		}
		payload, err := json.Marshal(stored)
		if err != nil {
			logger.Warn("failed to encode idempotent response", slog.String("key", key), slog.Any("error", err))
			return nil
		}
		if err := cache.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Warn("failed to store idempotent response", slog.String("key", key), slog.Any("error", err))
		}
		return nil
	}
}

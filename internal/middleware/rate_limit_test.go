package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func rateLimitedApp(cache *redis.Client, maxPerMin int) *fiber.App {
	app := fiber.New()
	app.Post("/login", RateLimit(cache, maxPerMin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRateLimitBlocksAboveThreshold(t *testing.T) {
	srv := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	app := rateLimitedApp(cache, 3)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d within limit got %d", i, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("request over limit: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 over limit, got %d", resp.StatusCode)
	}
}

func TestRateLimitWindowResets(t *testing.T) {
	srv := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	app := rateLimitedApp(cache, 1)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first request: %v status %d", err, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil || resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second request: %v status %d", err, resp.StatusCode)
	}

	srv.FastForward(61 * time.Second)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("request after window: %v status %d", err, resp.StatusCode)
	}
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	app := rateLimitedApp(nil, 1)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d should pass without a cache, got %d", i, resp.StatusCode)
		}
	}
}

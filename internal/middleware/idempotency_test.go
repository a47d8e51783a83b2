package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kasa-pay/kasa_pay/internal/logging"
)

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func idempotentApp(t *testing.T, cache *redis.Client, calls *atomic.Int64) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Post("/pay", Idempotency(cache, time.Hour, logging.Discard()), func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"attempt": n})
	})
	return app
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	cache := testCache(t)
	var calls atomic.Int64
	app := idempotentApp(t, cache, &calls)

	first := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
	first.Header.Set("Idempotency-Key", "k-1")
	resp, err := app.Test(first)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first request status %d", resp.StatusCode)
	}
	firstBody, _ := io.ReadAll(resp.Body)

	retry := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
	retry.Header.Set("Idempotency-Key", "k-1")
	resp, err = app.Test(retry)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("retry status %d", resp.StatusCode)
	}
	retryBody, _ := io.ReadAll(resp.Body)

	if string(firstBody) != string(retryBody) {
		t.Fatalf("retry body %q differs from original %q", retryBody, firstBody)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("handler ran %d times, want 1", got)
	}
}

func TestIdempotencyRequiresKeyOnUnsafeMethods(t *testing.T) {
	cache := testCache(t)
	var calls atomic.Int64
	app := idempotentApp(t, cache, &calls)

	req := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.StatusCode)
	}
	if calls.Load() != 0 {
		t.Fatal("handler should not run without a key")
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	cache := testCache(t)
	app := fiber.New()
	app.Get("/pay", Idempotency(cache, time.Hour, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/pay", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected GET to pass through, got %d", resp.StatusCode)
	}
}

func TestIdempotencyConflictWhileInProgress(t *testing.T) {
	cache := testCache(t)
	var calls atomic.Int64
	app := idempotentApp(t, cache, &calls)

	if err := cache.Set(context.Background(), idempotencyPrefix+"busy", inProgressMarker, time.Hour).Err(); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
	req.Header.Set("Idempotency-Key", "busy")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 while in progress, got %d", resp.StatusCode)
	}
	if calls.Load() != 0 {
		t.Fatal("handler should not run while a duplicate is in flight")
	}
}

func TestIdempotencyReleasesKeyOnHandlerError(t *testing.T) {
	cache := testCache(t)
	app := fiber.New()
	var calls atomic.Int64
	app.Post("/pay", Idempotency(cache, time.Hour, logging.Discard()), func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusServiceUnavailable, "store busy")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("request %d status %d", i, resp.StatusCode)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("failed requests should both reach the handler, got %d", got)
	}
}

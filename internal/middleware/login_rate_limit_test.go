package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginRateLimitPerEmailAndEndpoint(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	limit := LoginRateLimit(cache, 2)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/api/auth/login", limit, ok)
	app.Post("/api/auth/verify-otp", limit, ok)

	send := func(path, email string) (int, string) {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode, resp.Header.Get(fiber.HeaderRetryAfter)
	}

	for i := 0; i < 2; i++ {
		if status, _ := send("/api/auth/login", "Ana@Example.com"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, status)
		}
	}
	status, retryAfter := send("/api/auth/login", "ana@example.com")
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", status)
	}
	if retryAfter != "60" {
		t.Fatalf("expected Retry-After 60, got %q", retryAfter)
	}

	if status, _ := send("/api/auth/verify-otp", "ana@example.com"); status != fiber.StatusOK {
		t.Fatalf("other endpoint must have its own budget, got %d", status)
	}
	if status, _ := send("/api/auth/login", "bob@example.com"); status != fiber.StatusOK {
		t.Fatalf("other email must have its own budget, got %d", status)
	}
}

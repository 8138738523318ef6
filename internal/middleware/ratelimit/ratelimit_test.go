package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testApp(tokensPerMinute int) (*fiber.App, *RateLimiter) {
	rl := New(Config{
		TokensPerMinute: tokensPerMinute,
		WindowDuration:  time.Hour, // effectively no refill during a test
		Logger:          zap.NewNop(),
	})

	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Post("/api/v1/chat", ok)
	app.Post("/api/v1/upload", ok)
	app.Post("/api/v1/diagnose", ok)
	app.Get("/api/v1/health", ok)
	return app, rl
}

func hit(t *testing.T, app *fiber.App, method, path string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimiter_ChatWithinBudget(t *testing.T) {
	app, rl := testApp(5)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		require.Equal(t, fiber.StatusOK, hit(t, app, "POST", "/api/v1/chat"))
	}
	require.Equal(t, fiber.StatusTooManyRequests, hit(t, app, "POST", "/api/v1/chat"))
}

func TestRateLimiter_UploadDrainsFaster(t *testing.T) {
	app, rl := testApp(5)
	defer rl.Stop()

	// One upload spends the whole 5-token budget.
	require.Equal(t, fiber.StatusOK, hit(t, app, "POST", "/api/v1/upload"))
	require.Equal(t, fiber.StatusTooManyRequests, hit(t, app, "POST", "/api/v1/chat"))
}

func TestRateLimiter_DiagnoseCost(t *testing.T) {
	app, rl := testApp(6)
	defer rl.Stop()

	require.Equal(t, fiber.StatusOK, hit(t, app, "POST", "/api/v1/diagnose"))
	require.Equal(t, fiber.StatusOK, hit(t, app, "POST", "/api/v1/diagnose"))
	require.Equal(t, fiber.StatusTooManyRequests, hit(t, app, "POST", "/api/v1/diagnose"))
}

func TestRateLimiter_HealthRoutesAreFree(t *testing.T) {
	app, rl := testApp(1)
	defer rl.Stop()

	require.Equal(t, fiber.StatusOK, hit(t, app, "POST", "/api/v1/chat"))
	require.Equal(t, fiber.StatusTooManyRequests, hit(t, app, "POST", "/api/v1/chat"))

	for i := 0; i < 10; i++ {
		require.Equal(t, fiber.StatusOK, hit(t, app, "GET", "/api/v1/health"))
	}
}

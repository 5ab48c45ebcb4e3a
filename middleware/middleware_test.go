package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestAdminAuthMiddleware(t *testing.T) {
	secret := []byte("secret")
	admin := services.NewAdminService(nil, nil, nil, nil, services.AdminCredentials{
		Email: "admin@test", Password: "pw", Secret: secret, TTL: time.Hour,
	})

	app := fiber.New()
	app.Get("/api/admin/ping", AdminAuthMiddleware(secret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("admin_email").(string))
	})

	call := func(auth string) int {
		req := httptest.NewRequest("GET", "/api/admin/ping", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	token, err := admin.IssueToken("admin@test")
	require.NoError(t, err)

	require.Equal(t, 401, call(""))
	require.Equal(t, 401, call(token))
	require.Equal(t, 401, call("Bearer garbage"))
	require.Equal(t, 200, call("Bearer "+token))

	// no secret configured rejects everything
	locked := fiber.New()
	locked.Get("/x", AdminAuthMiddleware(nil), func(c *fiber.Ctx) error { return c.SendStatus(200) })
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := locked.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", UserContextMiddleware(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    c.Locals(services.LocalUserID),
			"email": c.Locals(services.LocalUserEmail),
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User-ID", "acct_1")
	req.Header.Set("X-User-Email", "a@example.com")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(2)
	require.True(t, limiter.Allow("1.1.1.1"))
	require.True(t, limiter.Allow("1.1.1.1"))
	require.False(t, limiter.Allow("1.1.1.1"))
	require.True(t, limiter.Allow("2.2.2.2"))

	app := fiber.New()
	app.Post("/submit", NewIPRateLimiter(1).Handler(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	send := func(forwardedFor string) int {
		req := httptest.NewRequest("POST", "/submit", nil)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}
	require.Equal(t, 200, send("3.3.3.3"))
	// an untrusted client cannot pick a fresh bucket by rotating the header
	require.Equal(t, 429, send("4.4.4.4"))
	require.Equal(t, 429, send("5.5.5.5"))
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware("svc-token"), UserContextMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(services.LocalUserID).(string))
	})

	call := func(auth string) int {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("X-User-ID", "victim_account")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, 401, call(""))
	require.Equal(t, 401, call("Bearer wrong"))
	require.Equal(t, 401, call("Bearer svc-token-extra"))
	require.Equal(t, 200, call("Bearer svc-token"))
	require.Equal(t, 200, call("svc-token"))

	// unset token rejects everything, including an empty bearer
	locked := fiber.New()
	locked.Get("/me", GatewayAuthMiddleware(""), func(c *fiber.Ctx) error { return c.SendStatus(200) })
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := locked.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

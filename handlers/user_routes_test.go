package handlers

import (
	"net/http/httptest"
	"testing"

	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestUserRoutesRequireGatewayToken(t *testing.T) {
	app := fiber.New()
	SetupUserRoutes(app, services.NewAccountService(nil), "svc-token")

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/user/profile"},
		{"GET", "/api/user/dashboard"},
		{"GET", "/api/user/referrals"},
		{"POST", "/api/user/claim-followers"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("X-User-ID", "victim_account")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 401, resp.StatusCode, route.path)
	}
}

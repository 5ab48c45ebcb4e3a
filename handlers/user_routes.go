// handlers/user_routes.go
package handlers

import (
	"boostgram-api/middleware"
	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, accounts *services.AccountService, gatewayToken string) {
	// 🔐 Only the auth proxy may forward a user identity
	secured := app.Group("/api/user",
		middleware.GatewayAuthMiddleware(gatewayToken),
		middleware.UserContextMiddleware(),
	)

	secured.Post("/create", accounts.CreateUser)
	secured.Get("/profile", accounts.GetProfile)
	secured.Post("/profile", accounts.UpdateProfile)
	secured.Get("/dashboard", accounts.Dashboard)
	secured.Post("/claim-followers", accounts.ClaimFollowers)
	secured.Get("/referrals", accounts.Referrals)
}

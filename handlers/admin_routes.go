// handlers/admin_routes.go
package handlers

import (
	"boostgram-api/middleware"
	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, admin *services.AdminService, secret []byte) {
	// 🔓 Login issues the token every other admin route checks
	app.Post("/api/admin/login", admin.Login)

	// 🔐 JWT required
	secured := app.Group("/api/admin", middleware.AdminAuthMiddleware(secret))

	secured.Get("/stats", admin.GetStats)
	secured.Get("/orders", admin.ListOrders)
	secured.Get("/competitions", admin.ListCompetitions)
	secured.Get("/free-users", admin.ListFreeUsers)
	secured.Get("/completions", admin.ListCompletions)

	secured.Post("/mark-delivered", admin.MarkDeliveredHandler)

	secured.Get("/winners", admin.ListWinners)
	secured.Post("/winners", admin.CreateWinner)
	secured.Delete("/winners", admin.DeleteWinner)

	secured.Post("/archive", admin.TriggerArchive)
}

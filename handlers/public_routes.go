// handlers/public_routes.go
package handlers

import (
	"boostgram-api/middleware"
	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
)

// PublicServices groups the handlers behind the unauthenticated /api routes.
type PublicServices struct {
	Blocking *services.BlockingService
	Leads    *services.LeadService
	Postback *services.PostbackService
	Payments *services.PaymentService
	Profiles *services.ProfileService
}

func SetupPublicRoutes(app *fiber.App, svc PublicServices, limiter *middleware.IPRateLimiter) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Get("/packages", services.ListPackages)

	// 🔓 Lead capture, throttled per IP
	throttle := limiter.Handler()
	api.Post("/check-blocking", throttle, svc.Blocking.CheckBlocking)
	api.Post("/free-followers/submit", throttle, svc.Leads.SubmitFreeFollowers)
	api.Post("/competition/submit", throttle, svc.Leads.SubmitCompetitionEntry)
	api.Post("/instagram/profile", throttle, svc.Profiles.LookupProfile)

	// Ad network postbacks
	api.Get("/postback", svc.Postback.HandlePostback)
	api.Post("/postback", svc.Postback.HandlePostback)

	api.Post("/paypal/create-order", svc.Payments.CreateOrder)
	api.Post("/paypal/capture-order", svc.Payments.CaptureOrder)
}

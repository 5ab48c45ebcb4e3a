// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware reads the identity the auth proxy puts in
// X-User-ID / X-User-Email. It must run after GatewayAuthMiddleware.
// Requests without an id are rejected.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		c.Locals(services.LocalUserID, userID)
		c.Locals(services.LocalUserEmail, strings.TrimSpace(c.Get("X-User-Email")))
		return c.Next()
	}
}

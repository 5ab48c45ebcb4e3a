// middleware/admin_auth.go
package middleware

import (
	"log"
	"strings"

	"boostgram-api/services"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware requires a valid admin JWT in "Authorization: Bearer <token>".
func AdminAuthMiddleware(secret []byte) fiber.Handler {
	if len(secret) == 0 {
		log.Println("⚠️ [ADMIN_AUTH] ADMIN_JWT_SECRET is not set, every admin request will be rejected")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if authHeader == "" || token == "" || token == authHeader {
			log.Printf("🚫 [ADMIN_AUTH] Missing bearer token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
		}

		claims, err := services.ParseAdminToken(secret, token, nil)
		if err != nil {
			log.Printf("❌ [ADMIN_AUTH] Invalid token for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
		}

		c.Locals("admin_email", claims.Subject)
		return c.Next()
	}
}

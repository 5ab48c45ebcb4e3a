// utils/request.go
package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// NormalizeUsername strips a leading "@" and surrounding whitespace.
func NormalizeUsername(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "@")
	return strings.TrimSpace(u)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then fallback.
func ClientIP(c *fiber.Ctx, fallback string) string {
	if fwd := c.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if fallback != "" {
		return fallback
	}
	return "unknown"
}

// Page is a parsed page/limit pair.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// ParsePage reads ?page= and ?limit= (1..100, default 50).
func ParsePage(c *fiber.Ctx) Page {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	return Page{Page: page, Limit: limit}
}

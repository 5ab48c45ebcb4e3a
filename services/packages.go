// services/packages.go
package services

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// Package is one purchasable follower bundle.
type Package struct {
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Followers int             `json:"followers"`
	Price     decimal.Decimal `json:"price"`
}

func newPackage(name, kind string, followers int, price string) Package {
	return Package{
		Slug:      slug.Make(name),
		Name:      name,
		Type:      kind,
		Followers: followers,
		Price:     decimal.RequireFromString(price),
	}
}

// catalogCurrency is the currency every catalog price is listed in.
const catalogCurrency = "USD"

// Catalog is the static package list shown on the packages page.
var Catalog = []Package{
	newPackage("Starter 2.5K", "premium", 2500, "9.99"),
	newPackage("Growth 5K", "premium", 5000, "17.99"),
	newPackage("Pro 10K", "premium", 10000, "29.99"),
	newPackage("Business 25K", "business", 25000, "64.99"),
	newPackage("Business 50K", "business", 50000, "119.99"),
}

// FindPackage matches a package by slug or display name.
func FindPackage(nameOrSlug string) (Package, bool) {
	key := slug.Make(strings.TrimSpace(nameOrSlug))
	for _, p := range Catalog {
		if p.Slug == key {
			return p, true
		}
	}
	return Package{}, false
}

// ListPackages handles GET /api/packages.
func ListPackages(c *fiber.Ctx) error {
	return c.JSON(Catalog)
}

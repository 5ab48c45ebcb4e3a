// config/config.go
package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, read from the environment
// (optionally seeded from a .env file).
type Config struct {
	Port           int
	DatabaseURL    string
	AllowedOrigins string
	BaseURL        string

	AdminEmail     string
	AdminPassword  string
	AdminJWTSecret string
	AdminTokenTTL  time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	PayPalClientID string
	PayPalSecret   string
	PayPalMode     string

	CompletionStore string // "db" or "file"
	CompletionFile  string
	BlockingPolicy  string // "rolling" or "calendar-day"

	ProfileServiceURL string
	ProfileCacheTTL   time.Duration
	RedisURL          string

	FulfillmentURL      string
	FulfillmentToken    string
	FulfillmentInterval time.Duration

	CloudflareAccountID string
	R2AccessKeyID       string
	R2AccessKeySecret   string
	R2Bucket            string
	CDNBaseURL          string

	SubmitRatePerMinute int
	TrustedProxies      []string

	GatewayServiceToken string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 5200)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("ADMIN_TOKEN_TTL", "12h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("PAYPAL_MODE", "sandbox")
	v.SetDefault("COMPLETION_STORE", "db")
	v.SetDefault("COMPLETION_FILE", "data/completions.json")
	v.SetDefault("BLOCKING_POLICY", "rolling")
	v.SetDefault("PROFILE_CACHE_TTL", "10m")
	v.SetDefault("FULFILLMENT_INTERVAL", "30s")
	v.SetDefault("SUBMIT_RATE_PER_MIN", 30)

	cfg := &Config{
		Port:           v.GetInt("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		AllowedOrigins: normalizeOrigins(v.GetString("ALLOWED_ORIGINS")),
		BaseURL:        strings.TrimRight(v.GetString("BASE_URL"), "/"),

		AdminEmail:     v.GetString("ADMIN_EMAIL"),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
		AdminJWTSecret: v.GetString("ADMIN_JWT_SECRET"),
		AdminTokenTTL:  v.GetDuration("ADMIN_TOKEN_TTL"),

		SMTPHost: v.GetString("SMTP_HOST"),
		SMTPPort: v.GetInt("SMTP_PORT"),
		SMTPUser: v.GetString("SMTP_USER"),
		SMTPPass: v.GetString("SMTP_PASS"),
		SMTPFrom: v.GetString("SMTP_FROM"),

		PayPalClientID: v.GetString("PAYPAL_CLIENT_ID"),
		PayPalSecret:   v.GetString("PAYPAL_CLIENT_SECRET"),
		PayPalMode:     v.GetString("PAYPAL_MODE"),

		CompletionStore: v.GetString("COMPLETION_STORE"),
		CompletionFile:  v.GetString("COMPLETION_FILE"),
		BlockingPolicy:  v.GetString("BLOCKING_POLICY"),

		ProfileServiceURL: v.GetString("PROFILE_SERVICE_URL"),
		ProfileCacheTTL:   v.GetDuration("PROFILE_CACHE_TTL"),
		RedisURL:          v.GetString("REDIS_URL"),

		FulfillmentURL:      v.GetString("FULFILLMENT_URL"),
		FulfillmentToken:    v.GetString("FULFILLMENT_TOKEN"),
		FulfillmentInterval: v.GetDuration("FULFILLMENT_INTERVAL"),

		CloudflareAccountID: v.GetString("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:       v.GetString("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret:   v.GetString("R2_ACCESS_KEY_SECRET"),
		R2Bucket:            v.GetString("R2_BUCKET_NAME"),
		CDNBaseURL:          v.GetString("CDN_BASE_URL"),

		SubmitRatePerMinute: v.GetInt("SUBMIT_RATE_PER_MIN"),
		TrustedProxies:      splitList(v.GetString("TRUSTED_PROXIES")),

		GatewayServiceToken: v.GetString("GATEWAY_SERVICE_TOKEN"),
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}
	return cfg
}

// normalizeOrigins trims each comma-separated origin for fiber's CORS config.
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	for i, origin := range parts {
		parts[i] = strings.TrimSpace(origin)
	}
	return strings.Join(parts, ",")
}

// splitList turns a comma-separated value into its non-empty trimmed parts.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// services/profile_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ProfileCache stores raw profile JSON by key.
type ProfileCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisProfileCache is a ProfileCache backed by Redis.
type RedisProfileCache struct {
	Client *redis.Client
}

// NewRedisProfileCache connects using a redis:// URL.
func NewRedisProfileCache(ctx context.Context, redisURL string) (*RedisProfileCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisProfileCache{Client: client}, nil
}

func (c *RedisProfileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// ProfileService proxies Instagram profile lookups to the scraper service.
type ProfileService struct {
	BaseURL string
	Client  *http.Client
	Cache   ProfileCache
	TTL     time.Duration
}

func NewProfileService(baseURL string, cache ProfileCache, ttl time.Duration) *ProfileService {
	return &ProfileService{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  utils.HTTPClient,
		Cache:   cache,
		TTL:     ttl,
	}
}

func profileCacheKey(username string) string {
	return "profile:" + strings.ToLower(username)
}

// Lookup returns the raw profile JSON for username.
func (s *ProfileService) Lookup(ctx context.Context, username string) (json.RawMessage, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, newUserError(ErrValidation, "Invalid username")
	}
	if s.BaseURL == "" {
		return nil, newUserError(ErrUnavailable, "Profile lookup is not configured")
	}

	key := profileCacheKey(username)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(ctx, key); err != nil {
			log.Printf("⚠️ [PROFILE] cache read for @%s failed: %v", username, err)
		} else if ok {
			return json.RawMessage(cached), nil
		}
	}

	endpoint := fmt.Sprintf("%s/profiles/%s", s.BaseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newUserError(ErrNotFound, "Profile not found")
	case resp.StatusCode != http.StatusOK:
		log.Printf("[PROFILE] proxy returned %d for @%s: %s", resp.StatusCode, username, string(body))
		return nil, fmt.Errorf("%w: profile proxy returned %d", ErrUpstream, resp.StatusCode)
	case !json.Valid(body):
		return nil, fmt.Errorf("%w: profile proxy returned invalid JSON", ErrUpstream)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, body, s.TTL); err != nil {
			log.Printf("⚠️ [PROFILE] cache write for @%s failed: %v", username, err)
		}
	}
	return json.RawMessage(body), nil
}

// LookupProfile handles POST /api/instagram/profile.
func (s *ProfileService) LookupProfile(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username is required"})
	}

	profile, err := s.Lookup(c.UserContext(), req.Username)
	if err != nil {
		if StatusFor(err) >= fiber.StatusInternalServerError {
			log.Printf("❌ [PROFILE] lookup @%s: %v", req.Username, err)
		}
		return respondError(c, err, "error", "Failed to fetch profile")
	}
	return c.JSON(fiber.Map{"profile": profile})
}

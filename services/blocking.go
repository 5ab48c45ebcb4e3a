// services/blocking.go
package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	BlockTypeFreeFollowers = "free-followers"
	BlockTypeCompetition   = "competition"

	BlockingPolicyRolling     = "rolling"
	BlockingPolicyCalendarDay = "calendar-day"

	blockWindow = 24 * time.Hour
)

// countryUTCOffsets is a coarse country -> UTC offset table (hours) used by
// the calendar-day policy. Unknown countries fall back to UTC.
var countryUTCOffsets = map[string]int{
	"US": -5,
	"CA": -5,
	"GB": 0,
	"DE": 1,
	"FR": 1,
	"AU": 11,
	"JP": 9,
}

type BlockingRequest struct {
	Type              string `json:"type"`
	InstagramUsername string `json:"instagramUsername"`
	IPAddress         string `json:"ipAddress"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	CountryCode       string `json:"countryCode"`
}

type BlockingResult struct {
	IsBlocked      bool       `json:"isBlocked"`
	Reason         string     `json:"reason,omitempty"`
	LastCompletion *time.Time `json:"lastCompletion,omitempty"`
	HoursRemaining *int       `json:"hoursRemaining,omitempty"`
}

// BlockingService decides whether a visitor may start another offer.
// The check is advisory: two concurrent requests can both pass before either
// completion is recorded.
type BlockingService struct {
	Store  CompletionStore
	Policy string
	Now    func() time.Time
}

func NewBlockingService(store CompletionStore, policy string) *BlockingService {
	if policy != BlockingPolicyCalendarDay {
		policy = BlockingPolicyRolling
	}
	return &BlockingService{Store: store, Policy: policy, Now: time.Now}
}

func (s *BlockingService) Check(ctx context.Context, req BlockingRequest) (BlockingResult, error) {
	username := utils.NormalizeUsername(req.InstagramUsername)
	if req.Type == "" || username == "" {
		return BlockingResult{}, newUserError(ErrValidation, "Missing required parameters")
	}

	switch req.Type {
	case BlockTypeFreeFollowers:
		return s.checkFreeFollowers(ctx, username, req)
	case BlockTypeCompetition:
		return s.checkCompetition(ctx, username)
	default:
		return BlockingResult{}, newUserError(ErrValidation, `Invalid type. Must be "free-followers" or "competition"`)
	}
}

func (s *BlockingService) checkFreeFollowers(ctx context.Context, username string, req BlockingRequest) (BlockingResult, error) {
	now := s.Now()

	since := now.Add(-blockWindow)
	if s.Policy == BlockingPolicyCalendarDay {
		// A local calendar day can start up to 24h + max offset before now.
		since = now.Add(-2 * blockWindow)
	}

	recent, err := s.Store.FindRecent(ctx, username, req.IPAddress, req.DeviceFingerprint, since)
	if err != nil {
		return BlockingResult{}, fmt.Errorf("find recent completions: %w", err)
	}
	if len(recent) == 0 {
		return BlockingResult{IsBlocked: false}, nil
	}
	last := recent[0].CompletionTime

	var hours int
	if s.Policy == BlockingPolicyCalendarDay {
		offset := countryUTCOffsets[strings.ToUpper(req.CountryCode)]
		if !sameLocalDay(last, now, offset) {
			return BlockingResult{IsBlocked: false}, nil
		}
		hours = hoursUntilLocalMidnight(now, offset)
	} else {
		hours = rollingHoursRemaining(last, now)
	}

	return BlockingResult{
		IsBlocked:      true,
		Reason:         "Daily limit reached",
		LastCompletion: &last,
		HoursRemaining: &hours,
	}, nil
}

func (s *BlockingService) checkCompetition(ctx context.Context, username string) (BlockingResult, error) {
	completions, err := s.Store.FindByUsername(ctx, username)
	if err != nil {
		return BlockingResult{}, fmt.Errorf("find completions by username: %w", err)
	}
	if len(completions) == 0 {
		return BlockingResult{IsBlocked: false}, nil
	}
	last := completions[0].CompletionTime
	return BlockingResult{
		IsBlocked:      true,
		Reason:         "Username already completed an offer",
		LastCompletion: &last,
	}, nil
}

// rollingHoursRemaining is 24 - floor(hours since last), clamped to [0, 24].
func rollingHoursRemaining(last, now time.Time) int {
	elapsed := int(math.Floor(now.Sub(last).Hours()))
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := 24 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func sameLocalDay(a, b time.Time, offsetHours int) bool {
	zone := time.FixedZone("", offsetHours*3600)
	ay, am, ad := a.In(zone).Date()
	by, bm, bd := b.In(zone).Date()
	return ay == by && am == bm && ad == bd
}

func hoursUntilLocalMidnight(now time.Time, offsetHours int) int {
	zone := time.FixedZone("", offsetHours*3600)
	local := now.In(zone)
	y, m, d := local.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, zone)
	return int(math.Ceil(next.Sub(local).Hours()))
}

// CheckBlocking handles POST /api/check-blocking.
func (s *BlockingService) CheckBlocking(c *fiber.Ctx) error {
	var req BlockingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.IPAddress = utils.ClientIP(c, req.IPAddress)
	if req.CountryCode == "" {
		req.CountryCode = "US"
	}

	result, err := s.Check(c.UserContext(), req)
	if err != nil {
		if StatusFor(err) == fiber.StatusInternalServerError {
			log.Printf("❌ [BLOCKING] check failed for %q: %v", req.InstagramUsername, err)
		}
		return respondError(c, err, "error", "Internal server error")
	}
	return c.JSON(result)
}

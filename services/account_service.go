// services/account_service.go
package services

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"boostgram-api/models"
	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Locals keys set by the user context middleware.
const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
)

const (
	referralReward     = 10
	freeClaimCooldown  = 24 * time.Hour
	freeClaimPackage   = "Free Daily Followers"
	referralCodePrefix = "INSTA-"
)

type AccountService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db, Now: time.Now}
}

func accountFrom(c *fiber.Ctx) (string, string) {
	id, _ := c.Locals(LocalUserID).(string)
	email, _ := c.Locals(LocalUserEmail).(string)
	return id, email
}

func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referralCodePrefix + strings.ToUpper(raw[:6])
}

func (s *AccountService) findUser(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newUserError(ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser creates the local user on first call and returns it.
// created is false when the user already existed.
func (s *AccountService) EnsureUser(ctx context.Context, accountID, email, referredBy string) (user *models.User, created bool, err error) {
	existing, err := s.findUser(ctx, accountID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	referredBy = strings.ToUpper(strings.TrimSpace(referredBy))
	user = &models.User{
		AccountID:        accountID,
		Email:            utils.NormalizeEmail(email),
		ReferralCode:     newReferralCode(),
		IsActive:         true,
		SubscriptionTier: "free",
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referrer *models.User
		if referredBy != "" {
			var r models.User
			err := tx.Where("referral_code = ? AND account_id <> ?", referredBy, accountID).First(&r).Error
			switch {
			case err == nil:
				referrer = &r
				user.ReferredBy = referredBy
			case errors.Is(err, gorm.ErrRecordNotFound):
				log.Printf("⚠️ [ACCOUNT] unknown referral code %q for %s", referredBy, accountID)
			default:
				return err
			}
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if referrer == nil {
			return nil
		}

		if err := tx.Create(&models.Referral{
			ReferrerID:      referrer.AccountID,
			ReferredUserID:  accountID,
			ReferralCode:    referredBy,
			Status:          models.ReferralStatusActive,
			FollowersEarned: referralReward,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", referrer.ID).
			Update("referral_earnings", gorm.Expr("referral_earnings + ?", referralReward)).Error
	})
	if err != nil {
		return nil, false, err
	}
	log.Printf("👤 [ACCOUNT] created user %s (%s)", accountID, user.ReferralCode)
	return user, true, nil
}

// CreateUser handles POST /api/user/create.
func (s *AccountService) CreateUser(c *fiber.Ctx) error {
	accountID, email := accountFrom(c)
	var req struct {
		ReferredBy string `json:"referredBy"`
	}
	_ = c.BodyParser(&req)

	user, created, err := s.EnsureUser(c.UserContext(), accountID, email, req.ReferredBy)
	if err != nil {
		log.Printf("❌ [ACCOUNT] create %s: %v", accountID, err)
		return respondError(c, err, "error", "Internal server error")
	}
	return c.JSON(fiber.Map{"user": user, "created": created})
}

// GetProfile handles GET /api/user/profile.
func (s *AccountService) GetProfile(c *fiber.Ctx) error {
	accountID, _ := accountFrom(c)
	user, err := s.findUser(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "error", "Internal server error")
	}
	return c.JSON(fiber.Map{"user": user})
}

// UpdateProfile handles POST /api/user/profile. Empty fields are left untouched.
func (s *AccountService) UpdateProfile(c *fiber.Ctx) error {
	accountID, _ := accountFrom(c)
	var req struct {
		InstagramUsername string `json:"instagramUsername"`
		FirstName         string `json:"firstName"`
		LastName          string `json:"lastName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if u := utils.NormalizeUsername(req.InstagramUsername); u != "" {
		updates["instagram_username"] = u
	}
	if v := strings.TrimSpace(req.FirstName); v != "" {
		updates["first_name"] = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" {
		updates["last_name"] = v
	}

	user, err := s.findUser(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "error", "Internal server error")
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
			log.Printf("❌ [ACCOUNT] update profile %s: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// --- Free claim ---

// ClaimWindow describes when the next free claim is possible.
type ClaimWindow struct {
	TimeRemaining int        `json:"timeRemaining"` // hours
	CanClaim      bool       `json:"canClaim"`
	LastClaimDate *time.Time `json:"lastClaimDate"`
}

func claimWindow(last *time.Time, now time.Time) ClaimWindow {
	w := ClaimWindow{CanClaim: true, LastClaimDate: last}
	if last == nil {
		return w
	}
	left := last.Add(freeClaimCooldown).Sub(now)
	if left > 0 {
		// hours are floored for display; the last hour still shows 0
		w.TimeRemaining = int(left.Hours())
		w.CanClaim = false
	}
	return w
}

// ClaimFree records a free daily claim as a processing order.
func (s *AccountService) ClaimFree(ctx context.Context, accountID, instagramUsername string) (*models.Order, error) {
	username := utils.NormalizeUsername(instagramUsername)
	if username == "" {
		return nil, newUserError(ErrValidation, "Instagram username is required")
	}
	user, err := s.findUser(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if user.LastFreeFollowersClaim != nil {
		if since := now.Sub(*user.LastFreeFollowersClaim); since < freeClaimCooldown {
			hours := int(math.Ceil((freeClaimCooldown - since).Hours()))
			return nil, &ClaimTooSoonError{HoursRemaining: hours}
		}
	}

	order := &models.Order{
		UserID:            user.ID,
		AccountID:         accountID,
		Type:              models.OrderTypeFree,
		PackageName:       freeClaimPackage,
		FollowersAmount:   FreeFollowersAmount,
		Status:            models.StatusProcessing,
		InstagramUsername: username,
		Email:             user.Email,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// concurrent claims: only one update can see an expired window
		res := tx.Model(&models.User{}).
			Where("id = ? AND (last_free_followers_claim IS NULL OR last_free_followers_claim <= ?)",
				user.ID, now.Add(-freeClaimCooldown)).
			Updates(map[string]interface{}{
				"last_free_followers_claim": now,
				"instagram_username":        username,
				"total_followers_received":  gorm.Expr("total_followers_received + ?", FreeFollowersAmount),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ClaimTooSoonError{HoursRemaining: int(freeClaimCooldown.Hours())}
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🎁 [ACCOUNT] %s claimed %d free followers for @%s", accountID, FreeFollowersAmount, username)
	return order, nil
}

// ClaimTooSoonError is returned when the 24h claim window has not elapsed.
type ClaimTooSoonError struct {
	HoursRemaining int
}

func (e *ClaimTooSoonError) Error() string { return "You must wait 24 hours between claims" }

// ClaimFollowers handles POST /api/user/claim-followers.
func (s *AccountService) ClaimFollowers(c *fiber.Ctx) error {
	accountID, _ := accountFrom(c)
	var req struct {
		InstagramUsername string `json:"instagramUsername"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	order, err := s.ClaimFree(c.UserContext(), accountID, req.InstagramUsername)
	var tooSoon *ClaimTooSoonError
	switch {
	case errors.As(err, &tooSoon):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":         tooSoon.Error(),
			"timeRemaining": tooSoon.HoursRemaining,
		})
	case err != nil:
		if StatusFor(err) == fiber.StatusInternalServerError {
			log.Printf("❌ [ACCOUNT] claim %s: %v", accountID, err)
		}
		return respondError(c, err, "error", "Internal server error")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Free followers claimed successfully! They will be delivered within 24 hours.",
		"order": fiber.Map{
			"id":              order.ID,
			"followersAmount": order.FollowersAmount,
			"status":          order.Status,
		},
	})
}

// --- Dashboard & referrals ---

type referralView struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	JoinDate        string `json:"joinDate"`
	Status          string `json:"status"`
	FollowersEarned int    `json:"followersEarned"`
}

func (s *AccountService) referralsOf(ctx context.Context, accountID string) ([]referralView, error) {
	var refs []models.Referral
	if err := s.DB.WithContext(ctx).Where("referrer_id = ?", accountID).
		Order("created_at DESC").Find(&refs).Error; err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []referralView{}, nil
	}

	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ReferredUserID
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("account_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byAccount := make(map[string]models.User, len(users))
	for _, u := range users {
		byAccount[u.AccountID] = u
	}

	out := make([]referralView, len(refs))
	for i, r := range refs {
		u := byAccount[r.ReferredUserID]
		name := u.InstagramUsername
		if name == "" {
			name = u.FirstName
		}
		if name == "" {
			name = "Unknown"
		}
		out[i] = referralView{
			ID:              r.ID,
			Username:        name,
			Email:           u.Email,
			JoinDate:        r.CreatedAt.Format("2006-01-02"),
			Status:          r.Status,
			FollowersEarned: r.FollowersEarned,
		}
	}
	return out, nil
}

// Referrals handles GET /api/user/referrals.
func (s *AccountService) Referrals(c *fiber.Ctx) error {
	accountID, _ := accountFrom(c)
	refs, err := s.referralsOf(c.UserContext(), accountID)
	if err != nil {
		log.Printf("❌ [ACCOUNT] referrals %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	earned := 0
	for _, r := range refs {
		earned += r.FollowersEarned
	}
	return c.JSON(fiber.Map{
		"referrals":      refs,
		"totalReferrals": len(refs),
		"totalEarnings":  earned,
	})
}

type monthlyFollowers struct {
	Type  string
	Total int
}

// Dashboard handles GET /api/user/dashboard.
func (s *AccountService) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	accountID, _ := accountFrom(c)
	user, err := s.findUser(ctx, accountID)
	if err != nil {
		return respondError(c, err, "error", "Internal server error")
	}

	now := s.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var monthly []monthlyFollowers
	err = s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("type, SUM(followers_amount) AS total").
		Where("account_id = ? AND status = ? AND created_at >= ?", accountID, models.StatusCompleted, monthStart).
		Group("type").
		Scan(&monthly).Error
	if err != nil {
		log.Printf("❌ [ACCOUNT] dashboard stats %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	var freeMonth, paidMonth int
	for _, m := range monthly {
		if m.Type == models.OrderTypeFree {
			freeMonth += m.Total
		} else {
			paidMonth += m.Total
		}
	}

	var recent []models.Order
	if err := s.DB.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at DESC").Limit(10).Find(&recent).Error; err != nil {
		log.Printf("❌ [ACCOUNT] dashboard orders %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	orders := make([]fiber.Map, len(recent))
	for i, o := range recent {
		orders[i] = fiber.Map{
			"id":       o.ID,
			"type":     o.Type,
			"amount":   o.FollowersAmount,
			"status":   o.Status,
			"date":     o.CreatedAt.Format("2006-01-02"),
			"username": o.InstagramUsername,
		}
	}

	refs, err := s.referralsOf(ctx, accountID)
	if err != nil {
		log.Printf("❌ [ACCOUNT] dashboard referrals %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"firstName":         user.FirstName,
			"referralCode":      user.ReferralCode,
			"instagramUsername": user.InstagramUsername,
		},
		"stats": fiber.Map{
			"totalFollowersReceived": user.TotalFollowersReceived,
			"freeFollowersThisMonth": freeMonth,
			"paidFollowersThisMonth": paidMonth,
			"referrals":              len(refs),
			"referralEarnings":       user.ReferralEarnings,
		},
		"freeFollowers": claimWindow(user.LastFreeFollowersClaim, now),
		"recentOrders":  orders,
		"referrals":     refs,
	})
}

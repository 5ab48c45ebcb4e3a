// services/admin_service.go
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"boostgram-api/models"
	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminCredentials is the single configured admin account.
type AdminCredentials struct {
	Email    string
	Password string // plaintext, or a bcrypt hash starting with "$2"
	Secret   []byte
	TTL      time.Duration
}

type AdminService struct {
	DB       *gorm.DB
	Store    CompletionStore
	Emails   *EmailService
	Archiver *CompletionArchiver
	Creds    AdminCredentials
	Now      func() time.Time
}

func NewAdminService(db *gorm.DB, store CompletionStore, emails *EmailService, archiver *CompletionArchiver, creds AdminCredentials) *AdminService {
	if creds.TTL <= 0 {
		creds.TTL = 12 * time.Hour
	}
	return &AdminService{DB: db, Store: store, Emails: emails, Archiver: archiver, Creds: creds, Now: time.Now}
}

// --- Tokens ---

// IssueToken signs an HS256 admin token for subject.
func (s *AdminService) IssueToken(subject string) (string, error) {
	now := s.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.Creds.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Creds.Secret)
}

// ParseAdminToken verifies signature and expiry of an admin token.
func ParseAdminToken(secret []byte, raw string, now func() time.Time) (*jwt.RegisteredClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: admin secret not configured", ErrUnauthorized)
	}
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

func (s *AdminService) checkPassword(given string) bool {
	want := s.Creds.Password
	if want == "" {
		return false
	}
	if strings.HasPrefix(want, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(want), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(given)) == 1
}

// Login handles POST /api/admin/login.
func (s *AdminService) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Email and password are required"})
	}

	if !strings.EqualFold(email, strings.TrimSpace(s.Creds.Email)) || !s.checkPassword(req.Password) {
		log.Printf("🚫 [ADMIN_AUTH] failed login for %s from %s", email, utils.ClientIP(c, c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid credentials"})
	}

	token, err := s.IssueToken(email)
	if err != nil {
		log.Printf("❌ [ADMIN_AUTH] signing token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Login failed"})
	}
	log.Printf("✅ [ADMIN_AUTH] admin %s logged in", email)
	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"message": "Login successful",
	})
}

// --- Stats ---

type AdminStats struct {
	TotalOrders           int64 `json:"totalOrders"`
	CompletedOrders       int64 `json:"completedOrders"`
	PendingOrders         int64 `json:"pendingOrders"`
	TotalCompetitions     int64 `json:"totalCompetitions"`
	CompletedCompetitions int64 `json:"completedCompetitions"`
	TotalFreeUsers        int64 `json:"totalFreeUsers"`
	CompletedFreeUsers    int64 `json:"completedFreeUsers"`
	EmailsSent            int64 `json:"emailsSent"`
	TotalCompletions      int64 `json:"totalCompletions"`
}

func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	db := s.DB.WithContext(ctx)
	var st AdminStats
	counts := []struct {
		model interface{}
		where string
		args  []interface{}
		dst   *int64
	}{
		{&models.Order{}, "", nil, &st.TotalOrders},
		{&models.Order{}, "status = ?", []interface{}{models.StatusCompleted}, &st.CompletedOrders},
		{&models.Order{}, "status = ?", []interface{}{models.StatusPending}, &st.PendingOrders},
		{&models.CompetitionEntry{}, "", nil, &st.TotalCompetitions},
		{&models.CompetitionEntry{}, "completed_offer = ?", []interface{}{true}, &st.CompletedCompetitions},
		{&models.FreeUser{}, "", nil, &st.TotalFreeUsers},
		{&models.FreeUser{}, "completed_offer = ?", []interface{}{true}, &st.CompletedFreeUsers},
		{&models.EmailLog{}, "status = ?", []interface{}{models.EmailStatusSent}, &st.EmailsSent},
	}
	for _, q := range counts {
		tx := db.Model(q.model)
		if q.where != "" {
			tx = tx.Where(q.where, q.args...)
		}
		if err := tx.Count(q.dst).Error; err != nil {
			return nil, err
		}
	}
	total, err := s.Store.Count(ctx)
	if err != nil {
		return nil, err
	}
	st.TotalCompletions = total
	return &st, nil
}

// GetStats handles GET /api/admin/stats.
func (s *AdminService) GetStats(c *fiber.Ctx) error {
	st, err := s.Stats(c.UserContext())
	if err != nil {
		log.Printf("❌ [ADMIN] stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching stats"})
	}
	return c.JSON(st)
}

// --- Listings ---

func pageResponse(items interface{}, total int64, p utils.Page) fiber.Map {
	return fiber.Map{"items": items, "total": total, "page": p.Page, "limit": p.Limit}
}

func listNewest[T any](ctx context.Context, db *gorm.DB, p utils.Page, scope func(*gorm.DB) *gorm.DB) ([]T, int64, error) {
	var model T
	base := db.WithContext(ctx).Model(&model)
	if scope != nil {
		base = scope(base)
	}
	base = base.Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := make([]T, 0, p.Limit)
	err := base.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&items).Error
	return items, total, err
}

// ListOrders handles GET /api/admin/orders.
func (s *AdminService) ListOrders(c *fiber.Ctx) error {
	p := utils.ParsePage(c)
	items, total, err := listNewest[models.Order](c.UserContext(), s.DB, p, nil)
	if err != nil {
		log.Printf("❌ [ADMIN] list orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching orders"})
	}
	return c.JSON(pageResponse(items, total, p))
}

// ListCompetitions handles GET /api/admin/competitions.
func (s *AdminService) ListCompetitions(c *fiber.Ctx) error {
	p := utils.ParsePage(c)
	items, total, err := listNewest[models.CompetitionEntry](c.UserContext(), s.DB, p, nil)
	if err != nil {
		log.Printf("❌ [ADMIN] list competitions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching competition entries"})
	}
	return c.JSON(pageResponse(items, total, p))
}

// ListFreeUsers handles GET /api/admin/free-users with an optional ?q= search.
func (s *AdminService) ListFreeUsers(c *fiber.Ctx) error {
	p := utils.ParsePage(c)
	var scope func(*gorm.DB) *gorm.DB
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		term := "%" + strings.ToLower(strings.TrimPrefix(q, "@")) + "%"
		scope = func(db *gorm.DB) *gorm.DB {
			return db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", term, term)
		}
	}
	items, total, err := listNewest[models.FreeUser](c.UserContext(), s.DB, p, scope)
	if err != nil {
		log.Printf("❌ [ADMIN] list free users: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching free users"})
	}
	return c.JSON(pageResponse(items, total, p))
}

// ListCompletions handles GET /api/admin/completions.
func (s *AdminService) ListCompletions(c *fiber.Ctx) error {
	p := utils.ParsePage(c)
	items, total, err := s.Store.List(c.UserContext(), p.Offset(), p.Limit)
	if err != nil {
		log.Printf("❌ [ADMIN] list completions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching completions"})
	}
	return c.JSON(pageResponse(items, total, p))
}

// --- Delivery ---

const (
	DeliveryTypeOrder = "order"
	DeliveryTypeFree  = "free"
)

// DeliveryResult reports what MarkDelivered did.
type DeliveryResult struct {
	AlreadyDelivered bool
	EmailSent        bool
}

// MarkDelivered completes an order or free lead. A second call is a no-op.
func (s *AdminService) MarkDelivered(ctx context.Context, id, kind string) (DeliveryResult, error) {
	if strings.TrimSpace(id) == "" {
		return DeliveryResult{}, newUserError(ErrValidation, "ID and type are required")
	}
	switch kind {
	case DeliveryTypeOrder:
		return s.deliverOrder(ctx, id)
	case DeliveryTypeFree:
		return s.deliverFreeUser(ctx, id)
	default:
		return DeliveryResult{}, newUserError(ErrValidation, "Invalid type. Must be 'order' or 'free'")
	}
}

func (s *AdminService) deliverOrder(ctx context.Context, id string) (DeliveryResult, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeliveryResult{}, newUserError(ErrNotFound, "Order not found")
		}
		return DeliveryResult{}, err
	}
	if order.Status == models.StatusCompleted {
		return DeliveryResult{AlreadyDelivered: true}, nil
	}

	now := s.Now()
	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, models.StatusCompleted).
		Updates(map[string]interface{}{"status": models.StatusCompleted, "completed_at": now})
	if res.Error != nil {
		return DeliveryResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return DeliveryResult{AlreadyDelivered: true}, nil
	}

	log.Printf("📦 [ADMIN] order %s marked delivered", id)
	var sent bool
	if order.Email != "" {
		sent = s.Emails.sendAndLog(ctx, order.Email,
			FollowersDeliveredEmail(order.InstagramUsername, order.FollowersAmount), EmailFollowersDelivered)
	}
	return DeliveryResult{EmailSent: sent}, nil
}

func (s *AdminService) deliverFreeUser(ctx context.Context, id string) (DeliveryResult, error) {
	var lead models.FreeUser
	if err := s.DB.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeliveryResult{}, newUserError(ErrNotFound, "Free user not found")
		}
		return DeliveryResult{}, err
	}
	if lead.DeliveredAt != nil {
		return DeliveryResult{AlreadyDelivered: true}, nil
	}

	now := s.Now()
	res := s.DB.WithContext(ctx).Model(&models.FreeUser{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Updates(map[string]interface{}{"status": models.StatusCompleted, "delivered_at": now})
	if res.Error != nil {
		return DeliveryResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return DeliveryResult{AlreadyDelivered: true}, nil
	}

	log.Printf("📦 [ADMIN] free followers for @%s marked delivered", lead.Username)
	sent := s.Emails.sendAndLog(ctx, lead.Email,
		FollowersDeliveredEmail(lead.Username, FreeFollowersAmount), EmailFreeFollowersDelivered)
	return DeliveryResult{EmailSent: sent}, nil
}

// MarkDeliveredHandler handles POST /api/admin/mark-delivered.
func (s *AdminService) MarkDeliveredHandler(c *fiber.Ctx) error {
	var req struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	res, err := s.MarkDelivered(c.UserContext(), req.ID, req.Type)
	if err != nil {
		if StatusFor(err) == fiber.StatusInternalServerError {
			log.Printf("❌ [ADMIN] mark delivered %s/%s: %v", req.Type, req.ID, err)
		}
		return respondError(c, err, "message", "Error marking as delivered")
	}
	if res.AlreadyDelivered {
		return c.JSON(fiber.Map{"success": true, "message": "Already delivered", "alreadyDelivered": true})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Marked as delivered", "emailSent": res.EmailSent})
}

// --- Winners ---

// ListWinners handles GET /api/admin/winners.
func (s *AdminService) ListWinners(c *fiber.Ctx) error {
	var winners []models.Winner
	if err := s.DB.WithContext(c.UserContext()).Order("position ASC").Find(&winners).Error; err != nil {
		log.Printf("❌ [ADMIN] list winners: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching winners"})
	}
	return c.JSON(winners)
}

// SetWinner places a competition entry on the podium, replacing whoever held the position.
func (s *AdminService) SetWinner(ctx context.Context, entryID string, position int, prize string) (*models.Winner, error) {
	if strings.TrimSpace(entryID) == "" || position < 1 || position > 3 {
		return nil, newUserError(ErrValidation, "userId and a position between 1 and 3 are required")
	}
	var entry models.CompetitionEntry
	if err := s.DB.WithContext(ctx).First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newUserError(ErrNotFound, "Competition entry not found")
		}
		return nil, err
	}

	winner := models.Winner{
		EntryID:   entry.ID,
		Username:  entry.Username,
		Email:     entry.Email,
		Position:  position,
		Prize:     prize,
		Followers: FormatCount(models.FollowersForPosition(position)),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "position"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_id", "username", "email", "prize", "followers", "updated_at"}),
	}).Create(&winner).Error
	if err != nil {
		return nil, err
	}

	var saved models.Winner
	if err := s.DB.WithContext(ctx).First(&saved, "position = ?", position).Error; err != nil {
		return nil, err
	}
	log.Printf("🏆 [ADMIN] @%s set as winner #%d", saved.Username, position)
	return &saved, nil
}

// CreateWinner handles POST /api/admin/winners.
func (s *AdminService) CreateWinner(c *fiber.Ctx) error {
	var req struct {
		UserID   string `json:"userId"`
		Position int    `json:"position"`
		Prize    string `json:"prize"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	winner, err := s.SetWinner(c.UserContext(), req.UserID, req.Position, req.Prize)
	if err != nil {
		if StatusFor(err) == fiber.StatusInternalServerError {
			log.Printf("❌ [ADMIN] set winner: %v", err)
		}
		return respondError(c, err, "message", "Error saving winner")
	}
	return c.JSON(fiber.Map{"success": true, "winner": winner})
}

// DeleteWinner handles DELETE /api/admin/winners with {position} or ?position=.
func (s *AdminService) DeleteWinner(c *fiber.Ctx) error {
	position, _ := strconv.Atoi(c.Query("position"))
	if position == 0 {
		var req struct {
			Position int `json:"position"`
		}
		_ = c.BodyParser(&req)
		position = req.Position
	}
	if position < 1 || position > 3 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "A position between 1 and 3 is required"})
	}

	if err := s.DB.WithContext(c.UserContext()).Where("position = ?", position).Delete(&models.Winner{}).Error; err != nil {
		log.Printf("❌ [ADMIN] delete winner #%d: %v", position, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error removing winner"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Winner removed"})
}

// --- Archive ---

// TriggerArchive handles POST /api/admin/archive.
func (s *AdminService) TriggerArchive(c *fiber.Ctx) error {
	res, err := s.Archiver.Archive(c.UserContext())
	if err != nil {
		if StatusFor(err) != fiber.StatusServiceUnavailable {
			log.Printf("❌ [ARCHIVE] manual archive failed: %v", err)
		}
		return respondError(c, err, "message", "Error archiving completions")
	}
	return c.JSON(fiber.Map{"success": true, "archive": res})
}

// services/lead_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"boostgram-api/models"
	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// freeLeadCooldown is how long an email or username must wait between two
// free-followers submissions.
const freeLeadCooldown = 24 * time.Hour

type LeadService struct {
	DB     *gorm.DB
	Emails *EmailService
	Now    func() time.Time
}

func NewLeadService(db *gorm.DB, emails *EmailService) *LeadService {
	return &LeadService{DB: db, Emails: emails, Now: time.Now}
}

// LeadInput is the body of both public submit forms.
type LeadInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	IPAddress string `json:"-"`
}

func (in LeadInput) normalized() (LeadInput, error) {
	in.Username = utils.NormalizeUsername(in.Username)
	in.Email = utils.NormalizeEmail(in.Email)
	if in.Username == "" || in.Email == "" {
		return in, newUserError(ErrValidation, "Username and email are required")
	}
	if in.IPAddress == "" {
		in.IPAddress = "unknown"
	}
	return in, nil
}

// ping reports ErrUnavailable when the database cannot be reached.
func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SubmitFree stores a pending free-followers lead. The same username or
// email may only submit once every 24 hours.
func (s *LeadService) SubmitFree(ctx context.Context, in LeadInput) (*models.FreeUser, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, s.DB); err != nil {
		return nil, err
	}

	var recent int64
	if err := s.DB.WithContext(ctx).Model(&models.FreeUser{}).
		Where("created_at >= ?", s.Now().Add(-freeLeadCooldown)).
		Where(s.DB.Where("username = ?", in.Username).Or("email = ?", in.Email)).
		Count(&recent).Error; err != nil {
		return nil, fmt.Errorf("check recent free leads: %w", err)
	}
	if recent > 0 {
		return nil, newUserError(ErrDuplicate, "You can only request free followers once every 24 hours")
	}

	lead := &models.FreeUser{
		Username:  in.Username,
		Email:     in.Email,
		Type:      models.LeadTypeFree,
		Status:    models.StatusPending,
		IPAddress: in.IPAddress,
	}
	if err := s.DB.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, fmt.Errorf("create free lead: %w", err)
	}

	s.Emails.sendAndLog(ctx, lead.Email, FreeRegistrationEmail(lead.Username), EmailFreeRegistration)
	return lead, nil
}

// SubmitCompetition stores one competition entry per username and per email.
func (s *LeadService) SubmitCompetition(ctx context.Context, in LeadInput) (*models.CompetitionEntry, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, s.DB); err != nil {
		return nil, err
	}

	var existing models.CompetitionEntry
	err = s.DB.WithContext(ctx).
		Where("username = ? OR email = ?", in.Username, in.Email).
		First(&existing).Error
	if err == nil {
		return nil, newUserError(ErrDuplicate, "You have already entered the competition")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check competition entry: %w", err)
	}

	entry := &models.CompetitionEntry{
		Username:  in.Username,
		Email:     in.Email,
		Status:    models.StatusPending,
		IPAddress: in.IPAddress,
	}
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create competition entry: %w", err)
	}

	s.Emails.sendAndLog(ctx, entry.Email, CompetitionJoinedEmail(entry.Username, entry.Email), EmailCompetitionJoined)
	return entry, nil
}

// --- Handlers ---

func (s *LeadService) parseLead(c *fiber.Ctx) (LeadInput, error) {
	var in LeadInput
	if err := c.BodyParser(&in); err != nil {
		return in, newUserError(ErrValidation, "Invalid request body")
	}
	in.IPAddress = utils.ClientIP(c, "")
	return in, nil
}

// SubmitFreeFollowers handles POST /api/free-followers/submit.
func (s *LeadService) SubmitFreeFollowers(c *fiber.Ctx) error {
	in, err := s.parseLead(c)
	if err != nil {
		return respondError(c, err, "message", "Error processing request")
	}
	lead, err := s.SubmitFree(c.UserContext(), in)
	if err != nil {
		return s.leadError(c, "free-followers", err)
	}
	log.Printf("✅ [LEADS] free-followers lead %s created for @%s", lead.ID, lead.Username)
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Registration successful",
		"id":       lead.ID,
		"username": lead.Username,
	})
}

// SubmitCompetitionEntry handles POST /api/competition/submit.
func (s *LeadService) SubmitCompetitionEntry(c *fiber.Ctx) error {
	in, err := s.parseLead(c)
	if err != nil {
		return respondError(c, err, "message", "Error processing entry")
	}
	entry, err := s.SubmitCompetition(c.UserContext(), in)
	if err != nil {
		return s.leadError(c, "competition", err)
	}
	log.Printf("✅ [LEADS] competition entry %s created for @%s", entry.ID, entry.Username)
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Competition entry successful",
		"id":       entry.ID,
		"username": entry.Username,
	})
}

func (s *LeadService) leadError(c *fiber.Ctx, flow string, err error) error {
	switch StatusFor(err) {
	case fiber.StatusServiceUnavailable:
		log.Printf("❌ [LEADS] %s: database unavailable: %v", flow, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Service temporarily unavailable. Please try again later.",
		})
	case fiber.StatusInternalServerError:
		log.Printf("❌ [LEADS] %s: %v", flow, err)
	}
	return respondError(c, err, "message", "Error processing request")
}

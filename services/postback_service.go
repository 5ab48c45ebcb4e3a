// services/postback_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"boostgram-api/models"
	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// postbackFields are the parameters the ad network substitutes into the
// callback URL. s1 carries the Instagram username, s2 the device fingerprint.
var postbackFields = []string{
	"offer_id", "offer_name", "payout", "ip", "status", "unix",
	"s1", "s2", "lead_id", "click_id", "country_code",
}

// PostbackParams is one ad-network callback, all values as received.
type PostbackParams map[string]string

func (p PostbackParams) get(key string) string { return strings.TrimSpace(p[key]) }

// PostbackResult reports what a processed postback did.
type PostbackResult struct {
	Recorded       bool
	Record         *models.CompletionRecord
	FreeUpdated    int64
	EntriesUpdated int64
	EmailsSent     int
}

type PostbackService struct {
	DB     *gorm.DB
	Store  CompletionStore
	Emails *EmailService
	Now    func() time.Time
}

func NewPostbackService(db *gorm.DB, store CompletionStore, emails *EmailService) *PostbackService {
	return &PostbackService{DB: db, Store: store, Emails: emails, Now: time.Now}
}

// Process records a successful conversion and marks matching leads as having
// completed the offer. Non-successful conversions are acknowledged and ignored.
func (s *PostbackService) Process(ctx context.Context, p PostbackParams) (PostbackResult, error) {
	if p.get("status") != "1" {
		return PostbackResult{Recorded: false}, nil
	}

	username := utils.NormalizeUsername(p.get("s1"))
	if username == "" {
		return PostbackResult{}, newUserError(ErrValidation, "Missing Instagram username")
	}

	completionTime := s.Now()
	if unix, err := strconv.ParseInt(p.get("unix"), 10, 64); err == nil && unix > 0 {
		completionTime = time.Unix(unix, 0)
	}

	raw, _ := json.Marshal(p)
	rec := &models.CompletionRecord{
		OfferID:           parseInt64(p.get("offer_id")),
		OfferName:         p.get("offer_name"),
		Payout:            parseDecimal(p.get("payout")),
		InstagramUsername: username,
		IPAddress:         p.get("ip"),
		DeviceFingerprint: p.get("s2"),
		CountryCode:       strings.ToUpper(p.get("country_code")),
		LeadID:            parseInt64(p.get("lead_id")),
		ClickID:           parseInt64(p.get("click_id")),
		CompletionTime:    completionTime,
		Status:            "completed",
		RawPayload:        datatypes.JSON(raw),
		CreatedAt:         s.Now(),
	}
	if err := s.Store.Save(ctx, rec); err != nil {
		return PostbackResult{}, fmt.Errorf("save completion: %w", err)
	}
	log.Printf("💰 [POSTBACK] offer %d (%s) completed by @%s payout=%s", rec.OfferID, rec.OfferName, username, rec.Payout.String())

	res := PostbackResult{Recorded: true, Record: rec}

	freeRes := s.DB.WithContext(ctx).Model(&models.FreeUser{}).
		Where("username = ? AND type = ? AND completed_offer = ?", username, models.LeadTypeFree, false).
		Updates(map[string]interface{}{"completed_offer": true, "offer_completed_at": completionTime})
	if freeRes.Error != nil {
		return res, fmt.Errorf("flag free leads: %w", freeRes.Error)
	}
	res.FreeUpdated = freeRes.RowsAffected

	entryRes := s.DB.WithContext(ctx).Model(&models.CompetitionEntry{}).
		Where("username = ? AND completed_offer = ?", username, false).
		Updates(map[string]interface{}{"completed_offer": true, "offer_completed_at": completionTime})
	if entryRes.Error != nil {
		return res, fmt.Errorf("flag competition entries: %w", entryRes.Error)
	}
	res.EntriesUpdated = entryRes.RowsAffected

	res.EmailsSent = s.notify(ctx, username)
	return res, nil
}

// notify sends one "offer completed" email per flagged lead that has not
// been emailed yet. Failures are logged and never fail the postback.
func (s *PostbackService) notify(ctx context.Context, username string) int {
	sent := 0

	var leads []models.FreeUser
	if err := s.DB.WithContext(ctx).
		Where("username = ? AND type = ? AND completed_offer = ? AND email_sent = ?", username, models.LeadTypeFree, true, false).
		Find(&leads).Error; err != nil {
		log.Printf("❌ [POSTBACK] load free leads for @%s: %v", username, err)
	}
	for _, lead := range leads {
		if !s.Emails.sendAndLog(ctx, lead.Email, OfferCompletedFreeEmail(lead.Username), EmailOfferCompletedFree) {
			continue
		}
		sent++
		if err := s.DB.WithContext(ctx).Model(&models.FreeUser{}).
			Where("id = ?", lead.ID).Update("email_sent", true).Error; err != nil {
			log.Printf("⚠️ [POSTBACK] mark email sent for lead %s: %v", lead.ID, err)
		}
	}

	var entries []models.CompetitionEntry
	if err := s.DB.WithContext(ctx).
		Where("username = ? AND completed_offer = ? AND email_sent = ?", username, true, false).
		Find(&entries).Error; err != nil {
		log.Printf("❌ [POSTBACK] load competition entries for @%s: %v", username, err)
	}
	for _, entry := range entries {
		if !s.Emails.sendAndLog(ctx, entry.Email, OfferCompletedCompetitionEmail(entry.Username), EmailOfferCompletedCompetition) {
			continue
		}
		sent++
		if err := s.DB.WithContext(ctx).Model(&models.CompetitionEntry{}).
			Where("id = ?", entry.ID).Update("email_sent", true).Error; err != nil {
			log.Printf("⚠️ [POSTBACK] mark email sent for entry %s: %v", entry.ID, err)
		}
	}
	return sent
}

func parseInt64(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// --- Handler ---

// paramsFromRequest reads the callback from the query string (GET), a JSON
// body or a form body.
func paramsFromRequest(c *fiber.Ctx) (PostbackParams, error) {
	p := PostbackParams{}
	if c.Method() == fiber.MethodGet {
		for _, key := range postbackFields {
			p[key] = c.Query(key)
		}
		return p, nil
	}

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		body := map[string]interface{}{}
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, err
		}
		for _, key := range postbackFields {
			if v, ok := body[key]; ok && v != nil {
				p[key] = fmt.Sprint(v)
			}
		}
		return p, nil
	}

	for _, key := range postbackFields {
		p[key] = c.FormValue(key)
	}
	return p, nil
}

// HandlePostback handles GET|POST /api/postback.
func (s *PostbackService) HandlePostback(c *fiber.Ctx) error {
	params, err := paramsFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid postback body"})
	}

	res, err := s.Process(c.UserContext(), params)
	if err != nil {
		if StatusFor(err) == fiber.StatusBadRequest {
			return respondError(c, err, "message", "Invalid postback")
		}
		log.Printf("❌ [POSTBACK] processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error processing postback",
			"error":   "internal error",
		})
	}
	if !res.Recorded {
		return c.JSON(fiber.Map{"message": "Conversion not successful", "recorded": false})
	}
	return c.JSON(fiber.Map{"message": "Postback processed successfully", "recorded": true})
}

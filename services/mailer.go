// services/mailer.go
package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"boostgram-api/models"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// Email types recorded in the emails table.
const (
	EmailFreeRegistration          = "free_registration"
	EmailCompetitionJoined         = "competition_joined"
	EmailOfferCompletedFree        = "offer_completed_free"
	EmailOfferCompletedCompetition = "offer_completed_competition"
	EmailOrderReceived             = "order_received"
	EmailFollowersDelivered        = "followers_delivered"
	EmailFreeFollowersDelivered    = "free_followers_delivered"
)

const brandName = "BoostGram"

// FreeFollowersAmount is the number of followers promised by the free flow.
const FreeFollowersAmount = 1000

var numbers = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators ("50,000").
func FormatCount(n int) string {
	return numbers.Sprintf("%d", n)
}

// Template is a rendered email.
type Template struct {
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a rendered email and returns its message id.
type Mailer interface {
	Send(ctx context.Context, to string, tmpl Template) (string, error)
}

func wrapHTML(accent, heading, body string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: %s;">%s</h2>
  %s
  <p>Best regards,<br>The %s Team</p>
</div>`, accent, heading, body, brandName)
}

func FreeRegistrationEmail(username string) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: "📧 Free Followers Registration Confirmed",
		HTML: wrapHTML("#2563eb", "Registration Confirmed!", fmt.Sprintf(
			`<p>Hi %s!</p>
  <p>Your free followers request has been registered. To receive your <strong>%s free followers</strong>, please complete the offer that will be shown next.</p>
  <ul>
    <li>Complete the offer shown on the next page</li>
    <li>You'll receive another email once the offer is confirmed</li>
  </ul>`, u, FormatCount(FreeFollowersAmount))),
		Text: fmt.Sprintf("Registration Confirmed! Hi %s! Your free followers request has been registered. Complete the offer to receive your %s free followers.",
			username, FormatCount(FreeFollowersAmount)),
	}
}

func CompetitionJoinedEmail(username, email string) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: fmt.Sprintf("🏆 You're entered in the %s Followers Competition!", shortCount(models.FollowersForPosition(1))),
		HTML: wrapHTML("#7c3aed", fmt.Sprintf("Welcome to the Competition %s!", u), fmt.Sprintf(
			`<p>You've successfully entered our <strong>%s Followers Competition</strong>.</p>
  <ul>
    <li><strong>Prize:</strong> %s Instagram Followers</li>
    <li><strong>Your Entry:</strong> @%s</li>
    <li><strong>Email:</strong> %s</li>
  </ul>
  <p>We'll notify you if you win!</p>`,
			FormatCount(models.FollowersForPosition(1)), FormatCount(models.FollowersForPosition(1)), u, html.EscapeString(email))),
		Text: fmt.Sprintf("Welcome to the Competition %s! You've entered our %s Followers Competition. We'll notify you if you win!",
			username, FormatCount(models.FollowersForPosition(1))),
	}
}

func OfferCompletedFreeEmail(username string) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: fmt.Sprintf("🎉 Your Free %s Followers are on the way!", shortCount(FreeFollowersAmount)),
		HTML: wrapHTML("#2563eb", fmt.Sprintf("Congratulations %s!", u), fmt.Sprintf(
			`<p>You've successfully completed the offer and your <strong>%s free followers</strong> are being processed.</p>
  <p>You'll receive another email when delivery is complete.</p>`, FormatCount(FreeFollowersAmount))),
		Text: fmt.Sprintf("Congratulations %s! You've completed the offer and your %s free followers are being processed.",
			username, FormatCount(FreeFollowersAmount)),
	}
}

func OfferCompletedCompetitionEmail(username string) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: "🏆 Offer Completed - You're in the Competition!",
		HTML: wrapHTML("#7c3aed", "Offer Completed Successfully!", fmt.Sprintf(
			`<p>Great news %s!</p>
  <p>You're now entered in this week's <strong>%s Followers Competition</strong>.</p>
  <ul>
    <li><strong>Your Entry:</strong> @%s</li>
    <li><strong>Status:</strong> ✅ Confirmed</li>
  </ul>
  <p>The winner will be announced this Saturday. Good luck!</p>`, u, FormatCount(models.FollowersForPosition(1)), u)),
		Text: fmt.Sprintf("Offer Completed! %s, you're now entered in the %s followers competition. Winner announced Saturday!",
			username, shortCount(models.FollowersForPosition(1))),
	}
}

func OrderReceivedEmail(username, packageName string, followers int) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: fmt.Sprintf("📦 Order Confirmed: %s Package", packageName),
		HTML: wrapHTML("#059669", "Order Confirmed!", fmt.Sprintf(
			`<p>Thank you for your purchase %s!</p>
  <ul>
    <li><strong>Package:</strong> %s</li>
    <li><strong>Followers:</strong> %s</li>
    <li><strong>Instagram:</strong> @%s</li>
  </ul>`, u, html.EscapeString(packageName), FormatCount(followers), u)),
		Text: fmt.Sprintf("Order Confirmed! Thank you for purchasing the %s package (%s followers) for @%s.",
			packageName, FormatCount(followers), username),
	}
}

func FollowersDeliveredEmail(username string, followers int) Template {
	u := html.EscapeString(username)
	return Template{
		Subject: "✅ Your Followers Have Been Delivered!",
		HTML: wrapHTML("#dc2626", "Delivery Complete!", fmt.Sprintf(
			`<p>Great news %s!</p>
  <p>We've delivered <strong>%s followers</strong> to your Instagram account @%s.</p>`, u, FormatCount(followers), u)),
		Text: fmt.Sprintf("Delivery Complete! We've delivered %s followers to @%s.", FormatCount(followers), username),
	}
}

// shortCount renders 50000 as "50K" for subject lines.
func shortCount(n int) string {
	if n >= 1000 && n%1000 == 0 {
		return fmt.Sprintf("%dK", n/1000)
	}
	return FormatCount(n)
}

// --- SMTP ---

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through a single SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to string, tmpl Template) (string, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	msgID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)
	msg.SetGenHeader(mail.HeaderMessageID, msgID)
	msg.Subject(tmpl.Subject)
	msg.SetBodyString(mail.TypeTextPlain, tmpl.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, tmpl.HTML)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return "", fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msgID, nil
}

// --- Logged delivery ---

// EmailService sends through a Mailer and records every attempt in the
// emails table. Callers log and swallow the returned error.
type EmailService struct {
	DB     *gorm.DB
	Mailer Mailer
}

func NewEmailService(db *gorm.DB, mailer Mailer) *EmailService {
	return &EmailService{DB: db, Mailer: mailer}
}

func (s *EmailService) Send(ctx context.Context, to string, tmpl Template, emailType string) error {
	entry := models.EmailLog{
		To:      to,
		Subject: tmpl.Subject,
		Type:    emailType,
		SentAt:  time.Now(),
	}

	msgID, sendErr := s.Mailer.Send(ctx, to, tmpl)
	if sendErr != nil {
		entry.Status = models.EmailStatusFailed
		entry.Error = sendErr.Error()
	} else {
		entry.Status = models.EmailStatusSent
		entry.MessageID = msgID
	}

	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("⚠️ [MAILER] failed to log %s email to %s: %v", emailType, to, err)
	}
	if sendErr != nil {
		return sendErr
	}
	log.Printf("📧 [MAILER] %s email sent to %s (%s)", emailType, to, msgID)
	return nil
}

// sendAndLog sends and only logs failures. Email never fails the caller's request.
func (s *EmailService) sendAndLog(ctx context.Context, to string, tmpl Template, emailType string) bool {
	if err := s.Send(ctx, to, tmpl, emailType); err != nil {
		log.Printf("❌ [MAILER] %s email to %s failed: %v", emailType, to, err)
		return false
	}
	return true
}

package services

import (
	"context"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"boostgram-api/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPostbackFixture(t *testing.T) (*PostbackService, *fakeMailer, *fiber.App) {
	t.Helper()
	db := newTestDB(t)
	emails, mailer := newTestEmails(db)
	store := NewFileCompletionStore(filepath.Join(t.TempDir(), "completions.json"))
	svc := NewPostbackService(db, store, emails)

	app := fiber.New()
	app.Get("/api/postback", svc.HandlePostback)
	app.Post("/api/postback", svc.HandlePostback)
	return svc, mailer, app
}

func seedLeads(t *testing.T, db *gorm.DB, username string) {
	t.Helper()
	require.NoError(t, db.Create(&models.FreeUser{Username: username, Email: username + "@free.test", IPAddress: "unknown"}).Error)
	require.NoError(t, db.Create(&models.CompetitionEntry{Username: username, Email: username + "@comp.test", IPAddress: "unknown"}).Error)
}

func TestPostbackIgnoresUnsuccessfulConversion(t *testing.T) {
	svc, mailer, app := newPostbackFixture(t)
	seedLeads(t, svc.DB, "alice")

	code, body := doJSON(t, app, "GET", "/api/postback?status=0&s1=alice&offer_id=7", nil, nil)
	require.Equal(t, 200, code)
	require.Equal(t, "Conversion not successful", body["message"])
	require.Equal(t, false, body["recorded"])

	n, err := svc.Store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, mailer.count())
}

func TestPostbackMissingUsername(t *testing.T) {
	_, _, app := newPostbackFixture(t)

	code, body := doJSON(t, app, "POST", "/api/postback", map[string]interface{}{"status": 1, "offer_id": 7}, nil)
	require.Equal(t, 400, code)
	require.Equal(t, "Missing Instagram username", body["message"])
}

func TestPostbackRecordsAndFlagsLeads(t *testing.T) {
	svc, mailer, app := newPostbackFixture(t)
	seedLeads(t, svc.DB, "alice")
	seedLeads(t, svc.DB, "bob")

	q := url.Values{
		"status": {"1"}, "s1": {"@alice"}, "s2": {"fp-1"}, "offer_id": {"42"},
		"offer_name": {"Quiz"}, "payout": {"1.25"}, "ip": {"5.5.5.5"},
		"unix": {"1767225600"}, "lead_id": {"9"}, "click_id": {"10"}, "country_code": {"gb"},
	}
	code, body := doJSON(t, app, "GET", "/api/postback?"+q.Encode(), nil, nil)
	require.Equal(t, 200, code)
	require.Equal(t, true, body["recorded"])

	records, err := svc.Store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	require.EqualValues(t, 42, rec.OfferID)
	require.Equal(t, "1.25", rec.Payout.String())
	require.Equal(t, int64(1767225600), rec.CompletionTime.Unix())
	require.Equal(t, "GB", rec.CountryCode)
	require.Equal(t, "fp-1", rec.DeviceFingerprint)
	require.Contains(t, string(rec.RawPayload), "Quiz")

	var free models.FreeUser
	require.NoError(t, svc.DB.Where("username = ?", "alice").First(&free).Error)
	require.True(t, free.CompletedOffer)
	require.True(t, free.EmailSent)
	require.NotNil(t, free.OfferCompletedAt)

	var entry models.CompetitionEntry
	require.NoError(t, svc.DB.Where("username = ?", "alice").First(&entry).Error)
	require.True(t, entry.CompletedOffer)
	require.True(t, entry.EmailSent)

	// bob untouched
	require.NoError(t, svc.DB.Where("username = ?", "bob").First(&free).Error)
	require.False(t, free.CompletedOffer)

	require.Equal(t, 2, mailer.count())
}

func TestPostbackSendsEachEmailOnce(t *testing.T) {
	svc, mailer, _ := newPostbackFixture(t)
	seedLeads(t, svc.DB, "alice")
	ctx := context.Background()

	params := PostbackParams{"status": "1", "s1": "alice", "offer_id": "1"}
	res, err := svc.Process(ctx, params)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.FreeUpdated)
	require.EqualValues(t, 1, res.EntriesUpdated)
	require.Equal(t, 2, res.EmailsSent)

	res, err = svc.Process(ctx, params)
	require.NoError(t, err)
	require.True(t, res.Recorded)
	require.Zero(t, res.FreeUpdated)
	require.Zero(t, res.EmailsSent)
	require.Equal(t, 2, mailer.count())

	n, err := svc.Store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestPostbackEmailFailureKeepsFlagForRetry(t *testing.T) {
	svc, mailer, _ := newPostbackFixture(t)
	seedLeads(t, svc.DB, "alice")
	mailer.err = errMailDown

	res, err := svc.Process(context.Background(), PostbackParams{"status": "1", "s1": "alice"})
	require.NoError(t, err)
	require.Zero(t, res.EmailsSent)

	var free models.FreeUser
	require.NoError(t, svc.DB.First(&free).Error)
	require.True(t, free.CompletedOffer)
	require.False(t, free.EmailSent)
}

func TestPostbackFormBody(t *testing.T) {
	svc, _, app := newPostbackFixture(t)

	form := url.Values{"status": {"1"}, "s1": {"carol"}, "payout": {"0.5"}}
	req := httptest.NewRequest("POST", "/api/postback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	records, err := svc.Store.FindByUsername(context.Background(), "carol")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "0.5", records[0].Payout.String())
}

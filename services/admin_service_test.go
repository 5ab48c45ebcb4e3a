package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boostgram-api/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testAdminSecret = []byte("test-admin-secret")

// requireAdmin mirrors the bearer check done by the admin middleware.
func requireAdmin(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if _, err := ParseAdminToken(testAdminSecret, token, nil); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}
	return c.Next()
}

func newAdminFixture(t *testing.T, password string) (*fiber.App, *AdminService, *fakeMailer) {
	t.Helper()
	db := newTestDB(t)
	emails, mailer := newTestEmails(db)
	store := NewGormCompletionStore(db)
	svc := NewAdminService(db, store, emails, NewCompletionArchiver(store, nil), AdminCredentials{
		Email:    "Admin@BoostGram.test",
		Password: password,
		Secret:   testAdminSecret,
		TTL:      time.Hour,
	})

	app := fiber.New()
	app.Post("/api/admin/login", svc.Login)
	admin := app.Group("/api/admin", requireAdmin)
	admin.Get("/stats", svc.GetStats)
	admin.Get("/orders", svc.ListOrders)
	admin.Get("/free-users", svc.ListFreeUsers)
	admin.Get("/completions", svc.ListCompletions)
	admin.Post("/mark-delivered", svc.MarkDeliveredHandler)
	admin.Get("/winners", svc.ListWinners)
	admin.Post("/winners", svc.CreateWinner)
	admin.Delete("/winners", svc.DeleteWinner)
	admin.Post("/archive", svc.TriggerArchive)
	return app, svc, mailer
}

func login(t *testing.T, app *fiber.App, email, password string) (int, string) {
	t.Helper()
	code, body := doJSON(t, app, "POST", "/api/admin/login", map[string]string{"email": email, "password": password}, nil)
	token, _ := body["token"].(string)
	return code, token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAdminLogin(t *testing.T) {
	app, _, _ := newAdminFixture(t, "s3cret")

	code, _ := login(t, app, "admin@boostgram.test", "wrong")
	require.Equal(t, 401, code)

	code, body := doJSON(t, app, "POST", "/api/admin/login", map[string]string{"email": "admin@boostgram.test"}, nil)
	require.Equal(t, 400, code)
	require.Equal(t, "Email and password are required", body["message"])

	code, token := login(t, app, "ADMIN@boostgram.test", "s3cret")
	require.Equal(t, 200, code)
	require.NotEmpty(t, token)

	claims, err := ParseAdminToken(testAdminSecret, token, nil)
	require.NoError(t, err)
	require.Equal(t, "admin@boostgram.test", claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestAdminLoginWithBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	app, _, _ := newAdminFixture(t, string(hash))

	code, _ := login(t, app, "admin@boostgram.test", "hashed-pass")
	require.Equal(t, 200, code)
	code, _ = login(t, app, "admin@boostgram.test", string(hash))
	require.Equal(t, 401, code)
}

func TestAdminRoutesRequireValidToken(t *testing.T) {
	app, svc, _ := newAdminFixture(t, "s3cret")

	code, body := doJSON(t, app, "GET", "/api/admin/stats", nil, nil)
	require.Equal(t, 401, code)
	require.Equal(t, "Unauthorized", body["message"])

	code, _ = doJSON(t, app, "GET", "/api/admin/stats", nil, bearer("not-a-jwt"))
	require.Equal(t, 401, code)

	// signed with another secret
	other := *svc
	other.Creds.Secret = []byte("someone-else")
	forged, err := other.IssueToken("admin@boostgram.test")
	require.NoError(t, err)
	code, _ = doJSON(t, app, "GET", "/api/admin/stats", nil, bearer(forged))
	require.Equal(t, 401, code)

	// expired
	expired := *svc
	expired.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.IssueToken("admin@boostgram.test")
	require.NoError(t, err)
	code, _ = doJSON(t, app, "GET", "/api/admin/stats", nil, bearer(old))
	require.Equal(t, 401, code)

	_, token := login(t, app, "admin@boostgram.test", "s3cret")
	code, _ = doJSON(t, app, "GET", "/api/admin/stats", nil, bearer(token))
	require.Equal(t, 200, code)
}

func TestAdminStats(t *testing.T) {
	app, svc, _ := newAdminFixture(t, "s3cret")
	db := svc.DB
	require.NoError(t, db.Create(&models.Order{Type: models.OrderTypePremium, Status: models.StatusCompleted}).Error)
	require.NoError(t, db.Create(&models.Order{Type: models.OrderTypePremium}).Error)
	require.NoError(t, db.Create(&models.FreeUser{Username: "a", Email: "a@x.test", CompletedOffer: true}).Error)
	require.NoError(t, db.Create(&models.CompetitionEntry{Username: "b", Email: "b@x.test"}).Error)
	require.NoError(t, db.Create(&models.EmailLog{To: "a@x.test", Status: models.EmailStatusSent}).Error)
	saveCompletion(t, svc.Store, "a", "", "", time.Now())

	_, token := login(t, app, "admin@boostgram.test", "s3cret")
	code, body := doJSON(t, app, "GET", "/api/admin/stats", nil, bearer(token))
	require.Equal(t, 200, code)
	require.EqualValues(t, 2, body["totalOrders"])
	require.EqualValues(t, 1, body["completedOrders"])
	require.EqualValues(t, 1, body["pendingOrders"])
	require.EqualValues(t, 1, body["totalFreeUsers"])
	require.EqualValues(t, 1, body["completedFreeUsers"])
	require.EqualValues(t, 1, body["totalCompetitions"])
	require.EqualValues(t, 0, body["completedCompetitions"])
	require.EqualValues(t, 1, body["emailsSent"])
	require.EqualValues(t, 1, body["totalCompletions"])
}

func TestAdminListingsPaginateAndSearch(t *testing.T) {
	app, svc, _ := newAdminFixture(t, "s3cret")
	for _, u := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, svc.DB.Create(&models.FreeUser{Username: u, Email: u + "@mail.test"}).Error)
	}
	_, token := login(t, app, "admin@boostgram.test", "s3cret")

	code, body := doJSON(t, app, "GET", "/api/admin/free-users?limit=2&page=1", nil, bearer(token))
	require.Equal(t, 200, code)
	require.EqualValues(t, 3, body["total"])
	require.EqualValues(t, 2, body["limit"])
	require.Len(t, body["items"], 2)

	code, body = doJSON(t, app, "GET", "/api/admin/free-users?limit=2&page=2", nil, bearer(token))
	require.Equal(t, 200, code)
	require.Len(t, body["items"], 1)

	code, body = doJSON(t, app, "GET", "/api/admin/free-users?q=@GAM", nil, bearer(token))
	require.Equal(t, 200, code)
	require.EqualValues(t, 1, body["total"])

	code, body = doJSON(t, app, "GET", "/api/admin/orders?limit=500", nil, bearer(token))
	require.Equal(t, 200, code)
	require.EqualValues(t, 50, body["limit"])
	require.Len(t, body["items"], 0)
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	app, svc, mailer := newAdminFixture(t, "s3cret")
	order := models.Order{
		Type: models.OrderTypePremium, Status: models.StatusProcessing, FollowersAmount: 5000,
		InstagramUsername: "alice", Email: "alice@example.com",
	}
	require.NoError(t, svc.DB.Create(&order).Error)
	_, token := login(t, app, "admin@boostgram.test", "s3cret")

	code, body := doJSON(t, app, "POST", "/api/admin/mark-delivered",
		map[string]string{"id": order.ID, "type": "order"}, bearer(token))
	require.Equal(t, 200, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, 1, mailer.count())

	code, body = doJSON(t, app, "POST", "/api/admin/mark-delivered",
		map[string]string{"id": order.ID, "type": "order"}, bearer(token))
	require.Equal(t, 200, code)
	require.Equal(t, "Already delivered", body["message"])
	require.Equal(t, true, body["alreadyDelivered"])
	require.Equal(t, 1, mailer.count())

	require.NoError(t, svc.DB.First(&order, "id = ?", order.ID).Error)
	require.Equal(t, models.StatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)

	code, _ = doJSON(t, app, "POST", "/api/admin/mark-delivered",
		map[string]string{"id": "missing", "type": "order"}, bearer(token))
	require.Equal(t, 404, code)

	code, _ = doJSON(t, app, "POST", "/api/admin/mark-delivered",
		map[string]string{"id": order.ID, "type": "gift"}, bearer(token))
	require.Equal(t, 400, code)
}

func TestMarkFreeUserDelivered(t *testing.T) {
	_, svc, mailer := newAdminFixture(t, "s3cret")
	lead := models.FreeUser{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, svc.DB.Create(&lead).Error)
	ctx := context.Background()

	res, err := svc.MarkDelivered(ctx, lead.ID, DeliveryTypeFree)
	require.NoError(t, err)
	require.False(t, res.AlreadyDelivered)
	require.True(t, res.EmailSent)

	res, err = svc.MarkDelivered(ctx, lead.ID, DeliveryTypeFree)
	require.NoError(t, err)
	require.True(t, res.AlreadyDelivered)
	require.Equal(t, 1, mailer.count())

	require.NoError(t, svc.DB.First(&lead, "id = ?", lead.ID).Error)
	require.Equal(t, models.StatusCompleted, lead.Status)
	require.NotNil(t, lead.DeliveredAt)
}

func TestWinners(t *testing.T) {
	app, svc, _ := newAdminFixture(t, "s3cret")
	first := models.CompetitionEntry{Username: "alice", Email: "alice@example.com"}
	second := models.CompetitionEntry{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, svc.DB.Create(&first).Error)
	require.NoError(t, svc.DB.Create(&second).Error)
	_, token := login(t, app, "admin@boostgram.test", "s3cret")

	code, body := doJSON(t, app, "POST", "/api/admin/winners",
		map[string]interface{}{"userId": first.ID, "position": 1, "prize": "Gold"}, bearer(token))
	require.Equal(t, 200, code)
	winner := body["winner"].(map[string]interface{})
	require.Equal(t, "50,000", winner["followers"])
	require.Equal(t, "alice", winner["username"])

	// replacing position 1
	w, err := svc.SetWinner(context.Background(), second.ID, 1, "Gold")
	require.NoError(t, err)
	require.Equal(t, "bob", w.Username)
	require.EqualValues(t, 1, countRows(t, svc.DB, &models.Winner{}))

	_, err = svc.SetWinner(context.Background(), first.ID, 3, "Bronze")
	require.NoError(t, err)

	code, _ = doJSON(t, app, "POST", "/api/admin/winners",
		map[string]interface{}{"userId": first.ID, "position": 4}, bearer(token))
	require.Equal(t, 400, code)

	code, _ = doJSON(t, app, "POST", "/api/admin/winners",
		map[string]interface{}{"userId": "nobody", "position": 2}, bearer(token))
	require.Equal(t, 404, code)

	var winners []models.Winner
	require.NoError(t, svc.DB.Order("position").Find(&winners).Error)
	require.Len(t, winners, 2)
	require.Equal(t, "10,000", winners[1].Followers)

	code, _ = doJSON(t, app, "DELETE", "/api/admin/winners?position=1", nil, bearer(token))
	require.Equal(t, 200, code)
	require.EqualValues(t, 1, countRows(t, svc.DB, &models.Winner{}))
}

type memoryUploader struct {
	objects map[string][]byte
}

func (m *memoryUploader) Upload(_ context.Context, key, _ string, body []byte) (string, error) {
	m.objects[key] = body
	return "https://cdn.test/" + key, nil
}

func TestTriggerArchive(t *testing.T) {
	app, svc, _ := newAdminFixture(t, "s3cret")
	_, token := login(t, app, "admin@boostgram.test", "s3cret")

	code, _ := doJSON(t, app, "POST", "/api/admin/archive", nil, bearer(token))
	require.Equal(t, 503, code)

	up := &memoryUploader{objects: map[string][]byte{}}
	store := NewFileCompletionStore(filepath.Join(t.TempDir(), "c.json"))
	saveCompletion(t, store, "alice", "", "", time.Now())
	svc.Archiver = NewCompletionArchiver(store, up)
	svc.Archiver.Now = func() time.Time { return time.Date(2026, 7, 4, 3, 0, 0, 0, time.UTC) }

	code, body := doJSON(t, app, "POST", "/api/admin/archive", nil, bearer(token))
	require.Equal(t, 200, code)
	archive := body["archive"].(map[string]interface{})
	require.Equal(t, "completions/2026-07-04.json", archive["key"])
	require.EqualValues(t, 1, archive["records"])
	require.Contains(t, string(up.objects["completions/2026-07-04.json"]), "alice")
}

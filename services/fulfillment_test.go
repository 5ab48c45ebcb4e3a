package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"boostgram-api/models"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs map[string]error
	seen []string
}

func (p *scriptedProvider) Deliver(_ context.Context, order models.Order) (DeliveryReceipt, error) {
	p.seen = append(p.seen, order.InstagramUsername)
	if err := p.errs[order.InstagramUsername]; err != nil {
		return DeliveryReceipt{}, err
	}
	return DeliveryReceipt{Reference: "ref-" + order.InstagramUsername}, nil
}

func createProcessing(t *testing.T, svc *FulfillmentService, username string) models.Order {
	t.Helper()
	o := models.Order{
		Type: models.OrderTypePremium, Status: models.StatusProcessing,
		FollowersAmount: 2500, InstagramUsername: username, Email: username + "@example.com",
	}
	require.NoError(t, svc.DB.Create(&o).Error)
	return o
}

func TestProcessPending(t *testing.T) {
	db := newTestDB(t)
	emails, mailer := newTestEmails(db)
	provider := &scriptedProvider{errs: map[string]error{
		"bob":   errors.New("provider rejected"),
		"carol": ErrManualFulfillment,
	}}
	svc := NewFulfillmentService(db, provider, emails)

	alice := createProcessing(t, svc, "alice")
	bob := createProcessing(t, svc, "bob")
	carol := createProcessing(t, svc, "carol")
	pending := models.Order{Type: models.OrderTypePremium, InstagramUsername: "dave"}
	require.NoError(t, db.Create(&pending).Error)

	run, err := svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, FulfillmentRun{Delivered: 1, Failed: 1, Manual: 1}, run)
	require.NotContains(t, provider.seen, "dave")

	var got models.Order
	require.NoError(t, db.First(&got, "id = ?", alice.ID).Error)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.Equal(t, "ref-alice", got.DeliveryReference)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, db.First(&got, "id = ?", bob.ID).Error)
	require.Equal(t, models.StatusFailed, got.Status)
	require.Equal(t, "provider rejected", got.FailureReason)

	require.NoError(t, db.First(&got, "id = ?", carol.ID).Error)
	require.Equal(t, models.StatusProcessing, got.Status)

	require.Equal(t, 1, mailer.count())

	// only carol is still waiting
	provider.seen = nil
	_, err = svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, provider.seen)
}

func TestHTTPFulfillmentProvider(t *testing.T) {
	var got deliveryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reference":"smm-77"}`))
	}))
	defer srv.Close()

	p := NewHTTPFulfillmentProvider(srv.URL, "tok")
	receipt, err := p.Deliver(context.Background(), models.Order{ID: "o-1", InstagramUsername: "alice", FollowersAmount: 1000, Type: "free"})
	require.NoError(t, err)
	require.Equal(t, "smm-77", receipt.Reference)
	require.False(t, receipt.DeliveredAt.IsZero())
	require.Equal(t, "o-1", got.OrderID)
	require.Equal(t, 1000, got.Followers)

	p.Token = "wrong"
	_, err = p.Deliver(context.Background(), models.Order{ID: "o-2"})
	require.ErrorIs(t, err, ErrUpstream)
}

func TestManualProvider(t *testing.T) {
	_, err := ManualFulfillmentProvider{}.Deliver(context.Background(), models.Order{})
	require.ErrorIs(t, err, ErrManualFulfillment)
}

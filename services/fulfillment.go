// services/fulfillment.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"boostgram-api/models"
	"boostgram-api/utils"

	"gorm.io/gorm"
)

// ErrManualFulfillment means the order has to be delivered by hand and
// closed through the admin mark-delivered route.
var ErrManualFulfillment = errors.New("order requires manual fulfillment")

// DeliveryReceipt is what a provider hands back for a delivered order.
type DeliveryReceipt struct {
	Reference   string    `json:"reference"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// FulfillmentProvider delivers the followers of a paid or claimed order.
type FulfillmentProvider interface {
	Deliver(ctx context.Context, order models.Order) (DeliveryReceipt, error)
}

// ManualFulfillmentProvider leaves every order for an admin.
type ManualFulfillmentProvider struct{}

func (ManualFulfillmentProvider) Deliver(context.Context, models.Order) (DeliveryReceipt, error) {
	return DeliveryReceipt{}, ErrManualFulfillment
}

// HTTPFulfillmentProvider posts orders to an external delivery service.
type HTTPFulfillmentProvider struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPFulfillmentProvider(url, token string) *HTTPFulfillmentProvider {
	return &HTTPFulfillmentProvider{URL: url, Token: token, Client: utils.HTTPClient}
}

type deliveryRequest struct {
	OrderID   string `json:"orderId"`
	Username  string `json:"instagramUsername"`
	Followers int    `json:"followers"`
	Type      string `json:"type"`
}

func (p *HTTPFulfillmentProvider) Deliver(ctx context.Context, order models.Order) (DeliveryReceipt, error) {
	payload, _ := json.Marshal(deliveryRequest{
		OrderID:   order.ID,
		Username:  order.InstagramUsername,
		Followers: order.FollowersAmount,
		Type:      order.Type,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryReceipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return DeliveryReceipt{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return DeliveryReceipt{}, fmt.Errorf("%w: fulfillment returned %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}

	var receipt DeliveryReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil && !errors.Is(err, io.EOF) {
		return DeliveryReceipt{}, fmt.Errorf("decode fulfillment receipt: %w", err)
	}
	if receipt.DeliveredAt.IsZero() {
		receipt.DeliveredAt = time.Now()
	}
	return receipt, nil
}

// FulfillmentService moves processing orders to completed or failed.
type FulfillmentService struct {
	DB       *gorm.DB
	Provider FulfillmentProvider
	Emails   *EmailService
}

func NewFulfillmentService(db *gorm.DB, provider FulfillmentProvider, emails *EmailService) *FulfillmentService {
	if provider == nil {
		provider = ManualFulfillmentProvider{}
	}
	return &FulfillmentService{DB: db, Provider: provider, Emails: emails}
}

// FulfillmentRun summarises one pass over the processing orders.
type FulfillmentRun struct {
	Delivered int
	Failed    int
	Manual    int
}

// ProcessPending hands up to limit processing orders, oldest first, to the provider.
func (s *FulfillmentService) ProcessPending(ctx context.Context, limit int) (FulfillmentRun, error) {
	var run FulfillmentRun
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusProcessing).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return run, err
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		receipt, err := s.Provider.Deliver(ctx, order)
		switch {
		case errors.Is(err, ErrManualFulfillment):
			run.Manual++
		case err != nil:
			s.fail(ctx, order, err)
			run.Failed++
		default:
			if s.complete(ctx, order, receipt) {
				run.Delivered++
			}
		}
	}
	return run, nil
}

func (s *FulfillmentService) complete(ctx context.Context, order models.Order, receipt DeliveryReceipt) bool {
	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":             models.StatusCompleted,
			"delivery_reference": receipt.Reference,
			"completed_at":       receipt.DeliveredAt,
		})
	if res.Error != nil {
		log.Printf("❌ [FULFILL] order %s delivered but update failed: %v", order.ID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}

	log.Printf("✅ [FULFILL] order %s delivered (%d followers to @%s, ref=%s)",
		order.ID, order.FollowersAmount, order.InstagramUsername, receipt.Reference)
	if order.Email != "" {
		s.Emails.sendAndLog(ctx, order.Email,
			FollowersDeliveredEmail(order.InstagramUsername, order.FollowersAmount), EmailFollowersDelivered)
	}
	return true
}

func (s *FulfillmentService) fail(ctx context.Context, order models.Order, cause error) {
	log.Printf("❌ [FULFILL] order %s failed: %v", order.ID, cause)
	err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":         models.StatusFailed,
			"failure_reason": cause.Error(),
		}).Error
	if err != nil {
		log.Printf("⚠️ [FULFILL] could not mark order %s failed: %v", order.ID, err)
	}
}

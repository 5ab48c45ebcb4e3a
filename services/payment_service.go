// services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"boostgram-api/models"
	"boostgram-api/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const paypalStatusCompleted = "COMPLETED"

type PaymentService struct {
	DB      *gorm.DB
	Gateway PaymentGateway
	Emails  *EmailService
	BaseURL string
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, emails *EmailService, baseURL string) *PaymentService {
	return &PaymentService{DB: db, Gateway: gateway, Emails: emails, BaseURL: baseURL}
}

type createOrderRequest struct {
	Amount            *decimal.Decimal `json:"amount"`
	Currency          string           `json:"currency"`
	PackageName       string           `json:"packageName"`
	InstagramUsername string           `json:"instagramUsername"`
	Email             string           `json:"email"`
}

// CreateOrder handles POST /api/paypal/create-order.
func (s *PaymentService) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount"})
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	packageName := strings.TrimSpace(req.PackageName)
	if packageName == "" {
		packageName = "Premium Package"
	}
	// catalog packages are fulfilled, so they are only sold at list price
	pkg, inCatalog := FindPackage(packageName)
	if inCatalog && (currency != catalogCurrency || !req.Amount.Round(2).Equal(pkg.Price)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Amount does not match package price",
			"price": pkg.Price.StringFixed(2),
		})
	}

	created, err := s.Gateway.CreateOrder(c.UserContext(), CreateOrderInput{
		Amount:      req.Amount.StringFixed(2),
		Currency:    currency,
		Description: fmt.Sprintf("%s - %s", brandName, packageName),
		ReturnURL:   s.BaseURL + "/payment/success",
		CancelURL:   s.BaseURL + "/payment/cancel",
	})
	if err != nil {
		log.Printf("❌ [PAYPAL] create order failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to create PayPal order",
			"details": err.Error(),
		})
	}

	if inCatalog {
		s.recordPendingOrder(c.UserContext(), created.ID, req, pkg)
	}

	return c.JSON(fiber.Map{
		"orderID": created.ID,
		"status":  created.Status,
		"links":   created.Links,
	})
}

// recordPendingOrder keeps a local pending Order keyed by the PayPal order id
// so the capture can be linked to fulfillment. Failures are only logged.
func (s *PaymentService) recordPendingOrder(ctx context.Context, paypalID string, req createOrderRequest, pkg Package) {
	order := models.Order{
		Type:              pkg.Type,
		PackageName:       pkg.Name,
		PackageSlug:       pkg.Slug,
		FollowersAmount:   pkg.Followers,
		Price:             pkg.Price,
		Currency:          catalogCurrency,
		Status:            models.StatusPending,
		InstagramUsername: utils.NormalizeUsername(req.InstagramUsername),
		Email:             utils.NormalizeEmail(req.Email),
		PayPalOrderID:     &paypalID,
	}
	if err := s.DB.WithContext(ctx).Create(&order).Error; err != nil {
		log.Printf("⚠️ [PAYPAL] failed to record pending order for %s: %v", paypalID, err)
	}
}

// CaptureOrder handles POST /api/paypal/capture-order.
func (s *PaymentService) CaptureOrder(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderID"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Order ID is required"})
	}

	captured, err := s.Gateway.CaptureOrder(c.UserContext(), req.OrderID)
	if err != nil {
		log.Printf("❌ [PAYPAL] capture %s failed: %v", req.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to capture PayPal order",
			"details": err.Error(),
		})
	}
	if captured.Status != paypalStatusCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Payment not completed",
			"status": captured.Status,
		})
	}

	if err := s.markPaid(c.UserContext(), req.OrderID, captured); err != nil {
		log.Printf("⚠️ [PAYPAL] capture %s succeeded but local order update failed: %v", req.OrderID, err)
	}

	return c.JSON(fiber.Map{
		"orderID":    captured.ID,
		"status":     captured.Status,
		"payerEmail": captured.PayerEmail,
		"amount":     captured.Amount,
		"captureID":  captured.CaptureID,
	})
}

// markPaid moves the local order pending -> processing and hands it to fulfillment.
func (s *PaymentService) markPaid(ctx context.Context, paypalID string, captured *CapturedOrder) error {
	var order models.Order
	err := s.DB.WithContext(ctx).Where("paypal_order_id = ?", paypalID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !models.CanTransition(order.Status, models.StatusProcessing) {
		return nil
	}
	if reason := paymentMismatch(order, captured); reason != "" {
		log.Printf("❌ [PAYPAL] order %s not queued: %s", order.ID, reason)
		return s.DB.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
			"status":         models.StatusFailed,
			"capture_id":     captured.CaptureID,
			"failure_reason": reason,
		}).Error
	}

	updates := map[string]interface{}{
		"status":     models.StatusProcessing,
		"capture_id": captured.CaptureID,
	}
	if order.Email == "" && captured.PayerEmail != "" {
		updates["email"] = captured.PayerEmail
		order.Email = captured.PayerEmail
	}
	if err := s.DB.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		return err
	}
	log.Printf("💳 [PAYPAL] order %s paid, queued for fulfillment", order.ID)

	if order.Email != "" {
		s.Emails.sendAndLog(ctx, order.Email,
			OrderReceivedEmail(order.InstagramUsername, order.PackageName, order.FollowersAmount), EmailOrderReceived)
	}
	return nil
}

// paymentMismatch reports why a capture does not pay for the order, or "".
func paymentMismatch(order models.Order, captured *CapturedOrder) string {
	if captured.Amount == nil {
		return "capture has no amount"
	}
	paid, err := decimal.NewFromString(captured.Amount.Value)
	if err != nil {
		return fmt.Sprintf("invalid captured amount %q", captured.Amount.Value)
	}
	if !strings.EqualFold(captured.Amount.CurrencyCode, order.Currency) || !paid.Equal(order.Price) {
		return fmt.Sprintf("captured %s %s, expected %s %s",
			captured.Amount.Value, captured.Amount.CurrencyCode, order.Price.StringFixed(2), order.Currency)
	}
	return ""
}

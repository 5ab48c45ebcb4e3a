// services/paypal_gateway.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/plutov/paypal/v4"
)

// PaymentLink mirrors a HATEOAS link returned by the payment provider.
type PaymentLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type CreateOrderInput struct {
	Amount      string // decimal string, e.g. "12.99"
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

type CreatedOrder struct {
	ID     string
	Status string
	Links  []PaymentLink
}

type CapturedOrder struct {
	ID         string
	Status     string
	PayerEmail string
	CaptureID  string
	Amount     *CaptureAmount
}

type CaptureAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PaymentGateway creates and captures checkout orders.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*CapturedOrder, error)
}

// PayPalGateway is the PaymentGateway backed by the PayPal Orders v2 API.
type PayPalGateway struct {
	client *paypal.Client
}

// NewPayPalGateway builds a client for mode "live" or (default) sandbox.
func NewPayPalGateway(clientID, secret, mode string) (*PayPalGateway, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	return &PayPalGateway{client: client}, nil
}

func (g *PayPalGateway) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: in.Currency,
			Value:    in.Amount,
		},
		Description: in.Description,
	}}
	appCtx := &paypal.ApplicationContext{
		BrandName:  brandName,
		UserAction: paypal.UserActionPayNow,
		ReturnURL:  in.ReturnURL,
		CancelURL:  in.CancelURL,
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, err
	}

	out := &CreatedOrder{ID: order.ID, Status: order.Status}
	for _, l := range order.Links {
		out.Links = append(out.Links, PaymentLink{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return out, nil
}

func (g *PayPalGateway) CaptureOrder(ctx context.Context, orderID string) (*CapturedOrder, error) {
	resp, err := g.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, err
	}

	out := &CapturedOrder{ID: resp.ID, Status: resp.Status}
	if resp.Payer != nil {
		out.PayerEmail = resp.Payer.EmailAddress
	}
	if len(resp.PurchaseUnits) > 0 && resp.PurchaseUnits[0].Payments != nil {
		captures := resp.PurchaseUnits[0].Payments.Captures
		if len(captures) > 0 {
			out.CaptureID = captures[0].ID
			if captures[0].Amount != nil {
				out.Amount = &CaptureAmount{
					CurrencyCode: captures[0].Amount.Currency,
					Value:        captures[0].Amount.Value,
				}
			}
		}
	}
	return out, nil
}

// ErrPaymentsDisabled is returned by DisabledGateway.
var ErrPaymentsDisabled = errors.New("paypal credentials are not configured")

// DisabledGateway stands in when PayPal credentials are missing.
type DisabledGateway struct{}

func (DisabledGateway) CreateOrder(context.Context, CreateOrderInput) (*CreatedOrder, error) {
	return nil, ErrPaymentsDisabled
}

func (DisabledGateway) CaptureOrder(context.Context, string) (*CapturedOrder, error) {
	return nil, ErrPaymentsDisabled
}

// models/order.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderTypeFree     = "free"
	OrderTypePremium  = "premium"
	OrderTypeBusiness = "business"
)

// Order is a follower package, either paid through PayPal or claimed for free.
type Order struct {
	ID                string          `json:"id" gorm:"primaryKey;size:36"`
	UserID            string          `json:"userId" gorm:"index"`
	AccountID         string          `json:"accountId,omitempty" gorm:"index"` // auth provider id
	Type              string          `json:"type" gorm:"not null"`
	PackageName       string          `json:"packageName"`
	PackageSlug       string          `json:"packageSlug,omitempty"`
	FollowersAmount   int             `json:"followersAmount"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;default:0"`
	Currency          string          `json:"currency" gorm:"size:8;default:'USD'"`
	Status            LeadStatus      `json:"status" gorm:"index;not null;default:'pending'"`
	InstagramUsername string          `json:"instagramUsername" gorm:"index"`
	Email             string          `json:"email,omitempty"`
	PayPalOrderID     *string         `json:"paypalOrderId,omitempty" gorm:"column:paypal_order_id;uniqueIndex"`
	CaptureID         string          `json:"captureId,omitempty"`
	DeliveryReference string          `json:"deliveryReference,omitempty"`
	FailureReason     string          `json:"failureReason,omitempty"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`

	Timestamps
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	newID(&o.ID)
	if o.Status == "" {
		o.Status = StatusPending
	}
	return nil
}

// models/completion.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompletionRecord is written once per successful ad-network postback.
// Append-only; read by the blocking check and the admin completions view.
type CompletionRecord struct {
	ID                string          `json:"id" gorm:"primaryKey;size:36"`
	OfferID           int64           `json:"offer_id"`
	OfferName         string          `json:"offer_name"`
	Payout            decimal.Decimal `json:"payout" gorm:"type:numeric(12,4);default:0"`
	InstagramUsername string          `json:"instagram_username" gorm:"index;not null"`
	IPAddress         string          `json:"ip_address" gorm:"index"`
	DeviceFingerprint string          `json:"device_fingerprint,omitempty" gorm:"index"`
	CountryCode       string          `json:"country_code"`
	LeadID            int64           `json:"lead_id"`
	ClickID           int64           `json:"click_id"`
	CompletionTime    time.Time       `json:"completion_time" gorm:"index;not null"`
	Status            string          `json:"status"`
	RawPayload        datatypes.JSON  `json:"raw_payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (CompletionRecord) TableName() string { return "completions" }

func (r *CompletionRecord) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

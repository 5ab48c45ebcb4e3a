package models

import "gorm.io/gorm"

const (
	ReferralStatusPending   = "pending"
	ReferralStatusActive    = "active"
	ReferralStatusCompleted = "completed"
)

// Referral links a referring account to the account it brought in.
type Referral struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	ReferrerID     string `gorm:"index;not null" json:"referrerId"`           // AccountID
	ReferredUserID string `gorm:"uniqueIndex;not null" json:"referredUserId"` // AccountID

	ReferralCode    string `gorm:"not null" json:"referralCode"`
	Status          string `gorm:"not null;default:'pending'" json:"status"`
	FollowersEarned int    `json:"followersEarned" gorm:"default:0"`

	Timestamps
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

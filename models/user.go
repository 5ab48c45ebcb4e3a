package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a signed-in account. Identity is owned by the external auth
// provider; the local row is created lazily on the first dashboard visit.
type User struct {
	ID                     string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID              string     `gorm:"uniqueIndex;not null" json:"accountId"` // auth provider user id
	Email                  string     `json:"email"`
	FirstName              string     `json:"firstName,omitempty"`
	LastName               string     `json:"lastName,omitempty"`
	InstagramUsername      string     `json:"instagramUsername,omitempty"`
	ReferralCode           string     `gorm:"uniqueIndex;not null" json:"referralCode"`
	ReferredBy             string     `json:"referredBy,omitempty"`
	TotalFollowersReceived int        `json:"totalFollowersReceived" gorm:"default:0"`
	ReferralEarnings       int        `json:"referralEarnings" gorm:"default:0"`
	LastFreeFollowersClaim *time.Time `json:"lastFreeFollowersClaim,omitempty"`
	IsActive               bool       `json:"isActive" gorm:"default:true"`
	SubscriptionTier       string     `json:"subscriptionTier" gorm:"default:'free'"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}

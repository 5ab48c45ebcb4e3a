// models/lead.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const LeadTypeFree = "free"

// FreeUser is a free-followers lead created from the public form.
type FreeUser struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Username         string     `json:"username" gorm:"index;not null"`
	Email            string     `json:"email" gorm:"index;not null"`
	Type             string     `json:"type" gorm:"not null;default:'free'"`
	Status           LeadStatus `json:"status" gorm:"index;not null;default:'pending'"`
	CompletedOffer   bool       `json:"completedOffer" gorm:"index;default:false"`
	OfferCompletedAt *time.Time `json:"offerCompletedAt,omitempty"`
	EmailSent        bool       `json:"emailSent" gorm:"default:false"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	IPAddress        string     `json:"ipAddress"`

	Timestamps
}

func (u *FreeUser) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	if u.Type == "" {
		u.Type = LeadTypeFree
	}
	return nil
}

// CompetitionEntry is one entry in the weekly followers competition.
type CompetitionEntry struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Username         string     `json:"username" gorm:"index;not null"`
	Email            string     `json:"email" gorm:"index;not null"`
	Status           LeadStatus `json:"status" gorm:"index;not null;default:'pending'"`
	CompletedOffer   bool       `json:"completedOffer" gorm:"index;default:false"`
	OfferCompletedAt *time.Time `json:"offerCompletedAt,omitempty"`
	EmailSent        bool       `json:"emailSent" gorm:"default:false"`
	IPAddress        string     `json:"ipAddress"`

	Timestamps
}

func (e *CompetitionEntry) BeforeCreate(tx *gorm.DB) error {
	newID(&e.ID)
	return nil
}

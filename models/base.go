// models/base.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// LeadStatus is shared by free-follower leads, competition entries and orders.
type LeadStatus string

const (
	StatusPending    LeadStatus = "pending"
	StatusProcessing LeadStatus = "processing"
	StatusCompleted  LeadStatus = "completed"
	StatusFailed     LeadStatus = "failed"
)

// CanTransition reports whether status may move from -> to.
// pending -> processing -> completed, failed from pending/processing.
// Admin delivery may also jump pending -> completed.
func CanTransition(from, to LeadStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every persisted entity, in AutoMigrate order.
func All() []interface{} {
	return []interface{}{
		&FreeUser{},
		&CompetitionEntry{},
		&Order{},
		&CompletionRecord{},
		&Winner{},
		&User{},
		&Referral{},
		&EmailLog{},
	}
}

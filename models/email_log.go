// models/email_log.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog records every outbound email attempt.
type EmailLog struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	To        string    `json:"to" gorm:"column:to_address;index"`
	Subject   string    `json:"subject"`
	Type      string    `json:"type" gorm:"index"`
	MessageID string    `json:"messageId,omitempty"`
	Status    string    `json:"status" gorm:"index"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

func (EmailLog) TableName() string { return "emails" }

func (l *EmailLog) BeforeCreate(tx *gorm.DB) error {
	newID(&l.ID)
	return nil
}

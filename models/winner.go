// models/winner.go
package models

import "gorm.io/gorm"

// Winner holds one podium position (1..3) of the followers competition.
type Winner struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	EntryID   string `json:"userId" gorm:"index;not null"` // CompetitionEntry.ID
	Username  string `json:"username"`
	Email     string `json:"email"`
	Position  int    `json:"position" gorm:"uniqueIndex;not null"`
	Prize     string `json:"prize"`
	Followers string `json:"followers"`

	Timestamps
}

func (w *Winner) BeforeCreate(tx *gorm.DB) error {
	newID(&w.ID)
	return nil
}

// FollowersForPosition is the follower prize shown for a podium position.
func FollowersForPosition(position int) int {
	switch position {
	case 1:
		return 50000
	case 2:
		return 25000
	default:
		return 10000
	}
}

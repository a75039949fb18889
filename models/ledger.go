package models

import "time"

// LedgerBalance is a user's reward accumulator. Columns only ever grow.
type LedgerBalance struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Tokens    int64     `gorm:"not null;default:0" json:"tokens"`
	XP        int64     `gorm:"column:xp;not null;default:0" json:"xp"`
	Streak    int64     `gorm:"not null;default:0" json:"streak"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// LedgerCredit records one applied credit. Reference is unique, so a given
// submission (or grant) can move the balance at most once.
type LedgerCredit struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Reference   string    `gorm:"uniqueIndex;not null" json:"reference"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	Tokens      int64     `gorm:"not null;default:0" json:"tokens"`
	XP          int64     `gorm:"column:xp;not null;default:0" json:"xp"`
	StreakDelta int64     `gorm:"not null;default:0" json:"streak_delta"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

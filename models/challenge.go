package models

import "time"

// Challenge is a real-world action users can prove with a photo.
// Rows are never updated after creation; the newest row is the "current" challenge.
type Challenge struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id" yaml:"id"`
	Title        string    `gorm:"not null" json:"title" yaml:"title"`
	Description  string    `gorm:"type:text" json:"description" yaml:"description"`
	RewardTokens int       `gorm:"not null;default:0" json:"reward_tokens" yaml:"reward_tokens"`
	RewardXP     int       `gorm:"not null;default:0" json:"reward_xp" yaml:"reward_xp"`
	CreatedAt    time.Time `gorm:"index;autoCreateTime" json:"created_at" yaml:"-"`
}

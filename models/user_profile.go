package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProfile is a local snapshot of the profile service's user data.
// Populated by the profile sync worker; read when building oracle prompts.
type UserProfile struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	DisplayName    string    `json:"display_name"`
	Preferences    *string   `gorm:"type:text" json:"preferences,omitempty"`
	Interests      *string   `gorm:"type:text" json:"interests,omitempty"`
	Location       *string   `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PromptContext is the subset of the profile the oracle is allowed to see.
func (p *UserProfile) PromptContext() map[string]string {
	ctx := map[string]string{}
	if p == nil {
		return ctx
	}
	if p.DisplayName != "" {
		ctx["display_name"] = p.DisplayName
	}
	if p.Preferences != nil && *p.Preferences != "" {
		ctx["preferences"] = *p.Preferences
	}
	if p.Interests != nil && *p.Interests != "" {
		ctx["interests"] = *p.Interests
	}
	if p.Location != nil && *p.Location != "" {
		ctx["location"] = *p.Location
	}
	return ctx
}

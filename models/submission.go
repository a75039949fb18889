package models

import "time"

// SubmissionStatus is the trust tier assigned to a proof.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusVerified SubmissionStatus = "verified"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Submission is one proof attempt against a challenge.
//
// TokensAwarded is non-nil only when Status is verified. CreditApplied stays
// false until the ledger has recorded the matching credit, which lets the
// reconciler find verified submissions whose credit never landed.
type Submission struct {
	ID            string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string           `gorm:"index;not null" json:"user_id"`
	ChallengeID   string           `gorm:"index;not null" json:"challenge_id"`
	ImageURL      string           `gorm:"type:text;not null" json:"image_url"`
	Note          *string          `gorm:"type:text" json:"note,omitempty"`
	Status        SubmissionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Confidence    int              `gorm:"not null;default:0" json:"confidence"`
	Reason        string           `gorm:"size:500" json:"reason"`
	TokensAwarded *int             `json:"tokens_awarded"`
	VerdictSource VerdictSource    `gorm:"type:varchar(16)" json:"verdict_source"`
	CreditApplied bool             `gorm:"not null;default:false;index" json:"credit_applied"`
	CreatedAt     time.Time        `gorm:"index;autoCreateTime" json:"created_at"`
}

// CreditReference is the idempotency key used when crediting this submission.
func (s *Submission) CreditReference() string {
	return "submission:" + s.ID
}

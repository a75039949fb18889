package services

import (
	"context"
	"time"

	"challenge-proof-system/models"

	"gorm.io/gorm"
)

// SubmissionStore persists classified submissions.
type SubmissionStore interface {
	Insert(ctx context.Context, s *models.Submission) error
}

type SubmissionService struct {
	DB *gorm.DB
}

func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{DB: db}
}

// Insert writes the record once; CreatedAt is filled in by gorm.
func (s *SubmissionService) Insert(ctx context.Context, sub *models.Submission) error {
	return s.DB.WithContext(ctx).Create(sub).Error
}

func (s *SubmissionService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var subs []models.Submission
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ListCreatedSince returns the user's submissions created at or after since,
// oldest first. Rows sharing a timestamp are ordered by ID.
func (s *SubmissionService) ListCreatedSince(ctx context.Context, userID string, since time.Time) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC, id ASC").
		Find(&subs).Error
	return subs, err
}

// ListUncredited returns verified submissions whose ledger credit has not been
// recorded and that are older than olderThan. An empty userID means all users.
func (s *SubmissionService) ListUncredited(ctx context.Context, userID string, olderThan time.Time, limit int) ([]models.Submission, error) {
	q := s.DB.WithContext(ctx).
		Where("status = ? AND credit_applied = ? AND tokens_awarded IS NOT NULL", models.SubmissionStatusVerified, false).
		Where("created_at <= ?", olderThan)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var subs []models.Submission
	err := q.Order("created_at ASC").Find(&subs).Error
	return subs, err
}

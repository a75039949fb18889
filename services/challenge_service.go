package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"challenge-proof-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChallengeStore looks challenges up. Both methods return (nil, nil) when no
// challenge matches.
type ChallengeStore interface {
	GetCurrent(ctx context.Context) (*models.Challenge, error)
	GetByID(ctx context.Context, id string) (*models.Challenge, error)
}

// ChallengeRepository adds the admin write path.
type ChallengeRepository interface {
	ChallengeStore
	Create(ctx context.Context, c *models.Challenge) error
	List(ctx context.Context, limit int) ([]models.Challenge, error)
}

type ChallengeService struct {
	DB *gorm.DB
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db}
}

// GetCurrent returns the most recently created challenge. Only one challenge
// is active at a time; there is no per-user selection.
func (s *ChallengeService) GetCurrent(ctx context.Context) (*models.Challenge, error) {
	var challenges []models.Challenge
	if err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&challenges).Error; err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return nil, nil
	}
	return &challenges[0], nil
}

func (s *ChallengeService) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var c models.Challenge
	err := s.DB.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new challenge. Challenges are never edited afterwards.
func (s *ChallengeService) Create(ctx context.Context, c *models.Challenge) error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if c.RewardTokens < 0 || c.RewardXP < 0 {
		return fmt.Errorf("%w: rewards cannot be negative", ErrValidation)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, err := uuid.Parse(c.ID); err != nil {
		return fmt.Errorf("%w: invalid challenge id", ErrValidation)
	}
	return s.DB.WithContext(ctx).Create(c).Error
}

// List returns challenges newest first.
func (s *ChallengeService) List(ctx context.Context, limit int) ([]models.Challenge, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var challenges []models.Challenge
	err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&challenges).Error
	return challenges, err
}

package services

import (
	"context"
	"errors"
	"strings"

	"challenge-proof-system/models"

	"gorm.io/gorm"
)

// ProfileStore supplies the optional user context for oracle prompts.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// GetProfile returns (nil, nil) for users the sync worker hasn't mirrored yet.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchProfiles matches display names case-insensitively.
func (s *ProfileService) SearchProfiles(ctx context.Context, query string, limit int) ([]models.UserProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.UserProfile{}).Limit(limit)
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		db = db.Where("LOWER(display_name) LIKE ?", "%"+q+"%")
	}
	var profiles []models.UserProfile
	err := db.Order("display_name ASC").Find(&profiles).Error
	return profiles, err
}

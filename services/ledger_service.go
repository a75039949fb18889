package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"challenge-proof-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRequest describes one additive balance change.
//
// SubmissionID ties the credit to a verified submission and doubles as the
// idempotency key. Credits that don't come from a submission (admin grants)
// must set Reference instead.
type CreditRequest struct {
	UserID       string
	SubmissionID string
	Reference    string
	Tokens       int64
	XP           int64
	StreakDelta  int64
	Reason       string
}

func (r CreditRequest) reference() string {
	if r.SubmissionID != "" {
		return (&models.Submission{ID: r.SubmissionID}).CreditReference()
	}
	return r.Reference
}

// Ledger credits reward balances.
type Ledger interface {
	Credit(ctx context.Context, req CreditRequest) (*models.LedgerBalance, error)
}

// RewardLedger is the gorm-backed Ledger.
type RewardLedger struct {
	DB  *gorm.DB
	log *zap.Logger
}

func NewRewardLedger(db *gorm.DB, log *zap.Logger) *RewardLedger {
	return &RewardLedger{DB: db, log: log}
}

// Credit adds the requested amounts to the user's balance and returns the new
// balance. A reference that was already credited leaves the balance untouched.
// The increment is done in SQL so concurrent credits for one user never lose updates.
func (l *RewardLedger) Credit(ctx context.Context, req CreditRequest) (*models.LedgerBalance, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrNotAuthenticated
	}
	ref := req.reference()
	if ref == "" {
		return nil, fmt.Errorf("%w: credit reference is required", ErrValidation)
	}
	if req.Tokens < 0 || req.XP < 0 || req.StreakDelta < 0 {
		return nil, fmt.Errorf("%w: credits cannot be negative", ErrValidation)
	}

	var balance models.LedgerBalance
	applied := false
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credit := models.LedgerCredit{
			ID:          uuid.NewString(),
			Reference:   ref,
			UserID:      req.UserID,
			Tokens:      req.Tokens,
			XP:          req.XP,
			StreakDelta: req.StreakDelta,
			Reason:      req.Reason,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).Create(&credit)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1

		if applied {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&models.LedgerBalance{UserID: req.UserID}).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.LedgerBalance{}).
				Where("user_id = ?", req.UserID).
				Updates(map[string]interface{}{
					"tokens": gorm.Expr("tokens + ?", req.Tokens),
					"xp":     gorm.Expr("xp + ?", req.XP),
					"streak": gorm.Expr("streak + ?", req.StreakDelta),
				}).Error; err != nil {
				return err
			}
		}

		if req.SubmissionID != "" {
			if err := tx.Model(&models.Submission{}).
				Where("id = ? AND credit_applied = ?", req.SubmissionID, false).
				Update("credit_applied", true).Error; err != nil {
				return err
			}
		}

		err := tx.Where("user_id = ?", req.UserID).First(&balance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance = models.LedgerBalance{UserID: req.UserID}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerCredit, err)
	}

	if applied {
		l.log.Info("[LEDGER] 💰 credit applied",
			zap.String("user_id", req.UserID),
			zap.String("reference", ref),
			zap.Int64("tokens", req.Tokens),
			zap.Int64("xp", req.XP),
			zap.Int64("streak_delta", req.StreakDelta),
			zap.Int64("balance_tokens", balance.Tokens),
		)
	} else {
		l.log.Info("[LEDGER] credit already applied, skipping",
			zap.String("user_id", req.UserID),
			zap.String("reference", ref),
		)
	}
	return &balance, nil
}

// Balance returns the user's balance; users without credits get a zero balance.
func (l *RewardLedger) Balance(ctx context.Context, userID string) (*models.LedgerBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotAuthenticated
	}
	var balance models.LedgerBalance
	err := l.DB.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.LedgerBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// Credits lists the user's applied credits, newest first.
func (l *RewardLedger) Credits(ctx context.Context, userID string, limit int) ([]models.LedgerCredit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var credits []models.LedgerCredit
	err := l.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&credits).Error
	return credits, err
}

package services

import (
	"context"
	"time"

	"challenge-proof-system/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const reconcileBatchSize = 100

// UncreditedLister finds verified submissions whose credit has not landed.
type UncreditedLister interface {
	ListUncredited(ctx context.Context, userID string, olderThan time.Time, limit int) ([]models.Submission, error)
}

// CreditReconciler re-applies ledger credits for verified submissions that
// were persisted but never credited. Credits are idempotent per submission,
// so running it concurrently with the pipeline is safe.
type CreditReconciler struct {
	submissions UncreditedLister
	challenges  ChallengeStore
	ledger      Ledger
	rewards     RewardPolicy
	grace       time.Duration
	now         func() time.Time
	group       singleflight.Group
	log         *zap.Logger
}

func NewCreditReconciler(submissions UncreditedLister, challenges ChallengeStore, ledger Ledger, rewards RewardPolicy, grace time.Duration, log *zap.Logger) *CreditReconciler {
	return &CreditReconciler{
		submissions: submissions,
		challenges:  challenges,
		ledger:      ledger,
		rewards:     rewards,
		grace:       grace,
		now:         time.Now,
		log:         log,
	}
}

// RunOnce credits outstanding submissions of every user that are older than
// the grace period. It returns how many credits were applied.
func (r *CreditReconciler) RunOnce(ctx context.Context) (int, error) {
	return r.reconcile(ctx, "", r.now().Add(-r.grace))
}

// ReconcileUser credits all of one user's outstanding submissions. Concurrent
// calls for the same user share a single run.
func (r *CreditReconciler) ReconcileUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrNotAuthenticated
	}
	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.reconcile(ctx, userID, r.now())
	})
	n, _ := v.(int)
	return n, err
}

func (r *CreditReconciler) reconcile(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	subs, err := r.submissions.ListUncredited(ctx, userID, olderThan, reconcileBatchSize)
	if err != nil {
		r.log.Error("[RECONCILE] failed to list uncredited submissions", zap.Error(err))
		return 0, err
	}

	applied := 0
	challenges := map[string]*models.Challenge{}
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		sub := &subs[i]
		challenge, ok := challenges[sub.ChallengeID]
		if !ok {
			challenge, err = r.challenges.GetByID(ctx, sub.ChallengeID)
			if err != nil {
				r.log.Warn("[RECONCILE] challenge lookup failed, using default XP",
					zap.String("challenge_id", sub.ChallengeID), zap.Error(err))
			}
			challenges[sub.ChallengeID] = challenge
		}

		if _, err := r.ledger.Credit(ctx, verifiedCredit(sub, challenge, r.rewards)); err != nil {
			r.log.Error("[RECONCILE] ❌ credit failed",
				zap.String("submission_id", sub.ID),
				zap.String("user_id", sub.UserID),
				zap.Error(err),
			)
			continue
		}
		applied++
	}

	if applied > 0 {
		r.log.Info("[RECONCILE] ✅ outstanding credits applied",
			zap.Int("applied", applied),
			zap.Int("found", len(subs)),
			zap.String("user_id", userID),
		)
	}
	return applied, nil
}

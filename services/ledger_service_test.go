package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"challenge-proof-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRewardLedger_Credit(t *testing.T) {
	db := newTestDB(t)
	ledger := NewRewardLedger(db, zaptest.NewLogger(t))
	ctx := context.Background()

	bal, err := ledger.Credit(ctx, CreditRequest{UserID: "u1", Reference: "grant:a", Tokens: 50, XP: 20, StreakDelta: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal.Tokens)
	assert.Equal(t, int64(20), bal.XP)
	assert.Equal(t, int64(1), bal.Streak)

	bal, err = ledger.Credit(ctx, CreditRequest{UserID: "u1", Reference: "grant:b", Tokens: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(55), bal.Tokens)
	assert.Equal(t, int64(20), bal.XP)
}

func TestRewardLedger_CreditIsIdempotentPerSubmission(t *testing.T) {
	db := newTestDB(t)
	ledger := NewRewardLedger(db, zaptest.NewLogger(t))
	ctx := context.Background()

	sub := models.Submission{ID: "s1", UserID: "u1", ChallengeID: "c1", ImageURL: "x", Status: models.SubmissionStatusVerified, TokensAwarded: intPtr(50)}
	require.NoError(t, db.Create(&sub).Error)

	req := CreditRequest{UserID: "u1", SubmissionID: "s1", Tokens: 50, XP: 20, StreakDelta: 1}
	first, err := ledger.Credit(ctx, req)
	require.NoError(t, err)
	second, err := ledger.Credit(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, int64(50), first.Tokens)
	assert.Equal(t, int64(50), second.Tokens)
	assert.Equal(t, int64(1), second.Streak)

	var stored models.Submission
	require.NoError(t, db.First(&stored, "id = ?", "s1").Error)
	assert.True(t, stored.CreditApplied)

	var credits int64
	require.NoError(t, db.Model(&models.LedgerCredit{}).Where("reference = ?", "submission:s1").Count(&credits).Error)
	assert.Equal(t, int64(1), credits)
}

func TestRewardLedger_ConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	db := newTestDB(t)
	ledger := NewRewardLedger(db, zaptest.NewLogger(t))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		ref := fmt.Sprintf("grant:%d", i)
		// each reference is credited twice concurrently; only one may count
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				_, err := ledger.Credit(ctx, CreditRequest{UserID: "u1", Reference: ref, Tokens: 10, XP: 1})
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bal, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10*n), bal.Tokens)
	assert.Equal(t, int64(n), bal.XP)
}

func TestRewardLedger_CreditValidation(t *testing.T) {
	ledger := NewRewardLedger(newTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := ledger.Credit(ctx, CreditRequest{Reference: "grant:x", Tokens: 1})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = ledger.Credit(ctx, CreditRequest{UserID: "u1", Tokens: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ledger.Credit(ctx, CreditRequest{UserID: "u1", Reference: "grant:x", Tokens: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRewardLedger_BalanceAndCredits(t *testing.T) {
	ledger := NewRewardLedger(newTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	bal, err := ledger.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", bal.UserID)
	assert.Zero(t, bal.Tokens)

	_, err = ledger.Credit(ctx, CreditRequest{UserID: "u1", Reference: "grant:1", Tokens: 3, Reason: "welcome"})
	require.NoError(t, err)

	credits, err := ledger.Credits(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, "grant:1", credits[0].Reference)
	assert.Equal(t, "welcome", credits[0].Reason)
}

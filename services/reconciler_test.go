package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"challenge-proof-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func insertVerified(t *testing.T, svc *SubmissionService, id, userID string, tokens int, at time.Time) {
	t.Helper()
	require.NoError(t, svc.Insert(context.Background(), &models.Submission{
		ID: id, UserID: userID, ChallengeID: "c1", ImageURL: "https://cdn.test/" + id,
		Status: models.SubmissionStatusVerified, Confidence: 90, Reason: "ok",
		TokensAwarded: intPtr(tokens), VerdictSource: models.VerdictSourceStrict, CreatedAt: at,
	}))
}

func TestCreditReconciler_RunOnce(t *testing.T) {
	db := newTestDB(t)
	log := zaptest.NewLogger(t)
	subs := NewSubmissionService(db)
	ledger := NewRewardLedger(db, log)
	challenges := fakeChallenges{"c1": {ID: "c1", RewardTokens: 50, RewardXP: 35}}

	old := time.Now().Add(-time.Hour)
	insertVerified(t, subs, "s1", "u1", 50, old)
	insertVerified(t, subs, "s2", "u2", 10, old)
	// inside the grace period: the pipeline may still be crediting it
	insertVerified(t, subs, "s3", "u1", 5, time.Now().Add(time.Hour))
	require.NoError(t, subs.Insert(context.Background(), &models.Submission{
		ID: "s4", UserID: "u1", ChallengeID: "c1", ImageURL: "x", Status: models.SubmissionStatusPending, Confidence: 72,
	}))

	r := NewCreditReconciler(subs, challenges, ledger, RewardPolicy{VerifiedXP: 20, VerifiedStreakDelta: 1}, time.Minute, log)
	applied, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	u1, err := ledger.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), u1.Tokens)
	assert.Equal(t, int64(35), u1.XP, "challenge XP wins over the default")
	assert.Equal(t, int64(1), u1.Streak)

	// a second run finds nothing left to do
	applied, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestCreditReconciler_ReconcileUserOnlyTouchesThatUser(t *testing.T) {
	db := newTestDB(t)
	log := zaptest.NewLogger(t)
	subs := NewSubmissionService(db)
	ledger := NewRewardLedger(db, log)

	insertVerified(t, subs, "s1", "u1", 7, time.Now().Add(-time.Second))
	insertVerified(t, subs, "s2", "u2", 9, time.Now().Add(-time.Second))

	r := NewCreditReconciler(subs, fakeChallenges{}, ledger, RewardPolicy{VerifiedXP: 20}, time.Hour, log)
	applied, err := r.ReconcileUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	u2, err := ledger.Balance(context.Background(), "u2")
	require.NoError(t, err)
	assert.Zero(t, u2.Tokens)

	_, err = r.ReconcileUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

// blockingLister holds every ListUncredited call until released.
type blockingLister struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingLister) ListUncredited(context.Context, string, time.Time, int) ([]models.Submission, error) {
	b.calls.Add(1)
	<-b.release
	return nil, nil
}

func TestCreditReconciler_ReconcileUserCoalescesConcurrentCalls(t *testing.T) {
	lister := &blockingLister{release: make(chan struct{})}
	r := NewCreditReconciler(lister, fakeChallenges{}, &failingLedger{}, RewardPolicy{}, 0, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Add(1)
			_, _ = r.ReconcileUser(context.Background(), "u1")
		}()
	}
	require.Eventually(t, func() bool {
		return started.Load() == 5 && lister.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	// give the other callers time to join the in-flight run
	time.Sleep(20 * time.Millisecond)
	close(lister.release)
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
}

type countingLister struct{ calls atomic.Int32 }

func (c *countingLister) ListUncredited(context.Context, string, time.Time, int) ([]models.Submission, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestStartReconcileScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	lister := &countingLister{}
	r := NewCreditReconciler(lister, fakeChallenges{}, &failingLedger{}, RewardPolicy{}, 0, zaptest.NewLogger(t))

	sched, err := StartReconcileScheduler(r, 10*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return lister.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sched.Shutdown())
}

package services

import (
	"context"
	"testing"
	"time"

	"challenge-proof-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionService_ListByUserNewestFirst(t *testing.T) {
	svc := NewSubmissionService(newTestDB(t))
	base := time.Now().Add(-time.Hour)
	insertVerified(t, svc, "s1", "u1", 1, base)
	insertVerified(t, svc, "s2", "u1", 1, base.Add(time.Minute))
	insertVerified(t, svc, "s3", "u2", 1, base)

	subs, err := svc.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "s2", subs[0].ID)
	assert.Equal(t, "s1", subs[1].ID)
}

func TestSubmissionService_ListCreatedSince(t *testing.T) {
	svc := NewSubmissionService(newTestDB(t))
	base := time.Now().Add(-time.Hour)
	insertVerified(t, svc, "s1", "u1", 1, base)
	insertVerified(t, svc, "s2", "u1", 1, base.Add(2*time.Minute))

	subs, err := svc.ListCreatedSince(context.Background(), "u1", base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s2", subs[0].ID)
}

func TestSubmissionCursor_DeliversLateRowWithSameTimestamp(t *testing.T) {
	svc := NewSubmissionService(newTestDB(t))
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	stamp := start.Add(time.Minute)
	cursor := newSubmissionCursor(start)

	insertVerified(t, svc, "s-b", "u1", 1, stamp)
	subs, err := svc.ListCreatedSince(ctx, "u1", cursor.at)
	require.NoError(t, err)
	fresh := cursor.advance(subs)
	require.Len(t, fresh, 1)
	assert.Equal(t, "s-b", fresh[0].ID)

	// committed later, same created_at, sorts before the one already sent
	insertVerified(t, svc, "s-a", "u1", 1, stamp)
	subs, err = svc.ListCreatedSince(ctx, "u1", cursor.at)
	require.NoError(t, err)
	fresh = cursor.advance(subs)
	require.Len(t, fresh, 1)
	assert.Equal(t, "s-a", fresh[0].ID)

	subs, err = svc.ListCreatedSince(ctx, "u1", cursor.at)
	require.NoError(t, err)
	assert.Empty(t, cursor.advance(subs))
}

func TestSubmissionService_ListUncreditedSkipsCreditedAndUnrewarded(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db)
	old := time.Now().Add(-time.Hour)
	insertVerified(t, svc, "s1", "u1", 5, old)
	insertVerified(t, svc, "s2", "u1", 5, old)
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", "s2").Update("credit_applied", true).Error)
	require.NoError(t, svc.Insert(context.Background(), &models.Submission{
		ID: "s3", UserID: "u1", ChallengeID: "c1", ImageURL: "x", Status: models.SubmissionStatusVerified, CreatedAt: old,
	}))

	subs, err := svc.ListUncredited(context.Background(), "", time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].ID)
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"challenge-proof-system/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	currentChallengeKey = "challenge:current"
	challengeKeyPrefix  = "challenge:id:"
	challengeByIDTTL    = time.Hour
)

// CachedChallengeRepository puts a Redis read-through cache in front of a
// ChallengeRepository. Redis errors are logged and the database is used instead.
type CachedChallengeRepository struct {
	inner ChallengeRepository
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedChallengeRepository(inner ChallengeRepository, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedChallengeRepository {
	return &CachedChallengeRepository{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (r *CachedChallengeRepository) GetCurrent(ctx context.Context) (*models.Challenge, error) {
	if c, ok := r.lookup(ctx, currentChallengeKey); ok {
		return c, nil
	}
	c, err := r.inner.GetCurrent(ctx)
	if err != nil || c == nil {
		return c, err
	}
	r.store(ctx, currentChallengeKey, c, r.ttl)
	return c, nil
}

// GetByID caches hits for longer than the current pointer since challenges are immutable.
func (r *CachedChallengeRepository) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	key := challengeKeyPrefix + id
	if c, ok := r.lookup(ctx, key); ok {
		return c, nil
	}
	c, err := r.inner.GetByID(ctx, id)
	if err != nil || c == nil {
		return c, err
	}
	r.store(ctx, key, c, challengeByIDTTL)
	return c, nil
}

// Create writes through and drops the cached current challenge.
func (r *CachedChallengeRepository) Create(ctx context.Context, c *models.Challenge) error {
	if err := r.inner.Create(ctx, c); err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, currentChallengeKey).Err(); err != nil {
		r.log.Warn("[CHALLENGE_CACHE] failed to invalidate current challenge", zap.Error(err))
	}
	return nil
}

func (r *CachedChallengeRepository) List(ctx context.Context, limit int) ([]models.Challenge, error) {
	return r.inner.List(ctx, limit)
}

func (r *CachedChallengeRepository) lookup(ctx context.Context, key string) (*models.Challenge, bool) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("[CHALLENGE_CACHE] redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var c models.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		r.log.Warn("[CHALLENGE_CACHE] dropping corrupt entry", zap.String("key", key), zap.Error(err))
		_ = r.rdb.Del(ctx, key).Err()
		return nil, false
	}
	return &c, true
}

func (r *CachedChallengeRepository) store(ctx context.Context, key string, c *models.Challenge, ttl time.Duration) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.log.Warn("[CHALLENGE_CACHE] redis set failed", zap.String("key", key), zap.Error(err))
	}
}

package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	apperrors "github.com/healthlog/healthlog/internal/errors"
)

const refreshKeyPrefix = "refresh:"

// RefreshStore keeps opaque refresh-token handles in Redis, keyed by a
// random token id with a TTL. Rotation deletes the old handle.
type RefreshStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRefreshStore creates a refresh-token store.
func NewRefreshStore(rdb *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{rdb: rdb, ttl: ttl}
}

// Save stores a new refresh token for the user and returns its id.
func (s *RefreshStore) Save(ctx context.Context, userID int64) (string, error) {
	tokenID := uuid.New().String()
	err := s.rdb.Set(ctx, refreshKeyPrefix+tokenID, strconv.FormatInt(userID, 10), s.ttl).Err()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return tokenID, nil
}

// Lookup resolves a refresh token id to its user. An unknown or expired
// token fails with an UnauthorizedError.
func (s *RefreshStore) Lookup(ctx context.Context, tokenID string) (int64, error) {
	value, err := s.rdb.Get(ctx, refreshKeyPrefix+tokenID).Result()
	if err == redis.Nil {
		return 0, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, apperrors.NewUnauthorizedError("invalid refresh token")
	}
	return userID, nil
}

// Delete removes a refresh token. Deleting an unknown token is a no-op.
func (s *RefreshStore) Delete(ctx context.Context, tokenID string) error {
	if err := s.rdb.Del(ctx, refreshKeyPrefix+tokenID).Err(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

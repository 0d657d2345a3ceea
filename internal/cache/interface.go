package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/chat-backend/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// UserCache caches user profiles for the user-lookup endpoint only.
// Message enrichment never reads from it; sender names in message
// payloads are always recomputed from the store.
type UserCache interface {
	Get(ctx context.Context, key string) (*domain.User, error)
	Set(ctx context.Context, key string, user *domain.User, ttl time.Duration) error
	BuildKey(userID int64) string
	Close() error
}

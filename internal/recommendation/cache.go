package recommendation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultCacheTTL = 5 * time.Minute

// RecoCache keeps each user's full stored list in Redis for the read path.
// A nil *RecoCache (or one without a client) is a no-op, mirroring how the
// host process treats Redis as optional.
type RecoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecoCache(client *redis.Client, ttl time.Duration) *RecoCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RecoCache{client: client, ttl: ttl}
}

func recoCacheKey(userID int64) string {
	return fmt.Sprintf("user_recos:%d", userID)
}

// Get returns the cached list and whether it was present. Cache errors
// degrade to a miss.
func (c *RecoCache) Get(ctx context.Context, userID int64) ([]*ScoredRecommendation, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, recoCacheKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var recos []*ScoredRecommendation
	if err := json.Unmarshal(payload, &recos); err != nil {
		return nil, false
	}

	return recos, true
}

// Set stores the list under the user's key. Errors are dropped; the store
// remains the source of truth.
func (c *RecoCache) Set(ctx context.Context, userID int64, recos []*ScoredRecommendation) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(recos)
	if err != nil {
		return
	}

	c.client.Set(ctx, recoCacheKey(userID), payload, c.ttl)
}

// Invalidate drops the user's cache entry after a recompute.
func (c *RecoCache) Invalidate(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}

	c.client.Del(ctx, recoCacheKey(userID))
}

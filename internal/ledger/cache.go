package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachePort abstracts statement caching for the service. GetStatement also
// returns the versioned key a fresh build must be stored under; the builder
// captures it before reading any events, so a build overtaken by a new
// financial event stores its result under the retired version.
type CachePort interface {
	GetStatement(ctx context.Context, partnerID int64) (*Statement, string, bool)
	SetStatement(ctx context.Context, key string, stmt *Statement)
	Invalidate(ctx context.Context, partnerID int64)
}

// Cache keeps built statements in Redis under a per-partner version. Posting
// an invoice or transaction bumps the version, so stale statements simply
// stop being addressable and age out with the TTL.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache constructs Cache. A nil client disables caching.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) versionKey(partnerID int64) string {
	return fmt.Sprintf("ledger:stmt:ver:%d", partnerID)
}

func (c *Cache) statementKey(ctx context.Context, partnerID int64) (string, error) {
	ver, err := c.rdb.Get(ctx, c.versionKey(partnerID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("ledger:stmt:%d:v%d", partnerID, ver), nil
}

// GetStatement returns the cached statement for the partner's current
// version, along with the versioned key itself. Cache failures degrade to a
// miss with an empty key, which disables storing that build.
func (c *Cache) GetStatement(ctx context.Context, partnerID int64) (*Statement, string, bool) {
	if c == nil || c.rdb == nil {
		return nil, "", false
	}
	key, err := c.statementKey(ctx, partnerID)
	if err != nil {
		return nil, "", false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, key, false
	}
	var stmt Statement
	if err := json.Unmarshal(raw, &stmt); err != nil {
		return nil, key, false
	}
	return &stmt, key, true
}

// SetStatement stores the statement under the key captured before the build.
// If the partner's version moved on in the meantime, the value lands under a
// key nobody reads anymore and ages out with the TTL.
func (c *Cache) SetStatement(ctx context.Context, key string, stmt *Statement) {
	if c == nil || c.rdb == nil || key == "" || stmt == nil {
		return
	}
	raw, err := json.Marshal(stmt)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the partner's statement version.
func (c *Cache) Invalidate(ctx context.Context, partnerID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, c.versionKey(partnerID))
	pipe.Expire(ctx, c.versionKey(partnerID), 24*time.Hour)
	_, _ = pipe.Exec(ctx)
}

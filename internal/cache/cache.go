// Package cache is a best-effort Redis layer for list metadata and
// per-contact suppression verdicts. It is a pure performance optimization:
// every failure is logged and swallowed, callers fall back to the store,
// and nothing here is ever the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/logger"
)

const (
	// ListMetadataTTL bounds staleness of cached list counts and rates.
	ListMetadataTTL = time.Hour
	// SuppressionTTL bounds staleness of cached suppression verdicts.
	SuppressionTTL = 24 * time.Hour
)

// Cache wraps a Redis client. A nil Cache pointer is safe to use: every
// method no-ops, which keeps call sites free of nil checks.
type Cache struct {
	client *redis.Client
}

// New creates a cache on the given Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func listKey(listID string) string {
	return fmt.Sprintf("list:meta:%s", listID)
}

func suppressionKey(contactID string) string {
	return fmt.Sprintf("contact:suppressed:%s", contactID)
}

// GetListMetadata returns cached list metadata, or nil on miss or error.
func (c *Cache) GetListMetadata(ctx context.Context, listID string) *domain.ListMetadata {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, listKey(listID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logger.Debug("list metadata cache read failed", "list_id", listID, "error", err.Error())
		return nil
	}
	var meta domain.ListMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		logger.Warn("list metadata cache corrupt", "list_id", listID, "error", err.Error())
		return nil
	}
	return &meta
}

// SetListMetadata caches list metadata with ListMetadataTTL.
func (c *Cache) SetListMetadata(ctx context.Context, meta domain.ListMetadata) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, listKey(meta.ListID), raw, ListMetadataTTL).Err(); err != nil {
		logger.Debug("list metadata cache write failed", "list_id", meta.ListID, "error", err.Error())
	}
}

// InvalidateList drops the cached metadata for a list.
func (c *Cache) InvalidateList(ctx context.Context, listID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, listKey(listID)).Err(); err != nil {
		logger.Debug("list metadata cache invalidate failed", "list_id", listID, "error", err.Error())
	}
}

// GetSuppression returns a cached suppression verdict. found is false on
// miss or on any error: the caller derives the verdict from the store.
func (c *Cache) GetSuppression(ctx context.Context, contactID string) (suppressed, found bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, suppressionKey(contactID)).Result()
	if err == redis.Nil {
		return false, false
	}
	if err != nil {
		logger.Debug("suppression cache read failed", "contact_id", contactID, "error", err.Error())
		return false, false
	}
	return val == "1", true
}

// SetSuppression caches a suppression verdict with SuppressionTTL.
func (c *Cache) SetSuppression(ctx context.Context, contactID string, suppressed bool) {
	if c == nil || c.client == nil {
		return
	}
	val := "0"
	if suppressed {
		val = "1"
	}
	if err := c.client.Set(ctx, suppressionKey(contactID), val, SuppressionTTL).Err(); err != nil {
		logger.Debug("suppression cache write failed", "contact_id", contactID, "error", err.Error())
	}
}

// InvalidateSuppression drops a cached suppression verdict.
func (c *Cache) InvalidateSuppression(ctx context.Context, contactID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, suppressionKey(contactID)).Err(); err != nil {
		logger.Debug("suppression cache invalidate failed", "contact_id", contactID, "error", err.Error())
	}
}

package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shortreel/api/internal/model"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a draft id.
var ErrSnapshotNotFound = errors.New("draft snapshot not found")

const (
	snapshotTTL = 7 * 24 * time.Hour
	mappingTTL  = 30 * 24 * time.Hour
)

// Cache persists draft snapshots and the draft→project mapping in Redis.
// Snapshots back the "saved locally only" fallback when the platform is
// unreachable; the mapping keeps project creation idempotent across
// restarts.
type Cache struct {
	redis *redis.Client
}

func NewCache(redisClient *redis.Client) *Cache {
	return &Cache{redis: redisClient}
}

// SaveSnapshot stores the draft as a JSON blob.
func (c *Cache) SaveSnapshot(ctx context.Context, d model.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	return c.redis.Set(ctx, snapshotKey(d.ID), data, snapshotTTL).Err()
}

// LoadSnapshot restores a previously saved draft.
func (c *Cache) LoadSnapshot(ctx context.Context, draftID string) (*model.Draft, error) {
	data, err := c.redis.Get(ctx, snapshotKey(draftID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var d model.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft snapshot: %w", err)
	}
	return &d, nil
}

// DeleteSnapshot drops the stored snapshot, if any.
func (c *Cache) DeleteSnapshot(ctx context.Context, draftID string) error {
	return c.redis.Del(ctx, snapshotKey(draftID)).Err()
}

// SaveProjectID records which project a draft was promoted into.
func (c *Cache) SaveProjectID(ctx context.Context, draftID, projectID string) error {
	return c.redis.Set(ctx, mappingKey(draftID), projectID, mappingTTL).Err()
}

// ProjectID returns the project a draft was promoted into, or "" when the
// draft has never been promoted.
func (c *Cache) ProjectID(ctx context.Context, draftID string) (string, error) {
	id, err := c.redis.Get(ctx, mappingKey(draftID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func snapshotKey(draftID string) string { return fmt.Sprintf("draft:%s", draftID) }
func mappingKey(draftID string) string  { return fmt.Sprintf("draft:project:%s", draftID) }

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fibreflow/internal/workflow"
	"fibreflow/pkg/metrics"
)

const progressKeyFormat = "workflow:progress:%d"

// ProgressCache keeps the derived project progress view in Redis so the
// overview endpoint does not recompute it on every request. The worker
// refreshes entries when workflow events arrive.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProgressCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProgressCache {
	return &ProgressCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached progress for a project, or ok=false on a miss.
// Cache errors are logged and treated as misses so reads fall through to
// the database.
func (c *ProgressCache) Get(ctx context.Context, projectID int) (workflow.ProjectProgress, bool) {
	key := fmt.Sprintf(progressKeyFormat, projectID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Progress cache read failed", zap.Int("project_id", projectID), zap.Error(err))
		}
		metrics.IncrementProgressCache("miss")
		return workflow.ProjectProgress{}, false
	}

	var progress workflow.ProjectProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		c.logger.Warn("Progress cache entry corrupt", zap.Int("project_id", projectID), zap.Error(err))
		metrics.IncrementProgressCache("miss")
		return workflow.ProjectProgress{}, false
	}

	metrics.IncrementProgressCache("hit")
	return progress, true
}

func (c *ProgressCache) Set(ctx context.Context, projectID int, progress workflow.ProjectProgress) error {
	key := fmt.Sprintf(progressKeyFormat, projectID)

	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Progress cache write failed", zap.Int("project_id", projectID), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops the cached entry after a mutation. The worker rebuilds
// it when the corresponding event is consumed.
func (c *ProgressCache) Invalidate(ctx context.Context, projectID int) {
	key := fmt.Sprintf(progressKeyFormat, projectID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Progress cache invalidation failed", zap.Int("project_id", projectID), zap.Error(err))
	}
}

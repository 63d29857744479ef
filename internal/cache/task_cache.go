package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"multirag/internal/model"
)

// TaskCache keeps hot task status in Redis so that polling clients do not hit
// Postgres on every request. Entries expire quickly; the database stays the
// source of truth.
type TaskCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewTaskCache(client *redisv9.Client, ttl time.Duration) *TaskCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TaskCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *TaskCache) Get(ctx context.Context, taskID string) (*model.Task, bool, error) {
	key := c.taskKey(taskID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get task failed: %w", err)
	}

	var task model.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached task failed: %w", err)
	}
	return &task, true, nil
}

func (c *TaskCache) Set(ctx context.Context, task *model.Task) error {
	key := c.taskKey(task.ID)
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task cache failed: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set task failed: %w", err)
	}
	return nil
}

func (c *TaskCache) Delete(ctx context.Context, taskID string) error {
	if err := c.client.Del(ctx, c.taskKey(taskID)).Err(); err != nil {
		return fmt.Errorf("redis delete task failed: %w", err)
	}
	return nil
}

func (c *TaskCache) taskKey(taskID string) string {
	return "task:status:" + taskID
}

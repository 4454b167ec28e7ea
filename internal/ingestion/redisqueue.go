package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"coinsage/internal/logging"
)

const (
	queueKey = "coinsage:ingest:queue"
	lockKey  = "coinsage:ingest:lock"
)

// NewRedisClient connects a redis client from a URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 10 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisQueue is a redis-list task queue. Producers LPUSH, workers BRPOP,
// so tasks dispatch in FIFO order across all server instances.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps a connected redis client as a task queue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push enqueues a task immediately.
func (q *RedisQueue) Push(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

// PushDelayed re-enqueues a task after delay. The timer is in-process;
// if the instance dies before it fires, the next scheduled cycle
// re-covers the same documents.
func (q *RedisQueue) PushDelayed(_ context.Context, task Task, delay time.Duration) {
	time.AfterFunc(delay, func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := q.Push(pushCtx, task); err != nil {
			logging.WithCorrelation(task.CycleID).Error("delayed re-enqueue failed", "error", err)
		}
	})
}

// Pop blocks for up to timeout waiting for a task. ok is false when the
// wait timed out with nothing queued.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Task{}, false, nil
		}
		return Task{}, false, fmt.Errorf("queue pop: %w", err)
	}

	// BRPop returns [key, value].
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return Task{}, false, fmt.Errorf("decode task: %w", err)
	}
	return task, true, nil
}

// RedisLock serializes cycle execution across instances with a TTL'd
// SETNX key. The TTL bounds how long a crashed holder can block others.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLock creates a cycle lock with the given TTL.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLock{client: client, ttl: ttl}
}

// TryAcquire attempts to take the lock without blocking.
func (l *RedisLock) TryAcquire(ctx context.Context, cycleID string) bool {
	ok, err := l.client.SetNX(ctx, lockKey, cycleID, l.ttl).Result()
	if err != nil {
		logging.WithCorrelation(cycleID).Warn("cycle lock acquire failed", "error", err)
		return false
	}
	return ok
}

// Release frees the lock.
func (l *RedisLock) Release(ctx context.Context) {
	if err := l.client.Del(ctx, lockKey).Err(); err != nil {
		slog.Warn("cycle lock release failed", "error", err)
	}
}

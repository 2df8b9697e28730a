package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dkotova/rewritepipe/internal/task"
)

const (
	pendingKey = "rewrite:pending"
	taskPrefix = "rewrite:task:"

	// TaskTTL is how long a task record stays reachable after creation,
	// regardless of its state. Expired records read as "not found".
	TaskTTL = 1 * time.Hour
)

// Queue is the task store and dispatch channel in one: task records live as
// JSON values with a TTL, pending task ids sit on a redis list consumed by
// the worker pool. The list entry carries only the id; everything else is
// looked up from the record.
type Queue struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Create writes a fresh pending task and pushes its id onto the pending list.
// It returns as soon as both writes are done; nothing waits for a worker.
func (q *Queue) Create(ctx context.Context, source task.Source, options task.Options) (*task.Task, error) {
	now := time.Now()
	t := &task.Task{
		ID:        uuid.New().String(),
		Source:    source,
		Options:   options,
		Status:    task.StatusPending,
		Step:      task.StatusPending.Step(),
		Progress:  0,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskPrefix+t.ID, data, TaskTTL)
	pipe.RPush(ctx, pendingKey, t.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return t, nil
}

// Get returns the task or (nil, nil) when the id is unknown or expired.
func (q *Queue) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := q.client.Get(ctx, taskPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}

	return &t, nil
}

// Update overwrites the stored record. Last writer wins: the pipeline is the
// only writer while a task is active, so no locking is needed. The TTL stays
// anchored to CreatedAt so updates never extend a task's lifetime.
func (q *Queue) Update(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now()
	t.Step = t.Status.Step()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	ttl := TaskTTL - time.Since(t.CreatedAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := q.client.Set(ctx, taskPrefix+t.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

// Pop blocks up to timeout for the next pending task id. Returns "" when the
// list stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.client.BLPop(ctx, timeout, pendingKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("pop task: %w", err)
	}
	return result[1], nil
}

// Cancel sets the cooperative cancel flag on a live, non-terminal task. The
// pipeline observes the flag between chunks and at stage boundaries.
func (q *Queue) Cancel(ctx context.Context, id string) (*task.Task, error) {
	t, err := q.Get(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return t, nil
	}
	t.Canceled = true
	if err := q.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns all live task records.
func (q *Queue) List(ctx context.Context) ([]*task.Task, error) {
	keys, err := q.client.Keys(ctx, taskPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if len(keys) == 0 {
		return []*task.Task{}, nil
	}

	pipe := q.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		tasks = append(tasks, &t)
	}

	return tasks, nil
}

// Delete removes a task record. Normally TTL expiry does this; the API
// exposes it for manual cleanup.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if err := q.client.Del(ctx, taskPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

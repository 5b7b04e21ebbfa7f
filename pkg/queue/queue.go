package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Task types handled by the ingest worker.
const (
	TaskTypeFileIngest = "file:ingest"
)

// Priority values map onto the asynq queues below.
const (
	PriorityCritical = 1
	PriorityDefault  = 2
	PriorityLow      = 3
)

const statusTTL = 24 * time.Hour

// Queue is the enqueue and status surface exposed to the API layer.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
}

// Task is the queued unit of work. Payload carries the pipeline request.
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// TaskStatus is the externally visible state of a queued task.
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue backs Queue with asynq over redis. Final task statuses are
// cached in redis with a TTL so the API can answer status queries after
// asynq has pruned the task.
type AsynqQueue struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	redis      *redis.Client
	maxRetries int
	timeout    time.Duration
}

type Config struct {
	RedisAddr  string
	RedisDB    int
	MaxRetries int
	Timeout    time.Duration
}

func NewAsynqQueue(cfg *Config) (*AsynqQueue, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
	}, nil
}

// Enqueue routes the task to a priority queue and records its asynq ID.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(q.maxRetries),
		asynq.Timeout(q.timeout),
	}
	if task.ID != "" {
		opts = append(opts, asynq.TaskID(task.ID))
	}

	opts = append(opts, asynq.Queue(queueForPriority(task.Priority)))

	t := asynq.NewTask(task.Type, payload, opts...)
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	task.ID = info.ID
	return nil
}

// GetTaskStatus checks the redis status cache first, then falls back to
// asynq's own task bookkeeping across the priority queues.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	key := statusKey(taskID)
	data, err := q.redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	var (
		info    *asynq.TaskInfo
		lastErr error
	)
	for _, queueName := range []string{"critical", "default", "low"} {
		info, err = q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			break
		}
		lastErr = err
	}
	if info == nil {
		return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
	}

	return convertAsynqStatus(info), nil
}

// CancelTask deletes a pending task from whichever queue holds it.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	var lastErr error
	for _, queueName := range []string{"critical", "default", "low"} {
		if err := q.inspector.DeleteTask(queueName, taskID); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveFinalStatus caches a terminal status so it outlives asynq retention.
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (q *AsynqQueue) Close() error {
	q.redis.Close()
	return q.client.Close()
}

// queueForPriority picks the asynq queue for a task priority. A zero
// value means the caller omitted the field, so it gets the default
// queue rather than the lowest one.
func queueForPriority(priority int) string {
	switch priority {
	case PriorityCritical:
		return "critical"
	case PriorityLow:
		return "low"
	default:
		return "default"
	}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
	default:
		status.Status = "pending"
	}

	return status
}

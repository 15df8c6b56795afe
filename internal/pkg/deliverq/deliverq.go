package deliverq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisc "github.com/justinchung712/swe-repo-notify/internal/pkg/redis"
)

// Channel selects the delivery medium for a task.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Task is one outbound message waiting in Redis. Delivery is fire-and-forget
// from the API's perspective: enqueue never blocks on provider calls, and
// provider failures are retried here, not surfaced to the caller.
type Task struct {
	ID        string    `json:"id"`
	Channel   Channel   `json:"channel"`
	To        string    `json:"to"`
	Subject   string    `json:"subject,omitempty"`
	HTML      string    `json:"html,omitempty"`
	Text      string    `json:"text"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	keyPending  = "srn:deliver:pending"
	maxAttempts = 3
	retryDelay  = 30 * time.Second
	popTimeout  = 5 * time.Second
)

// Queue is the Redis-backed outbound delivery queue.
type Queue struct {
	rc *redisc.Client
}

func NewQueue(rc *redisc.Client) *Queue {
	return &Queue{rc: rc}
}

// Enqueue adds a delivery task to the pending list.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rc.Raw().LPush(ctx, keyPending, data).Err()
}

// pop blocks until a task is available or the timeout elapses.
// Returns (nil, nil) on timeout.
func (q *Queue) pop(ctx context.Context) (*Task, error) {
	res, err := q.rc.Raw().BRPop(ctx, popTimeout, keyPending).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("deliverq: unexpected brpop reply length %d", len(res))
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("deliverq: corrupt task payload: %w", err)
	}
	return &task, nil
}

// requeue pushes a failed task back for another attempt.
func (q *Queue) requeue(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rc.Raw().LPush(ctx, keyPending, data).Err()
}

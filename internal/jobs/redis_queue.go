package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	workList    = "jobs:queue"
	statusTTL   = 24 * time.Hour
	jobKeyPref  = "job:"
	timeEncoded = time.RFC3339Nano
)

// RedisQueue stores job status in a per-job hash and dispatches work
// through a Redis list. A worker process consumes the list with Dequeue.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func jobKey(id string) string {
	return jobKeyPref + id
}

func (q *RedisQueue) Submit(ctx context.Context, jobType JobType, payload map[string]any) (string, error) {
	if !jobType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}

	id := uuid.NewString()

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]any{
		"type":         string(jobType),
		"state":        string(StatePending),
		"payload":      string(data),
		"submitted_at": time.Now().UTC().Format(timeEncoded),
	})
	pipe.Expire(ctx, jobKey(id), statusTTL)
	pipe.LPush(ctx, workList, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}

	return id, nil
}

func (q *RedisQueue) Poll(ctx context.Context, jobID string) (*JobStatus, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("poll job: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	status := &JobStatus{
		ID:     jobID,
		Type:   JobType(fields["type"]),
		State:  JobState(fields["state"]),
		Result: fields["result"],
		Error:  fields["error"],
	}

	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &status.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if raw := fields["submitted_at"]; raw != "" {
		if ts, err := time.Parse(timeEncoded, raw); err == nil {
			status.SubmittedAt = ts
		}
	}

	return status, nil
}

// Dequeue blocks up to timeout for the next job id. A nil result with nil
// error means the wait timed out and the caller should loop.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*JobStatus, error) {
	vals, err := q.client.BRPop(ctx, timeout, workList).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	// BRPOP returns [list, value].
	if len(vals) != 2 {
		return nil, fmt.Errorf("dequeue job: unexpected reply %v", vals)
	}
	return q.Poll(ctx, vals[1])
}

func (q *RedisQueue) MarkRunning(ctx context.Context, jobID string) error {
	return q.client.HSet(ctx, jobKey(jobID), "state", string(StateRunning)).Err()
}

func (q *RedisQueue) MarkDone(ctx context.Context, jobID, result string) error {
	return q.client.HSet(ctx, jobKey(jobID),
		"state", string(StateDone),
		"result", result,
	).Err()
}

func (q *RedisQueue) MarkFailed(ctx context.Context, jobID, reason string) error {
	return q.client.HSet(ctx, jobKey(jobID),
		"state", string(StateFailed),
		"error", reason,
	).Err()
}

// Package queue moves completed-turn persistence onto a durable Redis-backed task queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Patelhetu-177/SkillSphere/internal/chat"
)

// TypePersistTurn is the task type for completed turns.
const TypePersistTurn = "turn:persist"

const (
	DefaultQueue    = "turns"
	DefaultMaxRetry = 8
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues completed turns. When the queue is unreachable it hands the record
// to a fallback dispatcher so the turn is still persisted in-process.
type Dispatcher struct {
	client   enqueuer
	fallback chat.Dispatcher
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher. fallback may be nil.
func NewDispatcher(client *asynq.Client, fallback chat.Dispatcher) *Dispatcher {
	return newDispatcher(client, fallback)
}

func newDispatcher(client enqueuer, fallback chat.Dispatcher) *Dispatcher {
	return &Dispatcher{
		client:   client,
		fallback: fallback,
		queue:    DefaultQueue,
		maxRetry: DefaultMaxRetry,
		timeout:  30 * time.Second,
	}
}

// NewTask encodes rec as a persistence task.
func NewTask(rec chat.TurnRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn record: %w", err)
	}
	return asynq.NewTask(TypePersistTurn, payload), nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, rec chat.TurnRecord) error {
	task, err := NewTask(rec)
	if err != nil {
		return err
	}

	// The message id doubles as task id so a repeated dispatch does not enqueue twice.
	_, err = d.client.EnqueueContext(context.WithoutCancel(ctx), task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxRetry),
		asynq.Timeout(d.timeout),
		asynq.TaskID(rec.MessageID),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, asynq.ErrTaskIDConflict):
		slog.Debug("turn already enqueued", "message_id", rec.MessageID)
		return nil
	case d.fallback != nil:
		slog.Warn("turn enqueue failed, persisting in-process", "message_id", rec.MessageID, "error", err.Error())
		return d.fallback.Dispatch(ctx, rec)
	default:
		return fmt.Errorf("failed to enqueue turn %s: %w", rec.MessageID, err)
	}
}

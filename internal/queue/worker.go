package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
)

// Persister writes a completed turn.
type Persister interface {
	Persist(ctx context.Context, rec chat.TurnRecord) error
}

// Worker consumes persistence tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker creates a Worker reading from the default queue.
func NewWorker(redis asynq.RedisConnOpt, concurrency int, p Persister) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency:  concurrency,
		Queues:       map[string]int{DefaultQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(reportFailure),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePersistTurn, wrap(TypePersistTurn, persistHandler(p)))
	return &Worker{server: server, mux: mux}
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start queue worker: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func persistHandler(p Persister) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var rec chat.TurnRecord
		if err := json.Unmarshal(task.Payload(), &rec); err != nil {
			return fmt.Errorf("failed to decode turn record: %v: %w", err, asynq.SkipRetry)
		}
		if rec.MessageID == "" || !rec.Key.Valid() {
			return fmt.Errorf("turn record missing identity: %w", asynq.SkipRetry)
		}
		if err := p.Persist(ctx, rec); err != nil {
			return err
		}
		metrics.RecordPersist("success")
		return nil
	}
}

func wrap(name string, h asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("task handler panic", "name", name, "error", r)
				err = fmt.Errorf("task handler panic: %v", r)
			}
		}()

		taskID, _ := asynq.GetTaskID(ctx)
		slog.Debug("task start", "name", name, "task_id", taskID)
		if err = h(ctx, task); err != nil {
			slog.Error("task error", "name", name, "task_id", taskID, "error", err.Error())
			return err
		}
		slog.Debug("task done", "name", name, "task_id", taskID)
		return nil
	}
}

// reportFailure counts failed attempts; the last one is a dead letter.
func reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry {
		metrics.RecordPersist("retry")
		return
	}
	metrics.RecordPersist("dead_letter")
	slog.Error("turn persistence exhausted retries",
		"type", task.Type(),
		"retried", retried,
		"payload", string(task.Payload()),
		"error", err.Error())
}

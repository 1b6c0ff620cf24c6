package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeClone is the asynq task type for clone jobs.
const TaskTypeClone = "clone:process"

// ClonePayload is the task body; the session carries everything else.
type ClonePayload struct {
	SessionID string `json:"session_id"`
}

// Dispatcher hands a pending session to the pipeline without blocking the
// submitting request.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string) error
}

// AsynqDispatcher enqueues clone jobs on the task queue. Jobs are enqueued
// with no retries: a stage failure is terminal for the session, so
// re-running the task could only violate the session's immutability.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(ClonePayload{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal clone payload: %w", err)
	}
	task := asynq.NewTask(TaskTypeClone, body)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue("clone"), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("failed to enqueue clone task: %w", err)
	}
	return nil
}

// GoDispatcher runs the pipeline in a goroutine inside the API process.
// Used when Redis is not available, and by tests.
type GoDispatcher struct {
	runner *Runner
}

func NewGoDispatcher(runner *Runner) *GoDispatcher {
	return &GoDispatcher{runner: runner}
}

func (d *GoDispatcher) Dispatch(ctx context.Context, sessionID string) error {
	// Deliberately detached from the request context: the job outlives the
	// HTTP request that submitted it.
	go func() {
		_ = d.runner.Run(context.Background(), sessionID)
	}()
	return nil
}

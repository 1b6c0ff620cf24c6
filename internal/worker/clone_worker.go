package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/sitecloner/api/internal/pipeline"
)

// CloneWorker processes queued clone jobs by handing them to the pipeline
// runner. Sequencing and failure handling live in the runner; the worker
// only decodes the task.
type CloneWorker struct {
	runner *pipeline.Runner
}

// NewCloneWorker creates a new clone worker
func NewCloneWorker(runner *pipeline.Runner) *CloneWorker {
	return &CloneWorker{runner: runner}
}

// ProcessTask handles one clone task
func (w *CloneWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload pipeline.ClonePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal clone payload: %w", err)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("missing session_id in payload")
	}

	log.Printf("Starting clone job: %s", payload.SessionID)
	return w.runner.Run(ctx, payload.SessionID)
}

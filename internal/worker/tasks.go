package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/shortreel/api/internal/model"
)

const (
	TaskTypeProjectPromote = "project:promote"
	TaskTypeProjectSync    = "project:sync"

	// QueueProjects is the asynq queue all project side effects run on.
	QueueProjects = "projects"
)

// PromotePayload carries everything the promotion task needs. It embeds a
// draft snapshot so the task is self-contained: it does not reach back into
// the live store and can safely run after the draft has moved on.
type PromotePayload struct {
	DraftID   string            `json:"draftId"`
	ProjectID string            `json:"projectId,omitempty"`
	JobID     string            `json:"jobId"`
	Draft     model.Draft       `json:"draft"`
	Result    model.RenderState `json:"result"`
}

// SyncPayload pushes post-promotion settings changes to the project record.
type SyncPayload struct {
	DraftID   string      `json:"draftId"`
	ProjectID string      `json:"projectId"`
	Draft     model.Draft `json:"draft"`
}

// AsynqEnqueuer hands tasks to asynq with the queue options every project
// side effect uses.
type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer(client *asynq.Client) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client}
}

func (e *AsynqEnqueuer) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(taskType, data)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueProjects),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

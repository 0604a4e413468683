package workflows

import (
	"context"
	"time"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/platform/logger"
)

// WorkflowEnqueuer hands a trigger event to the task queue.
// *scheduler.Client implements it.
type WorkflowEnqueuer interface {
	EnqueueWorkflow(ctx context.Context, eventType string, payload ports.WorkflowPayload) error
}

const (
	enqueueTimeout = 5 * time.Second
	inlineTimeout  = 30 * time.Second
)

// QueueDispatcher is the production dispatcher: it enqueues the trigger on
// the task queue from a detached goroutine. Dispatch never blocks the
// calling request and never reports failure to it; a failed enqueue is a
// log line.
type QueueDispatcher struct {
	enqueuer WorkflowEnqueuer
	log      *logger.Logger
}

func NewQueueDispatcher(enqueuer WorkflowEnqueuer, log *logger.Logger) *QueueDispatcher {
	return &QueueDispatcher{enqueuer: enqueuer, log: log}
}

func (d *QueueDispatcher) Dispatch(eventType string, payload ports.WorkflowPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()

		if err := d.enqueuer.EnqueueWorkflow(ctx, eventType, payload); err != nil {
			d.log.DispatchError(eventType, err)
		}
	}()
}

// InlineDispatcher runs the executor in-process. Used when no queue is
// configured; keeps single-binary deployments working without Redis.
type InlineDispatcher struct {
	executor *Executor
	log      *logger.Logger
}

func NewInlineDispatcher(executor *Executor, log *logger.Logger) *InlineDispatcher {
	return &InlineDispatcher{executor: executor, log: log}
}

func (d *InlineDispatcher) Dispatch(eventType string, payload ports.WorkflowPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
		defer cancel()

		if err := d.executor.Execute(ctx, eventType, payload); err != nil {
			d.log.DispatchError(eventType, err)
		}
	}()
}

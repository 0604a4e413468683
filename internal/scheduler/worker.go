package scheduler

import (
	"context"
	"fmt"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/workflows"
	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	executor *workflows.Executor
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, executor *workflows.Executor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		executor: executor,
		log:      log,
	}

	mux.HandleFunc(TaskWorkflowExecute, w.handleWorkflowExecute)

	return w, nil
}

func (w *Worker) handleWorkflowExecute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWorkflowExecutePayload(task)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	engagementID, err := uuid.Parse(payload.EngagementID)
	if err != nil {
		return err
	}

	return w.executor.Execute(ctx, payload.EventType, ports.WorkflowPayload{
		OrganizationID: orgID,
		EngagementID:   engagementID,
		ActivityType:   payload.ActivityType,
		Metadata:       payload.Metadata,
		TriggeredAt:    payload.TriggeredAt,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

package workflows

import (
	"context"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Executor resolves the enabled workflows for a trigger event and runs them
// concurrently. Individual run failures are logged, never propagated: one
// broken webhook must not fail or retry the rest of the batch.
type Executor struct {
	store   WorkflowStore
	runners map[string]Runner
	log     *logger.Logger
}

func NewExecutor(store WorkflowStore, log *logger.Logger) *Executor {
	return &Executor{
		store: store,
		runners: map[string]Runner{
			ActionWebhook: NewWebhookRunner(),
			ActionLog:     NewLogRunner(log),
		},
		log: log,
	}
}

// RegisterRunner adds or replaces the runner for an action kind.
func (e *Executor) RegisterRunner(kind string, runner Runner) {
	e.runners[kind] = runner
}

// Execute fans the payload out to every enabled workflow for the event
// type. Returns an error only when the config lookup itself fails, so the
// queue can retry the whole task.
func (e *Executor) Execute(ctx context.Context, eventType string, payload ports.WorkflowPayload) error {
	matched, err := e.store.ListEnabled(ctx, payload.OrganizationID, eventType)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, workflow := range matched {
		wf := workflow
		group.Go(func() error {
			runner, ok := e.runners[wf.Action.Kind]
			if !ok {
				e.log.Error("unknown workflow action kind", "kind", wf.Action.Kind, "workflow", wf.Name)
				return nil
			}
			if err := runner.Run(groupCtx, wf, payload); err != nil {
				e.log.DispatchError(eventType, err)
			}
			return nil
		})
	}
	return group.Wait()
}

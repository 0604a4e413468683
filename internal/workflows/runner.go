package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/platform/logger"
)

// Runner executes one workflow action for one trigger payload.
type Runner interface {
	Run(ctx context.Context, workflow Workflow, payload ports.WorkflowPayload) error
}

// Action kinds understood by the executor.
const (
	ActionWebhook = "webhook"
	ActionLog     = "log"
)

// WebhookRunner delivers the trigger payload to the workflow's URL.
type WebhookRunner struct {
	client *http.Client
}

func NewWebhookRunner() *WebhookRunner {
	return &WebhookRunner{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookEnvelope struct {
	Workflow  string                `json:"workflow"`
	EventType string                `json:"eventType"`
	Payload   ports.WorkflowPayload `json:"payload"`
}

func (r *WebhookRunner) Run(ctx context.Context, workflow Workflow, payload ports.WorkflowPayload) error {
	if workflow.Action.URL == "" {
		return fmt.Errorf("workflow %s has no webhook url", workflow.ID)
	}

	body, err := json.Marshal(webhookEnvelope{
		Workflow:  workflow.Name,
		EventType: workflow.EventType,
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, workflow.Action.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range workflow.Action.Headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogRunner writes the trigger to the log. Useful as a no-op automation
// target and for verifying workflow configs in lower environments.
type LogRunner struct {
	log *logger.Logger
}

func NewLogRunner(log *logger.Logger) *LogRunner {
	return &LogRunner{log: log}
}

func (r *LogRunner) Run(ctx context.Context, workflow Workflow, payload ports.WorkflowPayload) error {
	r.log.Info("workflow triggered",
		"workflow", workflow.Name,
		"eventType", workflow.EventType,
		"engagementId", payload.EngagementID,
	)
	return nil
}

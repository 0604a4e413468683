package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskWorkflowExecute = "workflows.execute"

type WorkflowExecutePayload struct {
	EventType      string          `json:"eventType"`
	OrganizationID string          `json:"organizationId"`
	EngagementID   string          `json:"engagementId"`
	ActivityType   string          `json:"activityType"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	TriggeredAt    string          `json:"triggeredAt"`
}

func NewWorkflowExecuteTask(payload WorkflowExecutePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkflowExecute, data), nil
}

func ParseWorkflowExecutePayload(task *asynq.Task) (WorkflowExecutePayload, error) {
	var payload WorkflowExecutePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WorkflowExecutePayload{}, err
	}
	return payload, nil
}

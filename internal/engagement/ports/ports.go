// Package ports defines the engagement module's outbound interfaces.
// Concrete implementations live in adapters, telephony, and workflows;
// the service depends only on these contracts.
package ports

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Actor identifies who is attempting a state-mutating operation.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

// Action names a permission-gated mutation.
type Action string

const (
	ActionClose Action = "close"
	ActionReset Action = "reset"
)

// PermissionGate decides whether an actor may mutate an engagement.
// Role and team resolution is an external concern; this module only
// consumes the boolean capability check.
type PermissionGate interface {
	CanMutate(ctx context.Context, actor Actor, engagementID uuid.UUID, action Action) (bool, error)
}

// CallStatusProvider queries the external telephony collaborator for the
// current state of a call leg. An absent call returns ("", nil): absence is
// not an error, the caller maps it to a conservative default.
type CallStatusProvider interface {
	LookupCallState(ctx context.Context, contactID string) (string, error)
}

// WorkflowPayload is the envelope handed to the automation layer.
type WorkflowPayload struct {
	OrganizationID uuid.UUID       `json:"organizationId"`
	EngagementID   uuid.UUID       `json:"engagementId"`
	ActivityType   string          `json:"activityType"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	TriggeredAt    string          `json:"triggeredAt"`
}

// Dispatcher fans an event out to the automation layer. Best-effort and
// asynchronous: it must never fail, block, or delay the triggering
// request's response.
type Dispatcher interface {
	Dispatch(eventType string, payload WorkflowPayload)
}

// RecordEnsurer is the external collaborator that guarantees a downstream
// record (e.g. a deal or contract shell) exists once an engagement closes.
type RecordEnsurer interface {
	EnsureDownstreamRecord(ctx context.Context, engagementID uuid.UUID) error
}

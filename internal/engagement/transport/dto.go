// Package transport defines request/response DTOs for the engagement module.
package transport

import (
	"encoding/json"
	"time"

	"engagement_backend/internal/engagement/repository"

	"github.com/google/uuid"
)

// CloseEngagementRequest carries the optional close reason.
type CloseEngagementRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// BatchResetRequest lists the engagements to reset within a pool.
type BatchResetRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
}

// BatchResetResponse reports how many entities were actually reset.
// Ids outside the pool are excluded from the count, not errors.
type BatchResetResponse struct {
	OK    bool `json:"ok"`
	Reset int  `json:"reset"`
}

// DealRoomActivityRequest records an activity against a deal room. Metadata
// is an opaque payload whose shape depends on the activity type.
type DealRoomActivityRequest struct {
	Type     string          `json:"type" validate:"required,max=64"`
	Metadata json.RawMessage `json:"metadata"`
}

// CallStatusResponse is the reconciled call state for a contact.
type CallStatusResponse struct {
	ContactID string `json:"contactId"`
	Status    string `json:"status"`
}

// ActivityResponse is a single audit-trail entry.
type ActivityResponse struct {
	ID           uuid.UUID       `json:"id"`
	EngagementID uuid.UUID       `json:"engagementId"`
	ActorID      *uuid.UUID      `json:"actorId,omitempty"`
	Type         string          `json:"type"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ToActivityResponse maps a repository activity to its API shape.
func ToActivityResponse(a repository.Activity) ActivityResponse {
	metadata := json.RawMessage(a.Metadata)
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	return ActivityResponse{
		ID:           a.ID,
		EngagementID: a.EngagementID,
		ActorID:      a.ActorID,
		Type:         string(a.Type),
		Metadata:     metadata,
		CreatedAt:    a.CreatedAt,
	}
}

// ToActivityResponses maps a slice of activities.
func ToActivityResponses(items []repository.Activity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ToActivityResponse(a))
	}
	return out
}

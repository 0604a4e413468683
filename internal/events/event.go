// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"encoding/json"

	"engagement_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Engagement Domain Events
// =============================================================================

// EmailOpened is published on the first successful open transition for an
// outreach token. Duplicate pixel hits never republish it.
type EmailOpened struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	OpenToken      string    `json:"openToken"`
}

func (e EmailOpened) EventName() string { return "engagement.email.opened" }

// LinkClicked is published when a tracked link redirect carried a
// correlation id that resolved to an engagement.
type LinkClicked struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	TargetURL      string    `json:"targetUrl"`
}

func (e LinkClicked) EventName() string { return "engagement.link.clicked" }

// MeetingLinkVisited is published when a lead follows its meeting link.
type MeetingLinkVisited struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	MeetingURL     string    `json:"meetingUrl"`
}

func (e MeetingLinkVisited) EventName() string { return "engagement.meeting.visited" }

// EngagementClosed is published when an engagement is closed by an agent.
type EngagementClosed struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ClosedByID     uuid.UUID `json:"closedById"`
	Reason         string    `json:"reason,omitempty"`
}

func (e EngagementClosed) EventName() string { return "engagement.closed" }

// EngagementReset is published when outreach state is forced back to IDLE.
type EngagementReset struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ResetByID      uuid.UUID `json:"resetById"`
}

func (e EngagementReset) EventName() string { return "engagement.reset" }

// DealRoomOpened is published each time a deal room is viewed.
type DealRoomOpened struct {
	BaseEvent
	EngagementID   uuid.UUID       `json:"engagementId"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	TotalViews     int64           `json:"totalViews"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (e DealRoomOpened) EventName() string { return "engagement.dealroom.opened" }

// CallStatusChanged is published when a provider lookup mapped to a new
// local call status for an engagement.
type CallStatusChanged struct {
	BaseEvent
	EngagementID   uuid.UUID `json:"engagementId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	CallStatus     string    `json:"callStatus"`
}

func (e CallStatusChanged) EventName() string { return "engagement.call.status_changed" }

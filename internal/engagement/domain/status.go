// Package domain defines the engagement lifecycle vocabulary: outreach
// statuses, call statuses, and activity types.
package domain

import "strings"

// OutreachStatus is the lead-axis lifecycle state.
//
// The canonical path is linear:
//
//	IDLE -> SENT -> OPENED -> MEETING_LINK_CLICKED -> CLOSED
//
// Transitions are not enforced forward-only; reset is the only intended
// backward move and CLOSED is terminal by convention, not by constraint.
// Re-engaging a closed lead is a legitimate operational sequence.
type OutreachStatus string

const (
	OutreachIdle               OutreachStatus = "IDLE"
	OutreachSent               OutreachStatus = "SENT"
	OutreachOpened             OutreachStatus = "OPENED"
	OutreachMeetingLinkClicked OutreachStatus = "MEETING_LINK_CLICKED"
	OutreachClosed             OutreachStatus = "CLOSED"
)

// CallStatus is the telephony axis. It evolves independently from the
// outreach axis and is never written by the pixel/click handlers.
type CallStatus string

const (
	CallUnknown   CallStatus = "UNKNOWN"
	CallInitiated CallStatus = "INITIATED"
	CallRinging   CallStatus = "RINGING"
	CallConnected CallStatus = "CONNECTED"
	CallEnded     CallStatus = "ENDED"
	CallFailed    CallStatus = "FAILED"
)

// MapProviderCallState converts an external provider's call state into the
// local CallStatus. An empty or unrecognized state maps to INITIATED: the
// initiating call leg may not yet be visible to the provider, so absence is
// treated as "call just started" rather than an error.
func MapProviderCallState(state string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "queued", "initiated", "dialing":
		return CallInitiated
	case "ringing":
		return CallRinging
	case "in-progress", "connected", "answered":
		return CallConnected
	case "completed", "ended", "hangup":
		return CallEnded
	case "busy", "failed", "no-answer", "canceled":
		return CallFailed
	default:
		return CallInitiated
	}
}

// EntityKind distinguishes the two engaged entity flavours.
type EntityKind string

const (
	KindLead     EntityKind = "lead"
	KindDealRoom EntityKind = "deal_room"
)

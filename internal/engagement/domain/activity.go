package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType is the closed set of audit-trail entry types.
type ActivityType string

const (
	ActivityEmailOpened        ActivityType = "email_opened"
	ActivityLinkClicked        ActivityType = "link_clicked"
	ActivityMeetingLinkClicked ActivityType = "meeting_link_clicked"
	ActivityEmailReset         ActivityType = "email_reset"
	ActivityStatusChanged      ActivityType = "status_changed"
	ActivityCallEnded          ActivityType = "call_ended"
	// ActivityDealRoomOpened uses the historical upper-case wire value that
	// deal-room clients send.
	ActivityDealRoomOpened ActivityType = "OPENED"
	ActivityAddonsSelected ActivityType = "ADDONS_SELECTED"
)

// ActivityMetadata is the tagged union of per-type activity payloads.
// Each activity type carries its own known field set instead of a
// free-form object.
type ActivityMetadata interface {
	ActivityType() ActivityType
}

// EmailOpenedMetadata records where the open signal came from.
type EmailOpenedMetadata struct {
	OpenToken string `json:"openToken"`
	UserAgent string `json:"userAgent,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
}

func (EmailOpenedMetadata) ActivityType() ActivityType { return ActivityEmailOpened }

// LinkClickedMetadata records the redirect target of a tracked click.
type LinkClickedMetadata struct {
	TargetURL     string `json:"targetUrl"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (LinkClickedMetadata) ActivityType() ActivityType { return ActivityLinkClicked }

// MeetingLinkClickedMetadata records which meeting URL the visitor was sent to.
type MeetingLinkClickedMetadata struct {
	MeetingURL   string `json:"meetingUrl"`
	FromFallback bool   `json:"fromFallback"`
}

func (MeetingLinkClickedMetadata) ActivityType() ActivityType { return ActivityMeetingLinkClicked }

// EmailResetMetadata records the state an engagement was reset from.
type EmailResetMetadata struct {
	PreviousStatus OutreachStatus `json:"previousStatus"`
}

func (EmailResetMetadata) ActivityType() ActivityType { return ActivityEmailReset }

// StatusChangedMetadata records an outreach status transition.
type StatusChangedMetadata struct {
	From   OutreachStatus `json:"from"`
	To     OutreachStatus `json:"to"`
	Reason string         `json:"reason,omitempty"`
}

func (StatusChangedMetadata) ActivityType() ActivityType { return ActivityStatusChanged }

// CallEndedMetadata records the terminal provider state of a call.
type CallEndedMetadata struct {
	ProviderState string     `json:"providerState"`
	CallStatus    CallStatus `json:"callStatus"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
}

func (CallEndedMetadata) ActivityType() ActivityType { return ActivityCallEnded }

// DealRoomOpenedMetadata records a single deal-room view.
type DealRoomOpenedMetadata struct {
	TotalViews int64           `json:"totalViews"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

func (DealRoomOpenedMetadata) ActivityType() ActivityType { return ActivityDealRoomOpened }

// AddonsSelectedMetadata carries the opaque add-on selection payload.
type AddonsSelectedMetadata struct {
	SelectedAddons json.RawMessage `json:"selectedAddons"`
}

func (AddonsSelectedMetadata) ActivityType() ActivityType { return ActivityAddonsSelected }

// EncodeMetadata serializes a metadata variant for storage.
func EncodeMetadata(meta ActivityMetadata) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

// DecodeMetadata deserializes stored metadata into its typed variant based
// on the activity type. Unknown types return the raw bytes untyped via an
// error so callers can decide how to degrade.
func DecodeMetadata(activityType ActivityType, raw []byte) (ActivityMetadata, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var meta ActivityMetadata
	switch activityType {
	case ActivityEmailOpened:
		meta = &EmailOpenedMetadata{}
	case ActivityLinkClicked:
		meta = &LinkClickedMetadata{}
	case ActivityMeetingLinkClicked:
		meta = &MeetingLinkClickedMetadata{}
	case ActivityEmailReset:
		meta = &EmailResetMetadata{}
	case ActivityStatusChanged:
		meta = &StatusChangedMetadata{}
	case ActivityCallEnded:
		meta = &CallEndedMetadata{}
	case ActivityDealRoomOpened:
		meta = &DealRoomOpenedMetadata{}
	case ActivityAddonsSelected:
		meta = &AddonsSelectedMetadata{}
	default:
		return nil, fmt.Errorf("unknown activity type %q", activityType)
	}

	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

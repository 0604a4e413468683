package repository

import (
	"context"
	"encoding/json"
	"time"

	"engagement_backend/internal/engagement/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// EngagementReader provides read-only access to engaged entities.
type EngagementReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Engagement, error)
	GetByOpenToken(ctx context.Context, token string) (Engagement, error)
	GetByExternalContactID(ctx context.Context, contactID string) (Engagement, error)
	ResolveMeetingURL(ctx context.Context, id uuid.UUID) (*string, error)
}

// LifecycleWriter mutates the lifecycle state of an engaged entity.
type LifecycleWriter interface {
	// MarkOpened must be a single atomic conditional write; the returned
	// bool reports whether this call won the first-open transition.
	MarkOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) (bool, error)
	SetOutreachStatus(ctx context.Context, id uuid.UUID, status domain.OutreachStatus) error
	SetCallStatus(ctx context.Context, id uuid.UUID, status domain.CallStatus) error
	ResetOutreach(ctx context.Context, id uuid.UUID) error
	ResetOutreachBatch(ctx context.Context, poolID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

// ActivityLog appends and reads the immutable audit trail.
type ActivityLog interface {
	AppendActivity(ctx context.Context, params AppendActivityParams) (Activity, error)
	ListActivities(ctx context.Context, engagementID uuid.UUID) ([]Activity, error)
}

// DealRoomStore accesses the deal-room projection.
type DealRoomStore interface {
	GetDealRoom(ctx context.Context, engagementID uuid.UUID) (DealRoom, error)
	EnsureDealRoom(ctx context.Context, engagementID uuid.UUID) error
	RecordDealRoomView(ctx context.Context, engagementID uuid.UUID, viewedAt time.Time) (int64, error)
	SetSelectedAddons(ctx context.Context, engagementID uuid.UUID, addons json.RawMessage) error
}

// EngagementRepository combines all repository capabilities.
// The concrete *Repository satisfies it; services depend on this interface
// so tests can substitute fakes.
type EngagementRepository interface {
	EngagementReader
	LifecycleWriter
	ActivityLog
	DealRoomStore
}

var _ EngagementRepository = (*Repository)(nil)

package adapters

import (
	"context"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"

	"github.com/google/uuid"
)

// DealRoomEnsurer guarantees a deal-room shell exists once an engagement
// closes, so the post-close surface is immediately servable.
type DealRoomEnsurer struct {
	store repository.DealRoomStore
}

func NewDealRoomEnsurer(store repository.DealRoomStore) *DealRoomEnsurer {
	return &DealRoomEnsurer{store: store}
}

func (a *DealRoomEnsurer) EnsureDownstreamRecord(ctx context.Context, engagementID uuid.UUID) error {
	return a.store.EnsureDealRoom(ctx, engagementID)
}

var _ ports.RecordEnsurer = (*DealRoomEnsurer)(nil)

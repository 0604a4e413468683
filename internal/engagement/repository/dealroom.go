package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DealRoom is the deal-room projection attached to an engagement.
type DealRoom struct {
	EngagementID   uuid.UUID
	TotalViews     int64
	LastViewedAt   *time.Time
	SelectedAddons json.RawMessage
	IsActive       bool
	ValidUntil     *time.Time
}

func (r *Repository) GetDealRoom(ctx context.Context, engagementID uuid.UUID) (DealRoom, error) {
	var room DealRoom
	err := r.pool.QueryRow(ctx, `
		SELECT engagement_id, total_views, last_viewed_at, selected_addons, is_active, valid_until
		FROM deal_rooms
		WHERE engagement_id = $1
	`, engagementID).Scan(
		&room.EngagementID,
		&room.TotalViews,
		&room.LastViewedAt,
		&room.SelectedAddons,
		&room.IsActive,
		&room.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DealRoom{}, ErrNotFound
		}
		return DealRoom{}, err
	}
	return room, nil
}

// RecordDealRoomView bumps the view counter with an atomic in-place
// increment. A read-modify-write here would lose updates under concurrent
// viewers; the database serializes the increments instead. Returns the
// post-increment count.
func (r *Repository) RecordDealRoomView(ctx context.Context, engagementID uuid.UUID, viewedAt time.Time) (int64, error) {
	var totalViews int64
	err := r.pool.QueryRow(ctx, `
		UPDATE deal_rooms
		SET total_views = total_views + 1,
		    last_viewed_at = $2
		WHERE engagement_id = $1
		RETURNING total_views
	`, engagementID, viewedAt).Scan(&totalViews)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return totalViews, nil
}

// EnsureDealRoom creates the deal-room shell for an engagement if it does
// not exist yet. Idempotent.
func (r *Repository) EnsureDealRoom(ctx context.Context, engagementID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deal_rooms (engagement_id)
		VALUES ($1)
		ON CONFLICT (engagement_id) DO NOTHING
	`, engagementID)
	return err
}

// SetSelectedAddons replaces the opaque add-on selection payload.
func (r *Repository) SetSelectedAddons(ctx context.Context, engagementID uuid.UUID, addons json.RawMessage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deal_rooms
		SET selected_addons = $2
		WHERE engagement_id = $1
	`, engagementID, addons)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"engagement_backend/internal/engagement/domain"

	"github.com/google/uuid"
)

// Activity is a single append-only audit-trail entry owned by an engagement.
// Rows are never updated or deleted; the log is the sole projection
// mechanism for history.
type Activity struct {
	ID           uuid.UUID
	EngagementID uuid.UUID
	ActorID      *uuid.UUID
	Type         domain.ActivityType
	Metadata     []byte
	CreatedAt    time.Time
}

type AppendActivityParams struct {
	EngagementID uuid.UUID
	// ActorID is nil for system-generated events (pixel hits, provider polls).
	ActorID  *uuid.UUID
	Type     domain.ActivityType
	Metadata domain.ActivityMetadata
}

// AppendActivity inserts an activity row. Dedup is not this layer's job:
// callers gate on the atomic conditional write upstream.
func (r *Repository) AppendActivity(ctx context.Context, params AppendActivityParams) (Activity, error) {
	metadataJSON, err := domain.EncodeMetadata(params.Metadata)
	if err != nil {
		return Activity{}, err
	}

	var activity Activity
	err = r.pool.QueryRow(ctx, `
		INSERT INTO engagement_activities (engagement_id, actor_id, activity_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, engagement_id, actor_id, activity_type, created_at
	`, params.EngagementID, params.ActorID, params.Type, metadataJSON).Scan(
		&activity.ID,
		&activity.EngagementID,
		&activity.ActorID,
		&activity.Type,
		&activity.CreatedAt,
	)
	if err != nil {
		return Activity{}, err
	}

	// metadata is excluded from RETURNING: we already hold the encoded value.
	activity.Metadata = metadataJSON
	return activity, nil
}

// ListActivities returns all activities for an engagement, newest first.
func (r *Repository) ListActivities(ctx context.Context, engagementID uuid.UUID) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, engagement_id, actor_id, activity_type, metadata, created_at
		FROM engagement_activities
		WHERE engagement_id = $1
		ORDER BY created_at DESC
	`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var activity Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.EngagementID,
			&activity.ActorID,
			&activity.Type,
			&activity.Metadata,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, activity)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"engagement_backend/internal/engagement/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("engagement not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Engagement is the engaged entity: a lead or a deal room under tracking.
type Engagement struct {
	ID                     uuid.UUID
	OrganizationID         uuid.UUID
	PoolID                 *uuid.UUID
	Kind                   domain.EntityKind
	AssignedOwnerID        *uuid.UUID
	OutreachStatus         domain.OutreachStatus
	CallStatus             domain.CallStatus
	OutreachOpenToken      *string
	OutreachSentAt         *time.Time
	OutreachOpenedAt       *time.Time
	OutreachFirstMessageID *string
	MeetingURL             *string
	ExternalContactID      *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const engagementSelectCols = `
	id, organization_id, pool_id, kind, assigned_owner_id, outreach_status, call_status,
	outreach_open_token, outreach_sent_at, outreach_opened_at, outreach_first_message_id,
	meeting_url, external_contact_id, created_at, updated_at`

func scanEngagement(row pgx.Row) (Engagement, error) {
	var e Engagement
	err := row.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.PoolID,
		&e.Kind,
		&e.AssignedOwnerID,
		&e.OutreachStatus,
		&e.CallStatus,
		&e.OutreachOpenToken,
		&e.OutreachSentAt,
		&e.OutreachOpenedAt,
		&e.OutreachFirstMessageID,
		&e.MeetingURL,
		&e.ExternalContactID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Engagement{}, ErrNotFound
		}
		return Engagement{}, err
	}
	return e, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Engagement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+engagementSelectCols+`
		FROM engagements
		WHERE id = $1
	`, id)
	return scanEngagement(row)
}

func (r *Repository) GetByOpenToken(ctx context.Context, token string) (Engagement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+engagementSelectCols+`
		FROM engagements
		WHERE outreach_open_token = $1
	`, token)
	return scanEngagement(row)
}

func (r *Repository) GetByExternalContactID(ctx context.Context, contactID string) (Engagement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+engagementSelectCols+`
		FROM engagements
		WHERE external_contact_id = $1
	`, contactID)
	return scanEngagement(row)
}

// MarkOpened performs the single atomic conditional write that closes the
// duplicate-delivery race: the opened timestamp and status are set in one
// UPDATE guarded on `outreach_opened_at IS NULL`. The affected-row count is
// the only signal for whether this call won the first-open transition.
// Concurrent duplicates see zero rows affected and must not append an
// activity or trigger downstream workflows.
func (r *Repository) MarkOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE engagements
		SET outreach_opened_at = $2,
		    outreach_status = $3,
		    updated_at = now()
		WHERE id = $1 AND outreach_opened_at IS NULL
	`, id, openedAt, domain.OutreachOpened)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetOutreachStatus writes the outreach axis unconditionally. Any handler
// may set any state; the linear path is convention, not a constraint.
func (r *Repository) SetOutreachStatus(ctx context.Context, id uuid.UUID, status domain.OutreachStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE engagements
		SET outreach_status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCallStatus writes the telephony axis. It never touches outreach fields.
func (r *Repository) SetCallStatus(ctx context.Context, id uuid.UUID, status domain.CallStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE engagements
		SET call_status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetOutreach forces the outreach axis back to IDLE and clears the
// outreach markers so a future campaign starts from a clean slate. The
// opened timestamp is cleared too; otherwise the atomic open guard would
// permanently block re-engaged leads. Activities are never touched.
func (r *Repository) ResetOutreach(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE engagements
		SET outreach_status = $2,
		    outreach_sent_at = NULL,
		    outreach_opened_at = NULL,
		    outreach_first_message_id = NULL,
		    outreach_open_token = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id, domain.OutreachIdle)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetOutreachBatch resets every engagement in the pool whose id is in ids.
// Ids outside the pool are silently excluded. Returns the ids actually reset
// so the caller can append one audit activity per entity.
func (r *Repository) ResetOutreachBatch(ctx context.Context, poolID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE engagements
		SET outreach_status = $3,
		    outreach_sent_at = NULL,
		    outreach_opened_at = NULL,
		    outreach_first_message_id = NULL,
		    outreach_open_token = NULL,
		    updated_at = now()
		WHERE id = ANY($1) AND pool_id = $2
		RETURNING id
	`, ids, poolID, domain.OutreachIdle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reset := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		reset = append(reset, id)
	}
	return reset, rows.Err()
}

// ResolveMeetingURL returns the engagement's own meeting URL, falling back
// to the assigned owner's default. Returns nil when neither resolves.
func (r *Repository) ResolveMeetingURL(ctx context.Context, id uuid.UUID) (*string, error) {
	var url *string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(e.meeting_url, u.meeting_url)
		FROM engagements e
		LEFT JOIN users u ON u.id = e.assigned_owner_id
		WHERE e.id = $1
	`, id).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return url, nil
}

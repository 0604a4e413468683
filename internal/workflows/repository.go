// Package workflows provides the workflow-trigger engine: per-organization
// automation configs keyed by event type, a dispatcher that hands trigger
// events to the queue, and an executor that runs the matching automations.
package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("workflow not found")

// ActionConfig describes what a workflow does when its event type fires.
type ActionConfig struct {
	Kind    string            `json:"kind"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Workflow is a single automation config owned by an organization.
type Workflow struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	EventType      string
	Name           string
	Enabled        bool
	Action         ActionConfig
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WorkflowUpsert is the write shape for Replace.
type WorkflowUpsert struct {
	ID        *uuid.UUID
	EventType string
	Name      string
	Enabled   bool
	Action    ActionConfig
}

// WorkflowStore is the read side the executor depends on.
type WorkflowStore interface {
	ListEnabled(ctx context.Context, organizationID uuid.UUID, eventType string) ([]Workflow, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEnabled returns the enabled workflows for one event type. Zero matches
// is the normal case for most events.
func (r *Repository) ListEnabled(ctx context.Context, organizationID uuid.UUID, eventType string) ([]Workflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, event_type, name, enabled, action, created_at, updated_at
		FROM engagement_workflows
		WHERE organization_id = $1 AND event_type = $2 AND enabled = TRUE
		ORDER BY name ASC
	`, organizationID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkflows(rows)
}

// ListByOrganization returns all workflows for an organization.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Workflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, event_type, name, enabled, action, created_at, updated_at
		FROM engagement_workflows
		WHERE organization_id = $1
		ORDER BY event_type ASC, name ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkflows(rows)
}

// ReplaceWorkflows makes the stored set match the given set in one
// transaction: upsert everything provided, delete what was not kept.
func (r *Repository) ReplaceWorkflows(ctx context.Context, organizationID uuid.UUID, workflows []WorkflowUpsert) ([]Workflow, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	keptIDs := make([]uuid.UUID, 0, len(workflows))
	for _, workflow := range workflows {
		id, err := upsertWorkflowTx(ctx, tx, organizationID, workflow)
		if err != nil {
			return nil, err
		}
		keptIDs = append(keptIDs, id)
	}

	if len(keptIDs) == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM engagement_workflows WHERE organization_id = $1`, organizationID); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			DELETE FROM engagement_workflows
			WHERE organization_id = $1
			  AND NOT (id = ANY($2::uuid[]))
		`, organizationID, keptIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return r.ListByOrganization(ctx, organizationID)
}

func upsertWorkflowTx(ctx context.Context, tx pgx.Tx, organizationID uuid.UUID, workflow WorkflowUpsert) (uuid.UUID, error) {
	workflowID := uuid.New()
	if workflow.ID != nil && *workflow.ID != uuid.Nil {
		workflowID = *workflow.ID
	}

	actionJSON, err := json.Marshal(workflow.Action)
	if err != nil {
		return uuid.Nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO engagement_workflows (id, organization_id, event_type, name, enabled, action)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (organization_id, event_type, name) DO UPDATE
		SET
			enabled = EXCLUDED.enabled,
			action = EXCLUDED.action,
			updated_at = now()
		RETURNING id
	`, workflowID, organizationID, workflow.EventType, workflow.Name, workflow.Enabled, actionJSON).Scan(&workflowID)
	if err != nil {
		return uuid.Nil, err
	}

	return workflowID, nil
}

func scanWorkflows(rows pgx.Rows) ([]Workflow, error) {
	result := make([]Workflow, 0)
	for rows.Next() {
		var workflow Workflow
		var rawAction []byte
		if err := rows.Scan(
			&workflow.ID,
			&workflow.OrganizationID,
			&workflow.EventType,
			&workflow.Name,
			&workflow.Enabled,
			&rawAction,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(rawAction) > 0 {
			if err := json.Unmarshal(rawAction, &workflow.Action); err != nil {
				return nil, err
			}
		}
		result = append(result, workflow)
	}
	return result, rows.Err()
}

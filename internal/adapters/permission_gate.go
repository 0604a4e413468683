// Package adapters contains anti-corruption adapters that wire bounded
// contexts together without direct dependencies between them.
package adapters

import (
	"context"
	"errors"

	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"

	"github.com/google/uuid"
)

const roleAdmin = "admin"

// OwnerPermissionGate implements the engagement permission check: admins
// may mutate anything, other actors only engagements they own. Pool-level
// subjects never resolve to an engagement, so batch operations are
// effectively admin only.
type OwnerPermissionGate struct {
	reader repository.EngagementReader
}

func NewOwnerPermissionGate(reader repository.EngagementReader) *OwnerPermissionGate {
	return &OwnerPermissionGate{reader: reader}
}

func (g *OwnerPermissionGate) CanMutate(ctx context.Context, actor ports.Actor, engagementID uuid.UUID, action ports.Action) (bool, error) {
	for _, role := range actor.Roles {
		if role == roleAdmin {
			return true, nil
		}
	}

	engagement, err := g.reader.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return engagement.AssignedOwnerID != nil && *engagement.AssignedOwnerID == actor.ID, nil
}

var _ ports.PermissionGate = (*OwnerPermissionGate)(nil)

// Package engagement provides the engagement lifecycle bounded context:
// tracking signal ingestion, the outreach/call state machine, the
// append-only activity trail, and deal-room interactions.
package engagement

import (
	"engagement_backend/internal/engagement/handler"
	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/repository"
	"engagement_backend/internal/engagement/service"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the engagement bounded context module implementing http.Module.
type Module struct {
	repo     *repository.Repository
	service  *service.Service
	handler  *handler.Handler
	tracking *handler.TrackingHandler
}

// NewModule creates and initializes the engagement module. The permission
// gate, dispatcher, and call-status provider are injected by the
// composition root so this module never depends on their concrete homes.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	gate ports.PermissionGate,
	dispatcher ports.Dispatcher,
	provider ports.CallStatusProvider,
	val *validator.Validator,
	cfg *config.Config,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gate, dispatcher, provider, eventBus, log, cfg.PhoneRegion)

	return &Module{
		repo:     repo,
		service:  svc,
		handler:  handler.New(svc, val),
		tracking: handler.NewTrackingHandler(svc, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "engagement"
}

// Repository returns the engagement repository for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Service returns the engagement service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetRecordEnsurer injects the downstream-record collaborator used on close.
func (m *Module) SetRecordEnsurer(ensurer ports.RecordEnsurer) {
	m.service.SetRecordEnsurer(ensurer)
}

// RegisterRoutes mounts the public tracking routes at the engine root and
// the lifecycle routes behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Tracking endpoints bypass auth and rate limiting: mail clients and
	// prospects hit them, and the pixel contract is fail-open.
	m.tracking.RegisterRoutes(ctx.Engine.Group("/t"))
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)

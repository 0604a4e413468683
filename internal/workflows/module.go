package workflows

import (
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the workflow-trigger bounded context implementing http.Module.
type Module struct {
	repo     *Repository
	executor *Executor
	handler  *Handler
}

// NewModule creates and initializes the workflows module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		repo:     repo,
		executor: NewExecutor(repo, log),
		handler:  NewHandler(repo, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "workflows"
}

// Executor returns the workflow executor for the queue worker.
func (m *Module) Executor() *Executor {
	return m.executor
}

// RegisterRoutes mounts the workflow config routes. Admin only: workflow
// actions can call arbitrary URLs.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/workflows"))
}

var _ apphttp.Module = (*Module)(nil)

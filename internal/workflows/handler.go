package workflows

import (
	"net/http"
	"time"

	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the workflow config endpoints.
type Handler struct {
	repo *Repository
	val  *validator.Validator
}

func NewHandler(repo *Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes mounts the workflow config routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListWorkflows)
	rg.PUT("", h.ReplaceWorkflows)
}

type ActionConfigRequest struct {
	Kind    string            `json:"kind" validate:"required,oneof=webhook log"`
	URL     string            `json:"url" validate:"omitempty,url,max=2048"`
	Headers map[string]string `json:"headers" validate:"omitempty,max=20"`
}

type WorkflowUpsertRequest struct {
	ID        *uuid.UUID          `json:"id"`
	EventType string              `json:"eventType" validate:"required,max=64"`
	Name      string              `json:"name" validate:"required,max=200"`
	Enabled   bool                `json:"enabled"`
	Action    ActionConfigRequest `json:"action" validate:"required"`
}

type ReplaceWorkflowsRequest struct {
	Workflows []WorkflowUpsertRequest `json:"workflows" validate:"required,max=100,dive"`
}

type WorkflowResponse struct {
	ID        uuid.UUID    `json:"id"`
	EventType string       `json:"eventType"`
	Name      string       `json:"name"`
	Enabled   bool         `json:"enabled"`
	Action    ActionConfig `json:"action"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ListWorkflows returns every workflow config for the caller's organization.
func (h *Handler) ListWorkflows(c *gin.Context) {
	orgID, ok := httpkit.GetOrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "organization not resolved", nil)
		return
	}

	items, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to load workflows", nil)
		return
	}

	httpkit.OK(c, gin.H{"workflows": toWorkflowResponses(items)})
}

// ReplaceWorkflows replaces the organization's workflow set with the given
// one and returns the stored result.
func (h *Handler) ReplaceWorkflows(c *gin.Context) {
	orgID, ok := httpkit.GetOrgID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "organization not resolved", nil)
		return
	}

	var req ReplaceWorkflowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	upserts := make([]WorkflowUpsert, 0, len(req.Workflows))
	for _, item := range req.Workflows {
		upserts = append(upserts, WorkflowUpsert{
			ID:        item.ID,
			EventType: item.EventType,
			Name:      item.Name,
			Enabled:   item.Enabled,
			Action: ActionConfig{
				Kind:    item.Action.Kind,
				URL:     item.Action.URL,
				Headers: item.Action.Headers,
			},
		})
	}

	items, err := h.repo.ReplaceWorkflows(c.Request.Context(), orgID, upserts)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to save workflows", nil)
		return
	}

	httpkit.OK(c, gin.H{"workflows": toWorkflowResponses(items)})
}

func toWorkflowResponses(items []Workflow) []WorkflowResponse {
	out := make([]WorkflowResponse, 0, len(items))
	for _, item := range items {
		out = append(out, WorkflowResponse{
			ID:        item.ID,
			EventType: item.EventType,
			Name:      item.Name,
			Enabled:   item.Enabled,
			Action:    item.Action,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return out
}

// Package handler exposes the engagement module's HTTP endpoints.
package handler

import (
	"net/http"

	"engagement_backend/internal/engagement/domain"
	"engagement_backend/internal/engagement/ports"
	"engagement_backend/internal/engagement/service"
	"engagement_backend/internal/engagement/transport"
	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "Invalid request"
	msgValidationFailed = "Validation failed"
)

// Handler handles the authenticated engagement endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes adds the authenticated engagement routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/engagements/:id/close", h.CloseEngagement)
	rg.POST("/engagements/:id/reset", h.ResetEngagement)
	rg.GET("/engagements/:id/activities", h.ListActivities)
	rg.POST("/pools/:poolId/engagements/reset", h.BatchReset)
	rg.POST("/dealrooms/:id/activities", h.RecordDealRoomActivity)
	rg.GET("/calls/:contactId/status", h.GetCallStatus)
}

// CloseEngagement marks an engagement CLOSED.
func (h *Handler) CloseEngagement(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CloseEngagementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	actor := ports.Actor{ID: identity.UserID(), Roles: identity.Roles()}
	if err := h.svc.CloseEngagement(c.Request.Context(), actor, id, req.Reason); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"status": "closed"})
}

// ResetEngagement forces the outreach axis back to IDLE.
func (h *Handler) ResetEngagement(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	actor := ports.Actor{ID: identity.UserID(), Roles: identity.Roles()}
	if err := h.svc.ResetEngagement(c.Request.Context(), actor, id); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"status": "reset"})
}

// BatchReset resets the listed engagements within a pool and reports the
// number actually reset.
func (h *Handler) BatchReset(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	poolID, err := uuid.Parse(c.Param("poolId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.BatchResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := ports.Actor{ID: identity.UserID(), Roles: identity.Roles()}
	count, err := h.svc.ResetEngagements(c.Request.Context(), actor, poolID, req.IDs)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.BatchResetResponse{OK: true, Reset: count})
}

// RecordDealRoomActivity appends an activity to a deal room.
func (h *Handler) RecordDealRoomActivity(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.DealRoomActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.RecordDealRoomActivity(c.Request.Context(), id, domain.ActivityType(req.Type), req.Metadata); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"status": "recorded"})
}

// GetCallStatus reconciles the external call state for a contact and
// returns the mapped local status.
func (h *Handler) GetCallStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	contactID := c.Param("contactId")
	status, err := h.svc.RecordCallStatusTransition(c.Request.Context(), contactID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.CallStatusResponse{
		ContactID: contactID,
		Status:    string(status),
	})
}

// ListActivities returns the audit trail for an engagement, newest first.
func (h *Handler) ListActivities(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.svc.ListActivities(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"activities": transport.ToActivityResponses(items)})
}

package handler

import (
	"net/http"
	"strings"

	"engagement_backend/internal/engagement/service"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TrackingHandler serves the public, unauthenticated tracking endpoints.
// The pixel and redirect endpoints are fail-open: a broken database must
// never produce a broken image in a prospect's mail client, so tracking
// errors are logged and the asset is served regardless.
type TrackingHandler struct {
	svc *service.Service
	log *logger.Logger
}

func NewTrackingHandler(svc *service.Service, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{svc: svc, log: log}
}

// RegisterRoutes registers the tracking routes under /t.
func (h *TrackingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/open", h.TrackOpenLegacy)
	rg.GET("/open/:token", h.TrackOpen)
	rg.GET("/click", h.TrackClick)
	rg.GET("/meeting/:id", h.TrackMeeting)
}

// pngPixel is a 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00,
	0x00, 0x0d, 0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f,
	0x15, 0xc4, 0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00, 0x05, 0x00,
	0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// gifPixel is a 1x1 transparent GIF, served by the legacy query variant.
var gifPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// TrackOpen records an email open and serves the pixel. Mail clients
// request the token with a .png suffix; it is stripped before lookup.
func (h *TrackingHandler) TrackOpen(c *gin.Context) {
	token := strings.TrimSuffix(c.Param("token"), ".png")

	if err := h.svc.RecordOpen(c.Request.Context(), token, c.Request.UserAgent(), c.ClientIP()); err != nil {
		h.log.TrackingError("open", token, err)
	}

	servePixel(c, "image/png", pngPixel)
}

// TrackOpenLegacy serves the older ?oid= variant of the open beacon.
func (h *TrackingHandler) TrackOpenLegacy(c *gin.Context) {
	token := strings.TrimSuffix(c.Query("oid"), ".png")

	if token != "" {
		if err := h.svc.RecordOpen(c.Request.Context(), token, c.Request.UserAgent(), c.ClientIP()); err != nil {
			h.log.TrackingError("open", token, err)
		}
	}

	servePixel(c, "image/gif", gifPixel)
}

// TrackClick records a link click and redirects to the target. Only a
// missing url is a client error; the tracking write itself runs detached
// and can never delay or fail the redirect.
func (h *TrackingHandler) TrackClick(c *gin.Context) {
	rawURL := c.Query("url")
	if strings.TrimSpace(rawURL) == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing url parameter", nil)
		return
	}

	target, err := h.svc.RecordClick(c.Request.Context(), rawURL, c.Query("oid"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid url parameter", nil)
		return
	}

	c.Redirect(http.StatusFound, target)
}

// TrackMeeting resolves the meeting URL for an engagement and redirects.
// Unlike the pixel endpoints this one can fail: without a target URL there
// is nothing sensible to serve.
func (h *TrackingHandler) TrackMeeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusNotFound, "engagement not found", nil)
		return
	}

	meetingURL, err := h.svc.RecordMeetingVisit(c.Request.Context(), id)
	if err != nil {
		if domainErr, ok := err.(*apperr.Error); ok {
			httpkit.Error(c, domainErr.HTTPStatus(), domainErr.Message, nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to resolve meeting", nil)
		return
	}

	c.Redirect(http.StatusFound, meetingURL)
}

func servePixel(c *gin.Context, contentType string, pixel []byte) {
	// Caching would swallow repeat opens before they reach the server.
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, contentType, pixel)
}

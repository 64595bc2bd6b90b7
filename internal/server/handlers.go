package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"daemonpanel/config"
	"daemonpanel/internal/registry"
	"daemonpanel/internal/system"
	"daemonpanel/internal/systemd"
	"daemonpanel/internal/view"
)

// ServicePanel is the core API surface the HTTP layer renders from.
type ServicePanel interface {
	ListViews(ctx context.Context) []view.ServiceView
	GetView(ctx context.Context, id string) (view.ServiceView, error)
	PerformAction(ctx context.Context, id string, action systemd.Action) (*systemd.ActionResult, error)
	GetLogs(ctx context.Context, id string, maxLines int) (*systemd.LogChunk, error)
}

// Handlers holds all HTTP handlers
type Handlers struct {
	cfg      *config.Config
	log      zerolog.Logger
	panel    ServicePanel
	auth     *AuthService
	renderer *Renderer
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, log zerolog.Logger, panel ServicePanel, auth *AuthService) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log,
		panel:    panel,
		auth:     auth,
		renderer: NewRenderer(),
	}
}

// HealthCheck handles GET /healthz
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// GetInfo handles GET /api/info
func (h *Handlers) GetInfo(c *gin.Context) {
	hostInfo, err := system.GetHostInfo()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hostname": hostInfo.Hostname,
		"os":       hostInfo.OS,
		"platform": hostInfo.Platform,
		"kernel":   hostInfo.KernelVersion,
		"arch":     hostInfo.KernelArch,
		"uptime":   hostInfo.UptimeHuman,
		"agent":    "daemonpanel",
	})
}

// CreateSession handles POST /api/session: exchanges the API key for a
// short-lived token a browser can hold.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !h.auth.ValidateAPIKey(req.APIKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	token, err := h.auth.GenerateToken("operator", sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(sessionTTL.Seconds()),
	})
}

// ListServices handles GET /api/services
func (h *Handlers) ListServices(c *gin.Context) {
	views := h.panel.ListViews(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"services": views,
		"total":    len(views),
	})
}

// GetService handles GET /api/services/:id
func (h *Handlers) GetService(c *gin.Context) {
	v, err := h.panel.GetView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

// ServiceAction handles POST /api/services/:id/:action for start, stop and
// restart.
func (h *Handlers) ServiceAction(c *gin.Context) {
	action, ok := systemd.ParseAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	result, err := h.panel.PerformAction(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		h.writeActionError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetServiceLogs handles GET /api/services/:id/logs
func (h *Handlers) GetServiceLogs(c *gin.Context) {
	lines := h.cfg.LogMaxLines
	if l := c.Query("lines"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= h.cfg.LogMaxLines {
			lines = n
		}
	}

	chunk, err := h.panel.GetLogs(c.Request.Context(), c.Param("id"), lines)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, chunk)
}

// writeError maps core error classes onto HTTP responses. The "error" tag
// is stable for clients; "detail" carries the message.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, tag := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, registry.ErrNotFound):
		status, tag = http.StatusNotFound, "unknown-service"
	case errors.Is(err, systemd.ErrUnitNotFound):
		status, tag = http.StatusNotFound, "unit-missing"
	case errors.Is(err, systemd.ErrPermissionDenied):
		status, tag = http.StatusForbidden, "permission-denied"
	case errors.Is(err, view.ErrLogsDisabled):
		status, tag = http.StatusForbidden, "logs-disabled"
	case errors.Is(err, systemd.ErrActionInProgress):
		status, tag = http.StatusConflict, "action-in-progress"
	case errors.Is(err, systemd.ErrActionRejected):
		status, tag = http.StatusUnprocessableEntity, "action-rejected"
	case errors.Is(err, systemd.ErrActionTimedOut),
		errors.Is(err, systemd.ErrLogFetchTimedOut),
		errors.Is(err, systemd.ErrProbeUnavailable),
		errors.Is(err, systemd.ErrLogToolUnavailable):
		status, tag = http.StatusServiceUnavailable, "temporarily-unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": tag, "detail": err.Error()})
}

// writeActionError behaves like writeError but includes the partial
// ActionResult when the action itself ran.
func (h *Handlers) writeActionError(c *gin.Context, result *systemd.ActionResult, err error) {
	if result == nil {
		h.writeError(c, err)
		return
	}

	status, tag := http.StatusUnprocessableEntity, "action-rejected"
	switch {
	case errors.Is(err, systemd.ErrActionTimedOut):
		status, tag = http.StatusServiceUnavailable, "action-timed-out"
	case errors.Is(err, systemd.ErrPermissionDenied):
		status, tag = http.StatusForbidden, "permission-denied"
	}

	c.JSON(status, gin.H{"error": tag, "detail": err.Error(), "result": result})
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daemonpanel/config"
	"daemonpanel/internal/registry"
	"daemonpanel/internal/systemd"
	"daemonpanel/internal/view"
)

// fakePanel is a canned ServicePanel for handler tests.
type fakePanel struct {
	views   []view.ServiceView
	viewErr error

	actionResult *systemd.ActionResult
	actionErr    error

	logChunk *systemd.LogChunk
	logErr   error
}

func (f *fakePanel) ListViews(ctx context.Context) []view.ServiceView {
	return f.views
}

func (f *fakePanel) GetView(ctx context.Context, id string) (view.ServiceView, error) {
	if f.viewErr != nil {
		return view.ServiceView{}, f.viewErr
	}
	for _, v := range f.views {
		if v.Entry.ID == id {
			return v, nil
		}
	}
	return view.ServiceView{}, fmt.Errorf("%w: %q", registry.ErrNotFound, id)
}

func (f *fakePanel) PerformAction(ctx context.Context, id string, action systemd.Action) (*systemd.ActionResult, error) {
	if f.actionErr != nil {
		return f.actionResult, f.actionErr
	}
	return f.actionResult, nil
}

func (f *fakePanel) GetLogs(ctx context.Context, id string, maxLines int) (*systemd.LogChunk, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	return f.logChunk, nil
}

func healthyView(id, unit string) view.ServiceView {
	return view.ServiceView{
		Entry: registry.Entry{ID: id, Unit: unit, Name: id, LogsEnabled: true},
		Status: &systemd.UnitStatus{
			Unit:        unit,
			ActiveState: systemd.ActiveStateActive,
			SubState:    "running",
			LoadState:   "loaded",
			MainPID:     100,
		},
		Uptime: "2h 5m 0s",
	}
}

func newTestServer(t *testing.T, panel ServicePanel, apiKey string) *Server {
	t.Helper()
	cfg := config.LoadWithDefaults()
	cfg.APIKey = apiKey
	cfg.JWTSecret = apiKey
	return New(cfg, zerolog.Nop(), panel)
}

func doRequest(s *Server, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, &fakePanel{}, "")
	w := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListServices(t *testing.T) {
	panel := &fakePanel{views: []view.ServiceView{
		healthyView("web", "nginx.service"),
		{
			Entry:   registry.Entry{ID: "broken", Unit: "gone.service", Name: "broken"},
			Problem: "unit-missing",
		},
	}}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Services []json.RawMessage `json:"services"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Contains(t, string(body.Services[1]), "unit-missing")
}

func TestGetServiceUnknown(t *testing.T) {
	s := newTestServer(t, &fakePanel{}, "")
	w := doRequest(s, http.MethodGet, "/api/services/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown-service")
}

func TestGetServiceUnitMissing(t *testing.T) {
	panel := &fakePanel{viewErr: fmt.Errorf("%w: gone.service", systemd.ErrUnitNotFound)}
	s := newTestServer(t, panel, "")
	w := doRequest(s, http.MethodGet, "/api/services/broken", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unit-missing")
}

func TestServiceActionSuccess(t *testing.T) {
	panel := &fakePanel{actionResult: &systemd.ActionResult{
		Unit:    "nginx.service",
		Action:  systemd.ActionRestart,
		Outcome: systemd.OutcomeSucceeded,
	}}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodPost, "/api/services/web/restart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"succeeded"`)
}

func TestServiceActionUnknownVerb(t *testing.T) {
	s := newTestServer(t, &fakePanel{}, "")
	w := doRequest(s, http.MethodPost, "/api/services/web/reload", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown action")
}

func TestServiceActionInProgress(t *testing.T) {
	panel := &fakePanel{actionErr: fmt.Errorf("%w: nginx.service", systemd.ErrActionInProgress)}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodPost, "/api/services/web/stop", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "action-in-progress")
}

func TestServiceActionTimedOutCarriesResult(t *testing.T) {
	panel := &fakePanel{
		actionResult: &systemd.ActionResult{
			Unit:    "nginx.service",
			Action:  systemd.ActionStart,
			Outcome: systemd.OutcomeTimedOut,
		},
		actionErr: fmt.Errorf("%w: start nginx.service", systemd.ErrActionTimedOut),
	}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodPost, "/api/services/web/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "action-timed-out")
	assert.Contains(t, w.Body.String(), `"outcome":"timedOut"`)
}

func TestGetServiceLogs(t *testing.T) {
	panel := &fakePanel{logChunk: &systemd.LogChunk{
		Unit:      "nginx.service",
		Lines:     []string{"line one", "line two"},
		Truncated: true,
	}}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/api/services/web/logs?lines=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"truncated":true`)
	assert.Contains(t, w.Body.String(), "line two")
}

func TestGetServiceLogsDisabled(t *testing.T) {
	panel := &fakePanel{logErr: fmt.Errorf("%w: %q", view.ErrLogsDisabled, "db")}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/api/services/db/logs", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "logs-disabled")
}

func TestGetServiceLogsUnavailable(t *testing.T) {
	panel := &fakePanel{logErr: fmt.Errorf("%w: journalctl missing", systemd.ErrLogToolUnavailable)}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/api/services/web/logs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily-unavailable")
}

func TestAPIRequiresAuthWhenKeyConfigured(t *testing.T) {
	s := newTestServer(t, &fakePanel{}, "sekrit")

	w := doRequest(s, http.MethodGet, "/api/services", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/services", "sekrit")
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open regardless of auth.
	w = doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServicesPageRendersDegradedCards(t *testing.T) {
	panel := &fakePanel{views: []view.ServiceView{
		healthyView("web", "nginx.service"),
		{
			Entry:   registry.Entry{ID: "broken", Unit: "gone.service", Name: "Removed Daemon"},
			Problem: "unit-missing",
		},
	}}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, "nginx.service")
	assert.Contains(t, body, "Removed Daemon")
	// The broken unit degrades its own card only.
	assert.True(t, strings.Contains(body, "missing"), "degraded card should explain the problem")
}

func TestServiceDetailIncludesLogs(t *testing.T) {
	panel := &fakePanel{
		views:    []view.ServiceView{healthyView("web", "nginx.service")},
		logChunk: &systemd.LogChunk{Unit: "nginx.service", Lines: []string{"journal line alpha"}},
	}
	s := newTestServer(t, panel, "")

	w := doRequest(s, http.MethodGet, "/service/web", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "journal line alpha")
}

func TestRootRedirectsToServices(t *testing.T) {
	s := newTestServer(t, &fakePanel{}, "")
	w := doRequest(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/services", w.Header().Get("Location"))
}

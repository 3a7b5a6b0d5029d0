package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/message"
	"github.com/hpungsan/backseat/internal/metrics"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/session"
)

// SessionHeader carries the session ID on /api/message.
const SessionHeader = "X-Backseat-Session"

// maxSessionIDLen bounds client-chosen session IDs.
const maxSessionIDLen = 128

// maxMessageBytes bounds a message body; getDebugInfo carries whole pages.
const maxMessageBytes = 16 << 20

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	orch       *ops.Orchestrator
	dispatcher *message.Dispatcher
	sessions   *session.Manager
	metrics    *metrics.Metrics
	logger     *zap.Logger
	version    string
}

// NewHandlers creates the API handlers.
func NewHandlers(orch *ops.Orchestrator, d *message.Dispatcher, sessions *session.Manager, m *metrics.Metrics, logger *zap.Logger, version string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		orch:       orch,
		dispatcher: d,
		sessions:   sessions,
		metrics:    m,
		logger:     logger,
		version:    version,
	}
}

// HandleCreateSession handles POST /api/sessions.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"sessionId": sess.ID,
		"profile":   sess.CurrentProfileName(),
	})
}

// HandleDeleteSession handles DELETE /api/sessions/{id}.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleMessage handles POST /api/message. The session named by the
// X-Backseat-Session header is created on demand and echoed back.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if len(id) > maxSessionIDLen {
		renderError(w, errors.NewInvalidRequest("session ID too long"))
		return
	}

	sess, err := h.sessions.GetOrCreate(r.Context(), id)
	if err != nil {
		renderError(w, err)
		return
	}
	w.Header().Set(SessionHeader, sess.ID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil {
		renderError(w, errors.NewInvalidRequest("failed to read request body"))
		return
	}
	if len(body) > maxMessageBytes {
		renderError(w, errors.NewInvalidRequest("message too large"))
		return
	}

	renderJSON(w, http.StatusOK, h.dispatcher.DispatchJSON(r.Context(), sess, body))
}

// HandleProfiles handles GET /api/profiles. With a known session header the
// current profile is the session's, otherwise the persisted one.
func (h *Handlers) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	var sess *session.Session
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		sess, _ = h.sessions.Get(id)
	}

	out, err := ops.ListProfiles(r.Context(), h.orch.Store, sess)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"profiles": out.Profiles,
		"current":  out.Current,
	})
}

// HandleExport handles GET /api/profiles/export as a file download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ExportProfiles(r.Context(), h.orch.Store)
	if err != nil {
		renderError(w, err)
		return
	}

	filename := "backseat-profiles-" + time.Now().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out.Data+"\n")
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.orch.Store.CurrentName(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"sessions": h.sessions.Len(),
	})
}

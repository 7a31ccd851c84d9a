// Package api exposes the gateway's HTTP and websocket surface: the /run
// capability endpoint, node and canvas sockets, and the control-plane relay.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/homeclaw/gateway/internal/canvas"
	"github.com/homeclaw/gateway/internal/node"
	"github.com/homeclaw/gateway/internal/plugin"
	"github.com/homeclaw/gateway/pkg/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	dispatcher *plugin.Dispatcher
	store      *canvas.Store
	broadcast  *canvas.Broadcaster
	registry   *node.Registry
	correlator *node.Correlator
	runTimeout time.Duration
	log        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	dispatcher *plugin.Dispatcher,
	store *canvas.Store,
	broadcast *canvas.Broadcaster,
	registry *node.Registry,
	correlator *node.Correlator,
	runTimeout time.Duration,
	log *zap.Logger,
) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		store:      store,
		broadcast:  broadcast,
		registry:   registry,
		correlator: correlator,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nodes":  len(h.registry.List()),
	})
}

// Run handles POST /run: one capability invocation per request. Node
// commands can legitimately take minutes, so the connection deadlines are
// pushed out past the command timeout; a slow device then surfaces as a
// structured timeout result instead of a dead socket.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(h.runTimeout)
	_ = rc.SetReadDeadline(deadline)
	_ = rc.SetWriteDeadline(deadline)

	var req models.PluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("bad /run payload", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError,
			models.NewErrorResult("", plugin.DefaultPluginID, "invalid request body: "+err.Error()))
		return
	}

	result := h.dispatcher.Handle(req)
	h.log.Info("capability handled",
		zap.String("capability_id", req.CapabilityID),
		zap.String("request_id", req.RequestID),
		zap.Bool("success", result.Success))
	writeJSON(w, http.StatusOK, result)
}

// ListNodes handles GET /api/nodes
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

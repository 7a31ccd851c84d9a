package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/homeclaw/gateway/internal/proxy"
	"github.com/homeclaw/gateway/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(relay *proxy.Server, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	// Health check (orchestrator polls this)
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Capability endpoint (rate limited per user)
	run := r.PathPrefix("/run").Subrouter()
	run.Use(RateLimitMiddleware(rateLimiter))
	run.HandleFunc("", h.Run).Methods("POST", "OPTIONS")

	// Node fleet
	r.HandleFunc("/api/nodes", h.ListNodes).Methods("GET")
	r.HandleFunc("/nodes-ws", h.NodeSocket).Methods("GET")

	// Canvas viewers
	r.HandleFunc("/canvas-ws", h.CanvasSocket).Methods("GET")

	// Control-plane relay to the orchestrator socket
	r.HandleFunc("/ws", relay.HandleRelay).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

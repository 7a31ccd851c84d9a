package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/homeclaw/gateway/internal/plugin"
	"github.com/homeclaw/gateway/internal/ratelimit"
	"github.com/homeclaw/gateway/pkg/models"
)

// RateLimitMiddleware enforces a per-user token bucket on /run. Requests
// without an identifiable user are not limited.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := getUserID(r)

			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(userID) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				errMsg := "Rate limit exceeded. Slow down and retry."
				json.NewEncoder(w).Encode(models.PluginResult{
					PluginID: plugin.DefaultPluginID,
					Error:    &errMsg,
					Metadata: map[string]any{},
				})
				return
			}

			tokens := limiter.Tokens(userID)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(tokens)))

			next.ServeHTTP(w, r)
		})
	}
}

// getUserID extracts the user id from the request: query, header, or the
// JSON body. The body is re-attached so the handler can still decode it.
func getUserID(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}

	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var peek struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return peek.UserID
}

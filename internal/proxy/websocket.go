// Package proxy relays one externally facing websocket to the orchestrator's
// own socket, 1:1 per incoming connection, with no framing of its own.
package proxy

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const dialTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server proxies control-plane connections to the upstream Core websocket.
// Each relay pair lives and dies on its own; a failure never touches other
// pairs.
type Server struct {
	upstreamURL string
	apiKey      string
	log         *zap.Logger
}

// NewServer creates a relay targeting upstreamURL (ws:// or wss://). apiKey,
// when set, is the static credential forwarded upstream for callers that
// supply none of their own.
func NewServer(upstreamURL, apiKey string, log *zap.Logger) *Server {
	return &Server{upstreamURL: upstreamURL, apiKey: apiKey, log: log}
}

// upstreamTarget builds the dial URL and headers: a caller-supplied api_key
// travels as a query parameter, the static credential as a header fallback.
func (s *Server) upstreamTarget(r *http.Request) (string, http.Header) {
	target := s.upstreamURL
	headers := http.Header{}

	clientKey := r.URL.Query().Get("api_key")
	if clientKey == "" {
		clientKey = r.URL.Query().Get("x-api-key")
	}
	if clientKey != "" {
		sep := "?"
		if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target += sep + "api_key=" + url.QueryEscape(clientKey)
	} else if s.apiKey != "" {
		headers.Set("X-API-Key", s.apiKey)
	}
	return target, headers
}

// HandleRelay upgrades the incoming connection and pipes frames verbatim in
// both directions until either side closes.
func (s *Server) HandleRelay(w http.ResponseWriter, r *http.Request) {
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade relay connection", zap.Error(err))
		return
	}
	defer clientConn.Close()

	target, headers := s.upstreamTarget(r)

	ctx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	upstreamConn, _, err := websocket.DefaultDialer.DialContext(ctx, target, headers)
	if err != nil {
		s.log.Warn("failed to dial upstream", zap.String("url", s.upstreamURL), zap.Error(err))
		s.closeWith(clientConn, "Core connection error")
		return
	}
	defer upstreamConn.Close()

	s.log.Debug("relay pair established", zap.String("remote", r.RemoteAddr))

	errChan := make(chan error, 2)
	go func() { errChan <- s.pipe(clientConn, upstreamConn) }()
	go func() { errChan <- s.pipe(upstreamConn, clientConn) }()

	// First terminal error on either side ends the pair; the other side is
	// closed with a dependent-failure close code.
	err = <-errChan
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug("relay pair closed", zap.Error(err))
	}
	s.closeWith(clientConn, "relay peer closed")
	s.closeWith(upstreamConn, "relay peer closed")
}

// pipe forwards frames from src to dst until either side fails
func (s *Server) pipe(src, dst *websocket.Conn) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			return err
		}
		if err := dst.WriteMessage(messageType, message); err != nil {
			return err
		}
	}
}

func (s *Server) closeWith(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason), deadline)
}

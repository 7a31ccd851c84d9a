package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/homeclaw/gateway/internal/canvas"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn serializes writes to one websocket connection. gorilla/websocket
// allows only a single concurrent writer, and both the correlator and the
// broadcaster may write from different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// registerFrame is the first frame a node must send on /nodes-ws
type registerFrame struct {
	Type         string   `json:"type"`
	NodeID       string   `json:"node_id"`
	NodeIDAlt    string   `json:"nodeId"`
	Capabilities []string `json:"capabilities"`
}

// defaultNodeCapabilities is assumed for nodes that declare none
var defaultNodeCapabilities = []string{"canvas", "screen", "camera", "location"}

// NodeSocket handles /nodes-ws: a node registers with its first frame, then
// the connection carries command results until it closes. Pre-registration
// frames that are not a valid register frame are ignored.
func (h *Handler) NodeSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade node connection", zap.Error(err))
		return
	}
	conn := &wsConn{conn: raw}
	defer conn.Close()

	var nodeID string
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			break
		}
		if nodeID == "" {
			id, capabilities, ok := parseRegisterFrame(data)
			if !ok {
				continue
			}
			nodeID = id
			h.registry.Register(nodeID, conn, capabilities)
			if err := conn.WriteJSON(map[string]string{"type": "registered", "node_id": nodeID}); err != nil {
				break
			}
			continue
		}
		h.correlator.HandleMessage(nodeID, data)
	}

	// Fail in-flight commands only when this was still the node's live
	// connection; a superseded socket closing late must not touch commands
	// pending on its replacement.
	if nodeID != "" && h.registry.Unregister(nodeID, conn) {
		h.correlator.FailNode(nodeID)
	}
}

func parseRegisterFrame(data []byte) (string, []string, bool) {
	var frame registerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", nil, false
	}
	if frame.Type != "register" {
		return "", nil, false
	}
	id := frame.NodeID
	if id == "" {
		id = frame.NodeIDAlt
	}
	if id == "" {
		return "", nil, false
	}
	capabilities := frame.Capabilities
	if len(capabilities) == 0 {
		capabilities = defaultNodeCapabilities
	}
	return id, capabilities, true
}

// CanvasSocket handles /canvas-ws?session=...: the viewer is subscribed to
// that session's updates and immediately receives the current document, if
// one exists.
func (h *Handler) CanvasSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade canvas connection", zap.Error(err))
		return
	}
	conn := &wsConn{conn: raw}
	defer conn.Close()

	key := canvasSessionKey(r)
	h.broadcast.Subscribe(key, conn)
	defer h.broadcast.Unsubscribe(key, conn)

	if doc, ok := h.store.Get(key); ok {
		if err := conn.WriteJSON(canvas.Update{Type: "canvas_update", Document: doc}); err != nil {
			return
		}
	}

	// Viewers only receive; the read loop exists to detect the close.
	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			return
		}
	}
}

func canvasSessionKey(r *http.Request) string {
	if s := strings.TrimSpace(r.URL.Query().Get("session")); s != "" {
		return s
	}
	return "default"
}

// Package node tracks connected device nodes and correlates asynchronous
// command responses over their persistent connections.
package node

import (
	"sync"
	"time"

	"github.com/homeclaw/gateway/pkg/models"
	"go.uber.org/zap"
)

// Conn is the node transport; a mutex-wrapped *websocket.Conn satisfies it
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Node is one registered device: a live connection plus its declared
// capability set.
type Node struct {
	ID           string
	Capabilities []string
	RegisteredAt time.Time
	conn         Conn
}

// WriteJSON sends a frame over the node's connection
func (n *Node) WriteJSON(v any) error {
	return n.conn.WriteJSON(v)
}

// Registry maps node ids to their live connections. A node id is reachable
// through at most one live connection: re-registering an id evicts and closes
// the superseded connection.
type Registry struct {
	log *zap.Logger

	mu    sync.Mutex
	nodes map[string]*Node
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log, nodes: make(map[string]*Node)}
}

// Register adds a node, closing any prior connection registered under the
// same id.
func (r *Registry) Register(nodeID string, conn Conn, capabilities []string) *Node {
	if capabilities == nil {
		capabilities = []string{}
	}
	node := &Node{
		ID:           nodeID,
		Capabilities: capabilities,
		RegisteredAt: time.Now(),
		conn:         conn,
	}

	r.mu.Lock()
	prior := r.nodes[nodeID]
	r.nodes[nodeID] = node
	r.mu.Unlock()

	if prior != nil {
		r.log.Warn("node re-registered, closing superseded connection", zap.String("node_id", nodeID))
		_ = prior.conn.Close()
	}
	r.log.Info("node registered", zap.String("node_id", nodeID), zap.Strings("capabilities", capabilities))
	return node
}

// Unregister removes nodeID, but only if conn is still its live connection,
// and reports whether it did. A superseded connection closing late must not
// evict its replacement, and its caller must not fail commands pending on
// the replacement either.
func (r *Registry) Unregister(nodeID string, conn Conn) bool {
	r.mu.Lock()
	node, ok := r.nodes[nodeID]
	if ok && node.conn == conn {
		delete(r.nodes, nodeID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.log.Info("node unregistered", zap.String("node_id", nodeID))
	}
	return ok
}

// Get returns the node registered under nodeID, if any
func (r *Registry) Get(nodeID string) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[nodeID]
	return node, ok
}

// List describes every registered node
func (r *Registry) List() []models.NodeInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]models.NodeInfo, 0, len(r.nodes))
	for _, node := range r.nodes {
		infos = append(infos, models.NodeInfo{
			NodeID:       node.ID,
			Capabilities: node.Capabilities,
			RegisteredAt: node.RegisteredAt.UnixMilli(),
		})
	}
	return infos
}

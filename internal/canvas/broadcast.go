package canvas

import (
	"sync"

	"github.com/homeclaw/gateway/pkg/models"
	"go.uber.org/zap"
)

// Update is the frame sent to canvas subscribers
type Update struct {
	Type     string                `json:"type"`
	Document models.CanvasDocument `json:"document"`
}

// Conn is the subscriber transport; *websocket.Conn satisfies it
type Conn interface {
	WriteJSON(v any) error
}

// Broadcaster fans canvas updates out to every subscriber of a session key.
// A send failure removes only the failing subscriber, never the rest.
type Broadcaster struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[string]map[Conn]bool
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{log: log, subs: make(map[string]map[Conn]bool)}
}

// Subscribe registers conn under key. The caller must call Unsubscribe when
// the connection closes.
func (b *Broadcaster) Subscribe(key string, conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[Conn]bool)
		b.subs[key] = set
	}
	set[conn] = true
}

// Unsubscribe removes conn from key's subscriber set, dropping the set once
// empty
func (b *Broadcaster) Unsubscribe(key string, conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[key]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(b.subs, key)
	}
}

// Push sends the full document to every subscriber of key
func (b *Broadcaster) Push(key string, doc models.CanvasDocument) {
	b.mu.Lock()
	conns := make([]Conn, 0, len(b.subs[key]))
	for conn := range b.subs[key] {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	update := Update{Type: "canvas_update", Document: doc}
	for _, conn := range conns {
		if err := conn.WriteJSON(update); err != nil {
			b.log.Debug("dropping canvas subscriber", zap.String("session_key", key), zap.Error(err))
			b.Unsubscribe(key, conn)
		}
	}
}

// SubscriberCount reports how many subscribers key currently has
func (b *Broadcaster) SubscriberCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

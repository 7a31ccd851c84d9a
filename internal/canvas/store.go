// Package canvas holds per-session canvas documents and fans updates out to
// live subscribers.
package canvas

import (
	"sync"
	"time"

	"github.com/homeclaw/gateway/pkg/models"
)

// Store keeps the current canvas document per session key. Documents are
// replaced wholesale; last write wins.
type Store struct {
	mu   sync.RWMutex
	docs map[string]models.CanvasDocument
}

func NewStore() *Store {
	return &Store{docs: make(map[string]models.CanvasDocument)}
}

// Set replaces the document for key and stamps the update time
func (s *Store) Set(key string, doc models.CanvasDocument) models.CanvasDocument {
	if doc.Blocks == nil {
		doc.Blocks = []models.Block{}
	}
	doc.UpdatedAt = time.Now().UnixMilli()

	s.mu.Lock()
	s.docs[key] = doc
	s.mu.Unlock()
	return doc
}

// SetText stores a bare string as a single text block with an empty title
func (s *Store) SetText(key, text string) models.CanvasDocument {
	return s.Set(key, models.CanvasDocument{
		Blocks: []models.Block{{Type: "text", Content: text}},
	})
}

// Get returns the current document for key, if any
func (s *Store) Get(key string) (models.CanvasDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	return doc, ok
}

// All returns a copy of every stored document keyed by session
func (s *Store) All() map[string]models.CanvasDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.CanvasDocument, len(s.docs))
	for k, v := range s.docs {
		out[k] = v
	}
	return out
}

package models

// Block is a single typed content block in a canvas document.
// Type is "text" or "button"; the other fields are type-specific.
type Block struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Label   string `json:"label,omitempty"`
	ID      string `json:"id,omitempty"`
}

// CanvasDocument is the full document pushed to canvas subscribers.
// Documents are replaced wholesale on every update; there is no patching.
type CanvasDocument struct {
	Title     string  `json:"title"`
	Blocks    []Block `json:"blocks"`
	UpdatedAt int64   `json:"updatedAt,omitempty"`
}

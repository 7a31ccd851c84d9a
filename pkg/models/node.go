package models

// NodeInfo describes a connected node for GET /api/nodes and node_list
type NodeInfo struct {
	NodeID       string   `json:"node_id"`
	Capabilities []string `json:"capabilities"`
	RegisteredAt int64    `json:"registeredAt"`
}

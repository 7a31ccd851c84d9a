package node

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homeclaw/gateway/pkg/models"
	"go.uber.org/zap"
)

// DefaultCommandTimeout must cover worst-case device operations: acquiring a
// camera or screen, recording, and encoding before the node can reply. The
// HTTP timeout wrapping /run must exceed this, and the orchestrator's must
// exceed that one.
const DefaultCommandTimeout = 5 * time.Minute

// CommandEnvelope is the frame sent to a node for one command
type CommandEnvelope struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

type pendingCommand struct {
	nodeID string
	ch     chan models.ActionResult
	timer  *time.Timer
}

// Correlator assigns a correlation id to each outbound node command and
// resolves it exactly once: on the matching response, on timer expiry, or on
// node disconnect. Late or duplicate responses are ignored.
type Correlator struct {
	registry *Registry
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingCommand
}

func NewCorrelator(registry *Registry, timeout time.Duration, log *zap.Logger) *Correlator {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Correlator{
		registry: registry,
		timeout:  timeout,
		log:      log,
		pending:  make(map[string]*pendingCommand),
	}
}

// newCommandID is unique among currently pending ids; a time prefix plus a
// random suffix is enough, global uniqueness is not required.
func (c *Correlator) newCommandID() string {
	for {
		id := fmt.Sprintf("cmd_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
		if _, taken := c.pending[id]; !taken {
			return id
		}
	}
}

// Send delivers a command to a registered node and blocks until the matching
// response arrives or the timeout fires. An unknown or disconnected node
// fails immediately with no pending entry created.
func (c *Correlator) Send(nodeID, command string, params map[string]any) models.ActionResult {
	target, ok := c.registry.Get(nodeID)
	if !ok {
		return models.Fail(fmt.Sprintf("Node '%s' not connected", nodeID))
	}
	if params == nil {
		params = map[string]any{}
	}

	c.mu.Lock()
	id := c.newCommandID()
	entry := &pendingCommand{
		nodeID: nodeID,
		ch:     make(chan models.ActionResult, 1),
	}
	entry.timer = time.AfterFunc(c.timeout, func() { c.expire(id, nodeID) })
	c.pending[id] = entry
	c.mu.Unlock()

	env := CommandEnvelope{Type: "command", ID: id, Command: command, Params: params}
	if err := target.WriteJSON(env); err != nil {
		c.remove(id)
		entry.timer.Stop()
		return models.Fail(err.Error())
	}

	c.log.Debug("command sent", zap.String("node_id", nodeID), zap.String("command", command), zap.String("id", id))
	return <-entry.ch
}

// remove takes the entry out of the pending table, returning nil if it was
// already resolved
func (c *Correlator) remove(id string) *pendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return entry
}

func (c *Correlator) expire(id, nodeID string) {
	entry := c.remove(id)
	if entry == nil {
		// Response won the race; the expired timer is a no-op.
		return
	}
	c.log.Warn("command timed out", zap.String("node_id", nodeID), zap.String("id", id))
	entry.ch <- models.Fail(fmt.Sprintf(
		"Command timeout (%s did not respond in time). Check that the device is connected and camera/microphone permissions are granted.", nodeID))
}

// FailNode immediately fails every pending command addressed to nodeID; used
// when the node's connection closes mid-flight so callers are not left
// waiting for the full timeout.
func (c *Correlator) FailNode(nodeID string) {
	c.mu.Lock()
	var failed []*pendingCommand
	for id, entry := range c.pending {
		if entry.nodeID == nodeID {
			delete(c.pending, id)
			failed = append(failed, entry)
		}
	}
	c.mu.Unlock()

	for _, entry := range failed {
		entry.timer.Stop()
		entry.ch <- models.Fail(fmt.Sprintf("Node '%s' disconnected before responding", nodeID))
	}
}

// PendingCount reports the number of outstanding commands
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// resultFrame is what a node sends back for a command
type resultFrame struct {
	Type    string          `json:"type"`
	ID      any             `json:"id"`
	Payload json.RawMessage `json:"payload"`
	OK      *bool           `json:"ok"`
	Error   string          `json:"error"`
}

// HandleMessage processes one inbound frame from a node connection. Frames
// that are not result frames, or whose id matches no pending entry, are
// silently ignored.
func (c *Correlator) HandleMessage(nodeID string, data []byte) {
	var frame resultFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.Type != "command_result" && frame.Type != "res" {
		return
	}
	id := idString(frame.ID)
	if id == "" {
		return
	}

	entry := c.remove(id)
	if entry == nil {
		// Duplicate or post-timeout response; tolerated without side effect.
		return
	}
	entry.timer.Stop()
	entry.ch <- NormalizePayload(frame.Payload, frame.OK, frame.Error)
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// NormalizePayload resolves the three response shapes a node may send, once,
// at the registry boundary:
//   - a structured object with success/text/error/media fields
//   - a bare string, treated as successful text
//   - any other JSON value, serialized to text with success taken from the
//     outer ok flag when present
func NormalizePayload(raw json.RawMessage, outerOK *bool, outerErr string) models.ActionResult {
	outerSuccess := outerOK == nil || *outerOK

	if len(raw) == 0 || string(raw) == "null" {
		res := models.ActionResult{Success: outerSuccess, Err: outerErr}
		return res
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		_, hasSuccess := asMap["success"]
		_, hasText := asMap["text"]
		_, hasError := asMap["error"]
		if hasSuccess || hasText || hasError {
			var p struct {
				Success *bool   `json:"success"`
				Text    *string `json:"text"`
				Error   *string `json:"error"`
				Media   *string `json:"media"`
			}
			if err := json.Unmarshal(raw, &p); err == nil {
				res := models.ActionResult{Success: p.Success == nil || *p.Success}
				if p.Text != nil {
					res.Text = *p.Text
				}
				if p.Error != nil {
					res.Err = *p.Error
				}
				if p.Media != nil {
					res.Media = *p.Media
				}
				return res
			}
		}
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return models.OK(asString)
	}

	return models.ActionResult{Success: outerSuccess, Text: string(raw), Err: outerErr}
}

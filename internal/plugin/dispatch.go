// Package plugin dispatches orchestrator capability invocations to the
// browser pool, the canvas, or the node fleet, and folds every outcome into
// the uniform plugin reply shape.
package plugin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/homeclaw/gateway/internal/browser"
	"github.com/homeclaw/gateway/internal/canvas"
	"github.com/homeclaw/gateway/internal/node"
	"github.com/homeclaw/gateway/internal/param"
	"github.com/homeclaw/gateway/internal/session"
	"github.com/homeclaw/gateway/pkg/models"
	"go.uber.org/zap"
)

// DefaultPluginID identifies this gateway to the orchestrator
const DefaultPluginID = "homeclaw-gateway"

// nodeConvenience maps first-class node capabilities onto the raw node
// command they issue, so the orchestrator does not have to compose
// node_command calls itself.
var nodeConvenience = map[string]string{
	"node_notify":        "notify",
	"node_camera_snap":   "camera_snap",
	"node_camera_clip":   "camera_clip",
	"node_screen_record": "screen_record",
	"node_location_get":  "location_get",
}

// browserCapabilities in manifest order
var browserCapabilities = []string{
	"browser_navigate",
	"browser_snapshot",
	"browser_click",
	"browser_type",
	"browser_fill",
	"browser_scroll",
	"browser_close_session",
	"browser_set_color_scheme",
	"browser_set_geolocation",
	"browser_set_timezone",
	"browser_set_locale",
	"browser_set_device",
	"browser_set_offline",
	"browser_set_extra_headers",
	"browser_set_credentials",
}

// Dispatcher routes one PluginRequest to the owning component. All dependencies
// are injected; there is no ambient state.
type Dispatcher struct {
	browser    *browser.Dispatcher
	store      *canvas.Store
	broadcast  *canvas.Broadcaster
	registry   *node.Registry
	correlator *node.Correlator
	log        *zap.Logger
}

func NewDispatcher(
	browserDispatcher *browser.Dispatcher,
	store *canvas.Store,
	broadcast *canvas.Broadcaster,
	registry *node.Registry,
	correlator *node.Correlator,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		browser:    browserDispatcher,
		store:      store,
		broadcast:  broadcast,
		registry:   registry,
		correlator: correlator,
		log:        log,
	}
}

// NormalizeCapabilityID lower-cases a capability id and collapses spaces to
// underscores
func NormalizeCapabilityID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.Join(strings.Fields(id), "_")
}

// SupportedCapabilities lists every capability id this gateway accepts
func SupportedCapabilities() []string {
	caps := make([]string, 0, len(browserCapabilities)+2+len(nodeConvenience))
	caps = append(caps, browserCapabilities...)
	caps = append(caps, "canvas_update", "node_list", "node_command")
	caps = append(caps, "node_notify", "node_camera_snap", "node_camera_clip", "node_screen_record", "node_location_get")
	return caps
}

// Handle executes one capability invocation. No fault propagates past this
// boundary unconverted: panics and errors all come back as a failed
// PluginResult, scoped to this request alone.
func (d *Dispatcher) Handle(req models.PluginRequest) (result models.PluginResult) {
	pluginID := req.PluginID
	if pluginID == "" {
		pluginID = DefaultPluginID
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("capability dispatch panicked", zap.Any("panic", r), zap.String("capability_id", req.CapabilityID))
			result = models.NewErrorResult(req.RequestID, pluginID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	capID := NormalizeCapabilityID(req.CapabilityID)
	params := req.CapabilityParameters
	if params == nil {
		params = map[string]any{}
	}
	userID := strings.TrimSpace(req.UserID)
	userInput := strings.TrimSpace(req.UserInput)

	// No capability id: infer navigate from a URL in the free-form text,
	// else a node action from a node id plus an action word.
	if capID == "" && userInput != "" {
		capID, params = inferCapability(userInput, params)
	}

	switch {
	case capID == "canvas_update":
		return d.handleCanvasUpdate(req.RequestID, pluginID, params, userID)
	case capID == "node_list":
		return d.handleNodeList(req.RequestID, pluginID)
	case capID == "node_command":
		return d.handleNodeCommand(req.RequestID, pluginID, params)
	}

	if command, ok := nodeConvenience[capID]; ok {
		return d.handleNodeConvenience(req.RequestID, pluginID, command, params)
	}

	if action := d.browserAction(capID); action != nil {
		res := action(params, userID)
		return toPluginResult(req.RequestID, pluginID, res)
	}

	return d.unknownCapability(req.RequestID, pluginID, capID)
}

func (d *Dispatcher) browserAction(capID string) func(map[string]any, string) models.ActionResult {
	switch capID {
	case "browser_navigate":
		return d.browser.Navigate
	case "browser_snapshot":
		return d.browser.Snapshot
	case "browser_click":
		return d.browser.Click
	case "browser_type":
		return d.browser.Type
	case "browser_fill":
		return d.browser.Fill
	case "browser_scroll":
		return d.browser.Scroll
	case "browser_close_session":
		return d.browser.CloseSession
	case "browser_set_color_scheme":
		return d.browser.SetColorScheme
	case "browser_set_geolocation":
		return d.browser.SetGeolocation
	case "browser_set_timezone":
		return d.browser.SetTimezone
	case "browser_set_locale":
		return d.browser.SetLocale
	case "browser_set_device":
		return d.browser.SetDevice
	case "browser_set_offline":
		return d.browser.SetOffline
	case "browser_set_extra_headers":
		return d.browser.SetExtraHeaders
	case "browser_set_credentials":
		return d.browser.SetCredentials
	}
	return nil
}

func (d *Dispatcher) handleCanvasUpdate(requestID, pluginID string, params map[string]any, userID string) models.PluginResult {
	key := session.KeyFromParams(params, userID)

	var doc models.CanvasDocument
	switch v := params["document"].(type) {
	case string:
		doc = d.store.SetText(key, v)
	case map[string]any:
		parsed, err := documentFromMap(v)
		if err != nil {
			return models.NewErrorResult(requestID, pluginID, "invalid document: "+err.Error())
		}
		doc = d.store.Set(key, parsed)
	default:
		// No document parameter: assemble one from title/blocks.
		parsed, err := documentFromMap(map[string]any{
			"title":  param.String(params, "title"),
			"blocks": params["blocks"],
		})
		if err != nil {
			return models.NewErrorResult(requestID, pluginID, "invalid blocks: "+err.Error())
		}
		doc = d.store.Set(key, parsed)
	}

	d.broadcast.Push(key, doc)
	return models.NewResult(requestID, pluginID, "Canvas updated for session: "+key)
}

// documentFromMap converts a loosely typed document mapping via JSON
func documentFromMap(m map[string]any) (models.CanvasDocument, error) {
	var doc models.CanvasDocument
	raw, err := json.Marshal(m)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (d *Dispatcher) handleNodeList(requestID, pluginID string) models.PluginResult {
	nodes := d.registry.List()
	if len(nodes) == 0 {
		return models.NewResult(requestID, pluginID, "No nodes connected.")
	}
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, fmt.Sprintf("%s: %s", n.NodeID, strings.Join(n.Capabilities, ", ")))
	}
	return models.NewResult(requestID, pluginID, strings.Join(lines, "\n"))
}

func (d *Dispatcher) handleNodeCommand(requestID, pluginID string, params map[string]any) models.PluginResult {
	nodeID := param.String(params, "node_id", "nodeId")
	command := param.String(params, "command")
	if nodeID == "" || command == "" {
		return models.NewErrorResult(requestID, pluginID, "node_id and command are required")
	}
	cmdParams := param.Map(params, "params")
	if cmdParams == nil {
		cmdParams = params
	}
	res := d.correlator.Send(nodeID, command, cmdParams)
	return toPluginResult(requestID, pluginID, res)
}

func (d *Dispatcher) handleNodeConvenience(requestID, pluginID, command string, params map[string]any) models.PluginResult {
	nodeID := param.String(params, "node_id", "nodeId")
	if nodeID == "" {
		return models.NewErrorResult(requestID, pluginID, "node_id is required")
	}
	cmdParams := make(map[string]any, len(params))
	for k, v := range params {
		if k == "node_id" || k == "nodeId" {
			continue
		}
		cmdParams[k] = v
	}
	res := d.correlator.Send(nodeID, command, cmdParams)
	return toPluginResult(requestID, pluginID, res)
}

func (d *Dispatcher) unknownCapability(requestID, pluginID, capID string) models.PluginResult {
	shown := capID
	if shown == "" {
		shown = "(empty)"
	}
	msg := fmt.Sprintf("Unknown or missing capability: %q. Supported: %s.",
		shown, strings.Join(SupportedCapabilities(), ", "))
	if capID == "" {
		msg += " Pass capability_id (e.g. browser_navigate) and parameters (e.g. url), or include a URL in your message."
	}
	return models.NewErrorResult(requestID, pluginID, msg)
}

// toPluginResult folds an ActionResult into the uniform reply, lifting any
// media payload into metadata
func toPluginResult(requestID, pluginID string, res models.ActionResult) models.PluginResult {
	out := models.PluginResult{
		RequestID: requestID,
		PluginID:  pluginID,
		Success:   res.Success,
		Text:      res.Text,
		Metadata:  map[string]any{},
	}
	if res.Err != "" {
		errMsg := res.Err
		out.Error = &errMsg
	}
	if res.Media != "" {
		out.Metadata["media"] = res.Media
	}
	return out
}

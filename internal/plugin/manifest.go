package plugin

import "fmt"

// Parameter declares one capability parameter for the orchestrator
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Capability declares one capability in the manifest
type Capability struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	PostProcess bool        `json:"post_process"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
}

// ManifestConfig tells the orchestrator how to invoke this plugin. TimeoutSec
// must exceed the /run socket timeout, which in turn exceeds the node command
// timeout: timeouts grow monotonically moving away from the device.
type ManifestConfig struct {
	BaseURL    string `json:"base_url"`
	Path       string `json:"path"`
	TimeoutSec int    `json:"timeout_sec"`
}

// Manifest is the registration payload posted to the orchestrator at startup.
// It is configuration, not core logic.
type Manifest struct {
	PluginID       string         `json:"plugin_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	HealthCheckURL string         `json:"health_check_url"`
	Type           string         `json:"type"`
	Config         ManifestConfig `json:"config"`
	Capabilities   []Capability   `json:"capabilities"`
}

var sessionParam = Parameter{Name: "session_id", Type: "string", Required: false, Description: "Optional session key; omit to use user_id."}

func nodeIDParam(required bool) Parameter {
	return Parameter{Name: "node_id", Type: "string", Required: required, Description: "Node id from node_list."}
}

// BuildManifest assembles the capability manifest for this gateway
func BuildManifest(baseURL string, timeoutSec int) Manifest {
	run := func(id, name, description string, params ...Parameter) Capability {
		return Capability{
			ID:          id,
			Name:        name,
			Description: description,
			Parameters:  params,
			Method:      "POST",
			Path:        "/run",
		}
	}

	return Manifest{
		PluginID:       DefaultPluginID,
		Name:           "HomeClaw Gateway",
		Description:    "Browser automation (navigate, snapshot, click, type), canvas (push title/blocks to viewers), and nodes (list/send device commands). Use when the user asks to open a URL, interact with a web page, update the canvas, or act on a connected device node.",
		HealthCheckURL: baseURL + "/health",
		Type:           "http",
		Config: ManifestConfig{
			BaseURL:    baseURL,
			Path:       "run",
			TimeoutSec: timeoutSec,
		},
		Capabilities: []Capability{
			run("browser_navigate", "Navigate to URL",
				"Open a URL in the browser and return the page text. Call browser_snapshot next to get clickable elements.",
				Parameter{Name: "url", Type: "string", Required: true, Description: "URL to open (e.g. https://example.com)."},
				Parameter{Name: "max_chars", Type: "integer", Required: false, Description: fmt.Sprintf("Max characters to return (default %d).", 50000)},
				sessionParam),
			run("browser_snapshot", "Get page snapshot",
				"Get interactive elements on the current page with refs and selectors. Requires an open page.",
				sessionParam),
			run("browser_click", "Click element",
				"Click an element. Use selector or ref from browser_snapshot.",
				Parameter{Name: "selector", Type: "string", Required: false, Description: "CSS selector of the element to click."},
				Parameter{Name: "ref", Type: "integer", Required: false, Description: "Ref index from browser_snapshot."},
				sessionParam),
			run("browser_type", "Type into input",
				"Type text into an input or textarea. Clears the field first.",
				Parameter{Name: "selector", Type: "string", Required: false, Description: "CSS selector of the input."},
				Parameter{Name: "ref", Type: "integer", Required: false, Description: "Ref index from browser_snapshot."},
				Parameter{Name: "text", Type: "string", Required: true, Description: "Text to type."},
				sessionParam),
			run("browser_fill", "Fill input",
				"Clear and fill an input (same as browser_type).",
				Parameter{Name: "selector", Type: "string", Required: false, Description: "CSS selector of the input."},
				Parameter{Name: "ref", Type: "integer", Required: false, Description: "Ref index from browser_snapshot."},
				Parameter{Name: "text", Type: "string", Required: true, Description: "Text to fill."},
				sessionParam),
			run("browser_scroll", "Scroll page",
				"Scroll the page or an element.",
				Parameter{Name: "direction", Type: "string", Required: false, Description: "up or down (default down)."},
				Parameter{Name: "selector", Type: "string", Required: false, Description: "Optional element selector to scroll."},
				sessionParam),
			run("browser_close_session", "Close browser session",
				"Close the browser context for this user/session to free resources.",
				sessionParam),
			run("browser_set_color_scheme", "Set color scheme",
				"Set prefers-color-scheme: dark, light, no-preference, or none.",
				Parameter{Name: "color_scheme", Type: "string", Required: true, Description: "dark, light, no-preference, or none."},
				sessionParam),
			run("browser_set_geolocation", "Set geolocation",
				"Override the browser geolocation, or clear it.",
				Parameter{Name: "latitude", Type: "number", Required: false, Description: "Latitude."},
				Parameter{Name: "longitude", Type: "number", Required: false, Description: "Longitude."},
				Parameter{Name: "accuracy", Type: "number", Required: false, Description: "Accuracy in meters."},
				Parameter{Name: "clear", Type: "boolean", Required: false, Description: "Clear the override."},
				sessionParam),
			run("browser_set_timezone", "Set timezone",
				"Override the browser timezone.",
				Parameter{Name: "timezone", Type: "string", Required: true, Description: "IANA timezone (e.g. America/New_York)."},
				sessionParam),
			run("browser_set_locale", "Set locale",
				"Set the Accept-Language header for the session.",
				Parameter{Name: "locale", Type: "string", Required: true, Description: "Locale (e.g. en-US)."},
				sessionParam),
			run("browser_set_device", "Set device viewport",
				"Emulate a known device's viewport.",
				Parameter{Name: "device", Type: "string", Required: true, Description: "Device name (e.g. iPhone 14, Desktop 1920x1080)."},
				sessionParam),
			run("browser_set_offline", "Set offline mode",
				"Toggle offline network emulation.",
				Parameter{Name: "offline", Type: "boolean", Required: true, Description: "true for offline."},
				sessionParam),
			run("browser_set_extra_headers", "Set extra HTTP headers",
				"Replace the extra HTTP headers sent by the session.",
				Parameter{Name: "headers", Type: "object", Required: true, Description: "Header name to value mapping."},
				sessionParam),
			run("browser_set_credentials", "Set HTTP credentials",
				"Set or clear HTTP basic-auth credentials for the session.",
				Parameter{Name: "username", Type: "string", Required: false, Description: "Basic-auth username."},
				Parameter{Name: "password", Type: "string", Required: false, Description: "Basic-auth password."},
				Parameter{Name: "clear", Type: "boolean", Required: false, Description: "Clear stored credentials."},
				sessionParam),
			run("canvas_update", "Update canvas",
				"Replace the canvas document for a session and push it to live viewers.",
				Parameter{Name: "document", Type: "object", Required: false, Description: "Full document {title, blocks}."},
				Parameter{Name: "title", Type: "string", Required: false, Description: "Title when no document is given."},
				Parameter{Name: "blocks", Type: "array", Required: false, Description: "Blocks when no document is given."},
				sessionParam),
			run("node_list", "List nodes",
				"List connected device nodes and their capabilities."),
			run("node_command", "Send node command",
				"Send a raw command to a connected node and wait for its reply.",
				nodeIDParam(true),
				Parameter{Name: "command", Type: "string", Required: true, Description: "Command name the node understands."},
				Parameter{Name: "params", Type: "object", Required: false, Description: "Command parameters."}),
			run("node_notify", "Node notification",
				"Show a notification on the node.",
				nodeIDParam(true),
				Parameter{Name: "message", Type: "string", Required: false, Description: "Notification text."}),
			run("node_camera_snap", "Node camera snapshot",
				"Take a photo with the node camera. Node must support camera_snap.",
				nodeIDParam(true),
				Parameter{Name: "facing", Type: "string", Required: false, Description: "front or back."}),
			run("node_camera_clip", "Node camera clip",
				"Record a short video clip from the node camera. Node must support camera_clip.",
				nodeIDParam(true),
				Parameter{Name: "facing", Type: "string", Required: false, Description: "front or back."},
				Parameter{Name: "duration", Type: "string", Required: false, Description: "Duration (e.g. 5s)."},
				Parameter{Name: "includeAudio", Type: "boolean", Required: false, Description: "Include microphone."}),
			run("node_screen_record", "Node screen record",
				"Record the node screen. Node must support screen_record.",
				nodeIDParam(true),
				Parameter{Name: "fps", Type: "number", Required: false, Description: "Frames per second."},
				Parameter{Name: "duration", Type: "string", Required: false, Description: "Duration (e.g. 10s)."}),
			run("node_location_get", "Node location",
				"Get device location (lat/lon/accuracy) from the node. Node must support location_get.",
				nodeIDParam(true),
				Parameter{Name: "maxAgeMs", Type: "number", Required: false, Description: "Max age of cached location (ms)."}),
		},
	}
}

package browser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/homeclaw/gateway/internal/param"
	"github.com/homeclaw/gateway/internal/session"
	"github.com/homeclaw/gateway/pkg/models"
)

const (
	// MaxSnapshotElements caps how many interactive elements one snapshot returns
	MaxSnapshotElements = 100
	// MaxPageTextChars is the default cap on navigate output length
	MaxPageTextChars = 50000

	scrollDelta = 300
)

// Single-label hostnames that are valid browser targets; not node ids.
var browserHostWhitelist = map[string]bool{
	"localhost": true,
	"local":     true,
}

var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][-a-zA-Z0-9]*$`)

// RefSelector is the machine-addressable selector for a snapshot ref index
func RefSelector(ref int) string {
	return fmt.Sprintf(`[data-hc-ref="%d"]`, ref)
}

// hostOf strips scheme, path, and port from a navigation target
func hostOf(urlOrHost string) string {
	s := strings.TrimSpace(urlOrHost)
	s = regexp.MustCompile(`(?i)^https?://`).ReplaceAllString(s, "")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}

// LooksLikeNodeID reports whether a navigation target is shaped like a device
// node identifier rather than a hostname: a single label with no dot, not on
// the local-host whitelist.
func LooksLikeNodeID(urlOrHost string) bool {
	host := hostOf(urlOrHost)
	if host == "" {
		return false
	}
	if browserHostWhitelist[strings.ToLower(host)] {
		return false
	}
	return !strings.Contains(host, ".") && nodeIDPattern.MatchString(host)
}

func nodeIDHint(input, nodeID string) string {
	return fmt.Sprintf(`%q looks like a node id (%s), not a URL. For camera/video on a node use node_camera_snap or node_camera_clip with node_id (e.g. capability_id=node_camera_clip, parameters={node_id: %q, duration: "3s", includeAudio: true}).`, input, nodeID, nodeID)
}

// Dispatcher executes browser capabilities against pooled contexts. Every
// operation converts engine faults into a failed ActionResult and leaves the
// context intact.
type Dispatcher struct {
	pool *Pool
}

func NewDispatcher(pool *Pool) *Dispatcher {
	return &Dispatcher{pool: pool}
}

// Navigate opens a URL and returns the visible page text, truncated to
// max_chars. Node-id-shaped targets are rejected before any network action.
func (d *Dispatcher) Navigate(params map[string]any, userID string) models.ActionResult {
	url := param.String(params, "url")
	if url == "" {
		return models.Fail("url is required")
	}
	if LooksLikeNodeID(url) {
		return models.Fail(nodeIDHint(url, hostOf(url)))
	}
	target := url
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	key := session.KeyFromParams(params, userID)
	ctx, err := d.pool.Get(key)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.Goto(target); err != nil {
		return models.Fail(err.Error())
	}
	text, err := ctx.PageText()
	if err != nil {
		return models.Fail(err.Error())
	}

	out := strings.TrimSpace(text)
	maxChars := MaxPageTextChars
	if n, ok := param.Int(params, "max_chars"); ok && n > 0 {
		maxChars = n
	}
	// Truncate on rune boundaries; slicing bytes could split a multibyte
	// character and emit invalid UTF-8.
	if runes := []rune(out); len(runes) > maxChars {
		out = string(runes[:maxChars]) + "\n... (truncated)"
	}
	if out == "" {
		out = "(no text content)"
	}
	return models.OK(out)
}

// Snapshot lists the interactive elements on the current page, one line per
// element with its ref index, selector, label, and tag kind.
func (d *Dispatcher) Snapshot(params map[string]any, userID string) models.ActionResult {
	key := session.KeyFromParams(params, userID)
	ctx, err := d.pool.Get(key)
	if err != nil {
		return models.Fail(err.Error())
	}
	elements, err := ctx.Elements(MaxSnapshotElements)
	if err != nil {
		return models.Fail(err.Error())
	}
	if len(elements) == 0 {
		return models.OK("(no interactive elements found)")
	}
	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		lines = append(lines, fmt.Sprintf("[%d] %s %q (%s)", el.Ref, el.Selector, el.Text, el.Tag))
	}
	return models.OK(strings.Join(lines, "\n"))
}

// targetSelector resolves the action target from an explicit selector or a
// snapshot ref index
func targetSelector(params map[string]any) string {
	if sel := param.String(params, "selector"); sel != "" {
		return sel
	}
	if ref, ok := param.Int(params, "ref"); ok {
		return RefSelector(ref)
	}
	return ""
}

// Click clicks the element addressed by selector or ref
func (d *Dispatcher) Click(params map[string]any, userID string) models.ActionResult {
	sel := targetSelector(params)
	if sel == "" {
		return models.Fail("selector or ref is required")
	}
	key := session.KeyFromParams(params, userID)
	ctx, err := d.pool.Get(key)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.Click(sel); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Clicked: " + sel)
}

// Type clears the addressed input and writes text into it
func (d *Dispatcher) Type(params map[string]any, userID string) models.ActionResult {
	sel := targetSelector(params)
	if sel == "" {
		return models.Fail("selector or ref is required")
	}
	text := ""
	if v, ok := params["text"]; ok && v != nil {
		text = fmt.Sprintf("%v", v)
	}
	key := session.KeyFromParams(params, userID)
	ctx, err := d.pool.Get(key)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.Fill(sel, text); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Typed into: " + sel)
}

// Fill is Type under a different capability name
func (d *Dispatcher) Fill(params map[string]any, userID string) models.ActionResult {
	return d.Type(params, userID)
}

// Scroll scrolls an element or the whole viewport by a fixed delta
func (d *Dispatcher) Scroll(params map[string]any, userID string) models.ActionResult {
	direction := strings.ToLower(param.String(params, "direction"))
	if direction == "" {
		direction = "down"
	}
	delta := scrollDelta
	if direction == "up" {
		delta = -scrollDelta
	}
	selector := param.String(params, "selector")

	key := session.KeyFromParams(params, userID)
	ctx, err := d.pool.Get(key)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.Scroll(selector, delta); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Scrolled " + direction)
}

// CloseSession tears down the context for this session key
func (d *Dispatcher) CloseSession(params map[string]any, userID string) models.ActionResult {
	key := session.KeyFromParams(params, userID)
	if err := d.pool.Close(key); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Closed browser session: " + key)
}

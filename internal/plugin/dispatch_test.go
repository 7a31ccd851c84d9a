package plugin

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homeclaw/gateway/internal/browser"
	"github.com/homeclaw/gateway/internal/canvas"
	"github.com/homeclaw/gateway/internal/node"
	"github.com/homeclaw/gateway/pkg/models"
)

// stubContext satisfies browser.Context with canned page content.
type stubContext struct {
	lastURL string
	text    string
}

func (c *stubContext) Goto(url string) error                        { c.lastURL = url; return nil }
func (c *stubContext) PageText() (string, error)                    { return c.text, nil }
func (c *stubContext) Elements(max int) ([]browser.Element, error)  { return nil, nil }
func (c *stubContext) Click(selector string) error                  { return nil }
func (c *stubContext) Fill(selector, text string) error             { return nil }
func (c *stubContext) Scroll(selector string, deltaY int) error     { return nil }
func (c *stubContext) SetViewport(w, h int) error                   { return nil }
func (c *stubContext) SetColorScheme(scheme string) error           { return nil }
func (c *stubContext) SetGeolocation(g *browser.Geolocation) error  { return nil }
func (c *stubContext) SetTimezone(tz string) error                  { return nil }
func (c *stubContext) SetLocale(locale string) error                { return nil }
func (c *stubContext) SetOffline(offline bool) error                { return nil }
func (c *stubContext) SetExtraHeaders(h map[string]string) error    { return nil }
func (c *stubContext) SetCredentials(cr *browser.Credentials) error { return nil }
func (c *stubContext) Close() error                                 { return nil }

type stubDriver struct {
	contexts []*stubContext
}

func (d *stubDriver) NewContext() (browser.Context, error) {
	ctx := &stubContext{text: "Example Domain"}
	d.contexts = append(d.contexts, ctx)
	return ctx, nil
}

func (d *stubDriver) Close() error { return nil }

// replyConn is a node connection that answers every command with a canned
// result frame, mimicking a live device.
type replyConn struct {
	corr *node.Correlator
	mu   sync.Mutex

	nodeID    string
	payload   any
	envelopes []node.CommandEnvelope
}

func (c *replyConn) WriteJSON(v any) error {
	env := v.(node.CommandEnvelope)
	c.mu.Lock()
	c.envelopes = append(c.envelopes, env)
	c.mu.Unlock()
	go func() {
		frame, _ := json.Marshal(map[string]any{
			"type":    "command_result",
			"id":      env.ID,
			"payload": c.payload,
		})
		c.corr.HandleMessage(c.nodeID, frame)
	}()
	return nil
}

func (c *replyConn) Close() error { return nil }

func (c *replyConn) sent() []node.CommandEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]node.CommandEnvelope(nil), c.envelopes...)
}

type recordConn struct {
	mu      sync.Mutex
	updates []canvas.Update
}

func (c *recordConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, v.(canvas.Update))
	return nil
}

type testEnv struct {
	dispatcher *Dispatcher
	driver     *stubDriver
	store      *canvas.Store
	broadcast  *canvas.Broadcaster
	registry   *node.Registry
	correlator *node.Correlator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	driver := &stubDriver{}
	pool := browser.NewPool(driver, 4, log)
	store := canvas.NewStore()
	broadcast := canvas.NewBroadcaster(log)
	registry := node.NewRegistry(log)
	correlator := node.NewCorrelator(registry, 2*time.Second, log)
	return &testEnv{
		dispatcher: NewDispatcher(browser.NewDispatcher(pool), store, broadcast, registry, correlator, log),
		driver:     driver,
		store:      store,
		broadcast:  broadcast,
		registry:   registry,
		correlator: correlator,
	}
}

func TestHandleUnknownCapability(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "browser_teleport",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, `"browser_teleport"`)
	assert.Contains(t, *res.Error, "browser_navigate")
	assert.Contains(t, *res.Error, "node_command")
}

func TestHandleEmptyCapabilityNoInput(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{RequestID: "r1"})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "(empty)")
	assert.Contains(t, *res.Error, "include a URL in your message")
}

func TestHandleDefaultsPluginID(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{RequestID: "r1", CapabilityID: "node_list"})

	assert.Equal(t, DefaultPluginID, res.PluginID)
}

func TestHandleNormalizesCapabilityID(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "  Node List ",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "No nodes connected.", res.Text)
}

func TestHandleInfersNavigateFromInput(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID: "r1",
		UserID:    "alice",
		UserInput: "open example.com please",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "Example Domain", res.Text)
	require.Len(t, env.driver.contexts, 1)
	assert.Equal(t, "https://example.com", env.driver.contexts[0].lastURL)
}

func TestHandleCanvasUpdateStringDocument(t *testing.T) {
	env := newTestEnv(t)
	viewer := &recordConn{}
	env.broadcast.Subscribe("s1", viewer)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "canvas_update",
		CapabilityParameters: map[string]any{
			"session_id": "s1",
			"document":   "hello from the canvas",
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "Canvas updated for session: s1", res.Text)

	doc, ok := env.store.Get("s1")
	require.True(t, ok)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "text", doc.Blocks[0].Type)
	assert.Equal(t, "hello from the canvas", doc.Blocks[0].Content)

	require.Len(t, viewer.updates, 1)
	assert.Equal(t, "canvas_update", viewer.updates[0].Type)
}

func TestHandleCanvasUpdateStructuredDocument(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "canvas_update",
		UserID:       "alice",
		CapabilityParameters: map[string]any{
			"document": map[string]any{
				"title": "Shopping",
				"blocks": []any{
					map[string]any{"type": "text", "content": "milk"},
					map[string]any{"type": "text", "content": "eggs"},
				},
			},
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "Canvas updated for session: alice", res.Text)

	doc, ok := env.store.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "Shopping", doc.Title)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "eggs", doc.Blocks[1].Content)
}

func TestHandleCanvasUpdateTitleAndBlocks(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "canvas_update",
		CapabilityParameters: map[string]any{
			"session_id": "s2",
			"title":      "Notes",
			"blocks":     []any{map[string]any{"type": "text", "content": "first"}},
		},
	})

	assert.True(t, res.Success)
	doc, ok := env.store.Get("s2")
	require.True(t, ok)
	assert.Equal(t, "Notes", doc.Title)
	require.Len(t, doc.Blocks, 1)
}

func TestHandleNodeList(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Register("kitchen-node-01", &replyConn{}, []string{"notify", "camera_snap"})

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_list",
	})

	assert.True(t, res.Success)
	assert.Contains(t, res.Text, "kitchen-node-01: notify, camera_snap")
}

func TestHandleNodeCommandMissingParams(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:            "r1",
		CapabilityID:         "node_command",
		CapabilityParameters: map[string]any{"node_id": "kitchen-node-01"},
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "node_id and command are required", *res.Error)
}

func TestHandleNodeCommandNotConnected(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_command",
		CapabilityParameters: map[string]any{
			"node_id": "ghost",
			"command": "notify",
		},
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Node 'ghost' not connected", *res.Error)
}

func TestHandleNodeCommandRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	conn := &replyConn{
		corr:    env.correlator,
		nodeID:  "kitchen-node-01",
		payload: map[string]any{"success": true, "text": "notification shown"},
	}
	env.registry.Register("kitchen-node-01", conn, []string{"notify"})

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_command",
		CapabilityParameters: map[string]any{
			"node_id": "kitchen-node-01",
			"command": "notify",
			"params":  map[string]any{"message": "dinner"},
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "notification shown", res.Text)

	sent := conn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "command", sent[0].Type)
	assert.Equal(t, "notify", sent[0].Command)
	assert.Equal(t, "dinner", sent[0].Params["message"])
}

func TestHandleNodeConvenienceStripsNodeID(t *testing.T) {
	env := newTestEnv(t)
	conn := &replyConn{
		corr:    env.correlator,
		nodeID:  "kitchen-node-01",
		payload: map[string]any{"success": true, "text": "photo taken", "media": "data:image/jpeg;base64,/9j1"},
	}
	env.registry.Register("kitchen-node-01", conn, []string{"camera_snap"})

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_camera_snap",
		CapabilityParameters: map[string]any{
			"node_id": "kitchen-node-01",
			"facing":  "back",
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "photo taken", res.Text)
	assert.Equal(t, "data:image/jpeg;base64,/9j1", res.Metadata["media"])

	sent := conn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "camera_snap", sent[0].Command)
	assert.Equal(t, "back", sent[0].Params["facing"])
	assert.NotContains(t, sent[0].Params, "node_id")
}

func TestHandleNodeConvenienceRequiresNodeID(t *testing.T) {
	env := newTestEnv(t)

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_notify",
		CapabilityParameters: map[string]any{
			"message": "hi",
		},
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "node_id is required", *res.Error)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.registry = nil

	res := env.dispatcher.Handle(models.PluginRequest{
		RequestID:    "r1",
		CapabilityID: "node_list",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "internal error:")
}

func TestBuildManifestCoversCapabilities(t *testing.T) {
	m := BuildManifest("http://localhost:8191", 420)

	assert.Equal(t, DefaultPluginID, m.PluginID)
	assert.Equal(t, "http", m.Type)
	assert.Equal(t, "http://localhost:8191/health", m.HealthCheckURL)
	assert.Equal(t, 420, m.Config.TimeoutSec)

	ids := make(map[string]bool, len(m.Capabilities))
	for _, c := range m.Capabilities {
		ids[c.ID] = true
	}
	for _, want := range SupportedCapabilities() {
		assert.True(t, ids[want], "manifest missing %s", want)
	}
}

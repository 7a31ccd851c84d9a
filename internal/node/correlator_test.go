package node

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/homeclaw/gateway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCorrelator(t *testing.T, timeout time.Duration) (*Correlator, *Registry) {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	return NewCorrelator(registry, timeout, zap.NewNop()), registry
}

// sendAsync runs Send in the background and returns the result channel plus
// the envelope that went out over the wire.
func sendAsync(t *testing.T, c *Correlator, conn *fakeNodeConn, nodeID, command string) (<-chan models.ActionResult, CommandEnvelope) {
	t.Helper()
	done := make(chan models.ActionResult, 1)
	go func() { done <- c.Send(nodeID, command, nil) }()

	require.Eventually(t, func() bool {
		return len(conn.sentEnvelopes()) > 0
	}, 2*time.Second, 5*time.Millisecond, "command envelope should be sent")
	envs := conn.sentEnvelopes()
	return done, envs[len(envs)-1]
}

func resultJSON(id string, payload string) []byte {
	return []byte(fmt.Sprintf(`{"type":"command_result","id":%q,"payload":%s}`, id, payload))
}

func TestSendToUnknownNodeFailsImmediately(t *testing.T) {
	c, _ := newTestCorrelator(t, time.Minute)

	res := c.Send("nodeX", "notify", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "Node 'nodeX' not connected", res.Err)
	assert.Equal(t, 0, c.PendingCount(), "no pending entry for an unreachable node")
}

func TestCommandResolvesOnMatchingResponse(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	conn := &fakeNodeConn{}
	registry.Register("dev1", conn, []string{"canvas", "camera"})

	done, env := sendAsync(t, c, conn, "dev1", "notify")
	assert.Equal(t, "command", env.Type)
	assert.Equal(t, "notify", env.Command)
	assert.NotEmpty(t, env.ID)

	c.HandleMessage("dev1", resultJSON(env.ID, `{"success":true,"text":"ok"}`))

	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Text)
	assert.Empty(t, res.Err)
	assert.Equal(t, 0, c.PendingCount(), "entry removed on resolution")
}

func TestDuplicateResponseIsIgnored(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	conn := &fakeNodeConn{}
	registry.Register("dev1", conn, nil)

	done, env := sendAsync(t, c, conn, "dev1", "notify")
	c.HandleMessage("dev1", resultJSON(env.ID, `"first"`))
	<-done

	// Same id again: no pending entry, no panic, no side effect.
	c.HandleMessage("dev1", resultJSON(env.ID, `"second"`))
	assert.Equal(t, 0, c.PendingCount())
}

func TestUnrecognizedFramesAreIgnored(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	registry.Register("dev1", &fakeNodeConn{}, nil)

	c.HandleMessage("dev1", []byte(`not json`))
	c.HandleMessage("dev1", []byte(`{"type":"heartbeat"}`))
	c.HandleMessage("dev1", resultJSON("cmd_unknown", `"late"`))
	assert.Equal(t, 0, c.PendingCount())
}

func TestCommandTimeout(t *testing.T) {
	c, registry := newTestCorrelator(t, 200*time.Millisecond)
	conn := &fakeNodeConn{}
	registry.Register("dev1", conn, nil)

	done, _ := sendAsync(t, c, conn, "dev1", "camera_snap")
	assert.Equal(t, 1, c.PendingCount(), "entry pending until the window elapses")

	res := <-done
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "Command timeout (dev1 did not respond in time)")
	assert.Contains(t, res.Err, "permissions")
	assert.Equal(t, 0, c.PendingCount(), "entry removed at expiry")
}

func TestResponseAfterTimeoutIsNoop(t *testing.T) {
	c, registry := newTestCorrelator(t, 20*time.Millisecond)
	conn := &fakeNodeConn{}
	registry.Register("dev1", conn, nil)

	done, env := sendAsync(t, c, conn, "dev1", "notify")
	res := <-done
	require.False(t, res.Success)

	c.HandleMessage("dev1", resultJSON(env.ID, `"too late"`))
	assert.Equal(t, 0, c.PendingCount())
}

func TestSendFailureCleansUpPendingEntry(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	registry.Register("dev1", &fakeNodeConn{failWrite: true}, nil)

	res := c.Send("dev1", "notify", nil)
	assert.False(t, res.Success)
	assert.Equal(t, 0, c.PendingCount())
}

func TestFailNodeResolvesPendingCommands(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	conn := &fakeNodeConn{}
	registry.Register("dev1", conn, nil)

	done, _ := sendAsync(t, c, conn, "dev1", "notify")
	c.FailNode("dev1")

	res := <-done
	assert.False(t, res.Success)
	assert.Equal(t, "Node 'dev1' disconnected before responding", res.Err)
	assert.Equal(t, 0, c.PendingCount())
}

func TestSupersededConnCloseKeepsReplacementCommands(t *testing.T) {
	c, registry := newTestCorrelator(t, time.Minute)
	first := &fakeNodeConn{}
	second := &fakeNodeConn{}

	registry.Register("dev1", first, nil)
	registry.Register("dev1", second, nil)

	done, env := sendAsync(t, c, second, "dev1", "notify")

	// The evicted connection's close handler runs its teardown late. Since
	// it no longer owns the registry entry it must leave the replacement's
	// pending command alone.
	if registry.Unregister("dev1", first) {
		c.FailNode("dev1")
	}
	assert.Equal(t, 1, c.PendingCount())

	c.HandleMessage("dev1", resultJSON(env.ID, `{"success":true,"text":"ok"}`))
	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Text)
}

func TestNormalizePayloadShapes(t *testing.T) {
	// Structured object: used as-is, success defaults true.
	res := NormalizePayload(json.RawMessage(`{"text":"hi","media":"aGk="}`), nil, "")
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, "aGk=", res.Media)

	// Explicit failure.
	res = NormalizePayload(json.RawMessage(`{"success":false,"error":"denied"}`), nil, "")
	assert.False(t, res.Success)
	assert.Equal(t, "denied", res.Err)

	// Bare string: successful text.
	res = NormalizePayload(json.RawMessage(`"plain reply"`), nil, "")
	assert.True(t, res.Success)
	assert.Equal(t, "plain reply", res.Text)

	// Opaque value: serialized, success inferred from the outer ok flag.
	notOK := false
	res = NormalizePayload(json.RawMessage(`{"battery":87}`), &notOK, "low power")
	assert.False(t, res.Success)
	assert.Equal(t, `{"battery":87}`, res.Text)
	assert.Equal(t, "low power", res.Err)

	res = NormalizePayload(json.RawMessage(`[1,2,3]`), nil, "")
	assert.True(t, res.Success)
	assert.Equal(t, `[1,2,3]`, res.Text)

	// Missing payload.
	res = NormalizePayload(nil, nil, "")
	assert.True(t, res.Success)
	assert.Empty(t, res.Text)
}

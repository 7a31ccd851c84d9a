package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	p := map[string]any{"url": "  example.com  ", "empty": "", "n": 5}
	assert.Equal(t, "example.com", String(p, "url"))
	assert.Equal(t, "", String(p, "empty"))
	assert.Equal(t, "", String(p, "n"), "non-string values are ignored")
	assert.Equal(t, "example.com", String(p, "missing", "url"), "falls through names")
}

func TestInt(t *testing.T) {
	p := map[string]any{"a": float64(42), "b": "7", "c": "x"}
	n, ok := Int(p, "a")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	n, ok = Int(p, "b")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	_, ok = Int(p, "c")
	assert.False(t, ok)
	_, ok = Int(p, "missing")
	assert.False(t, ok)
}

func TestFloat(t *testing.T) {
	p := map[string]any{"lat": 40.7, "lon": "-74.0", "bad": "abc"}
	f, ok := Float(p, "lat")
	assert.True(t, ok)
	assert.InDelta(t, 40.7, f, 1e-9)
	f, ok = Float(p, "lon")
	assert.True(t, ok)
	assert.InDelta(t, -74.0, f, 1e-9)
	_, ok = Float(p, "bad")
	assert.False(t, ok)
}

func TestBool(t *testing.T) {
	assert.True(t, Bool(map[string]any{"x": true}, "x"))
	assert.True(t, Bool(map[string]any{"x": "true"}, "x"))
	assert.True(t, Bool(map[string]any{"x": "True"}, "x"))
	assert.True(t, Bool(map[string]any{"x": "1"}, "x"))
	assert.False(t, Bool(map[string]any{"x": "no"}, "x"))
	assert.False(t, Bool(map[string]any{}, "x"))
}

func TestMap(t *testing.T) {
	inner := map[string]any{"k": "v"}
	p := map[string]any{"headers": inner}
	assert.Equal(t, inner, Map(p, "headers", "extra_headers"))
	assert.Nil(t, Map(p, "extra_headers"))
}

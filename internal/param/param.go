// Package param reads loosely typed capability parameters. The orchestrator
// sends JSON mappings, so numbers arrive as float64 and flags sometimes as
// strings; these helpers coerce without panicking.
package param

import (
	"strconv"
	"strings"
)

// String returns the first non-empty trimmed string value among names
func String(params map[string]any, names ...string) string {
	for _, name := range names {
		if s, ok := params[name].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Int returns an integer value, accepting JSON numbers and numeric strings
func Int(params map[string]any, name string) (int, bool) {
	switch v := params[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Float returns a float value, accepting JSON numbers and numeric strings
func Float(params map[string]any, name string) (float64, bool) {
	switch v := params[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool reports whether the parameter is true, accepting booleans and the
// strings "true"/"True"/"1"
func Bool(params map[string]any, name string) bool {
	switch v := params[name].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "1"
	}
	return false
}

// Map returns the first mapping value among names, or nil
func Map(params map[string]any, names ...string) map[string]any {
	for _, name := range names {
		if m, ok := params[name].(map[string]any); ok {
			return m
		}
	}
	return nil
}

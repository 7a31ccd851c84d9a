// Package session derives the stable key that groups a caller's browser and
// canvas state across capability calls.
package session

import "strings"

// DefaultKey is used when neither a session id nor a user id is supplied
const DefaultKey = "default"

// Resolve returns the session key for an explicit session id and a caller's
// user id. A non-empty session id always wins, then the user id, then
// DefaultKey. Resolve is pure: same inputs, same output.
func Resolve(sessionID, userID string) string {
	if sid := strings.TrimSpace(sessionID); sid != "" {
		return sid
	}
	if uid := strings.TrimSpace(userID); uid != "" {
		return uid
	}
	return DefaultKey
}

// KeyFromParams resolves the session key from capability parameters, accepting
// both session_id and sessionId spellings.
func KeyFromParams(params map[string]any, userID string) string {
	sid := stringParam(params, "session_id")
	if sid == "" {
		sid = stringParam(params, "sessionId")
	}
	return Resolve(sid, userID)
}

func stringParam(params map[string]any, name string) string {
	if params == nil {
		return ""
	}
	s, _ := params[name].(string)
	return strings.TrimSpace(s)
}

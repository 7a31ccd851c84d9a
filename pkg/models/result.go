package models

// ActionResult is the normalized outcome of a single browser action or node
// command before it is folded into a PluginResult. Media carries an optional
// base64 payload returned by node media commands (photos, clips).
type ActionResult struct {
	Success bool
	Text    string
	Err     string
	Media   string
}

// OK builds a successful ActionResult with the given text
func OK(text string) ActionResult {
	return ActionResult{Success: true, Text: text}
}

// Fail builds a failed ActionResult with the given error message
func Fail(errMsg string) ActionResult {
	return ActionResult{Success: false, Err: errMsg}
}

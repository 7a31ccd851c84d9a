package models

// PluginRequest is the payload the orchestrator posts to /run
type PluginRequest struct {
	RequestID            string         `json:"request_id"`
	PluginID             string         `json:"plugin_id"`
	CapabilityID         string         `json:"capability_id"`
	CapabilityParameters map[string]any `json:"capability_parameters"`
	UserID               string         `json:"user_id"`
	UserInput            string         `json:"user_input"`
}

// PluginResult is the uniform reply shape for every capability invocation
type PluginResult struct {
	RequestID string         `json:"request_id"`
	PluginID  string         `json:"plugin_id"`
	Success   bool           `json:"success"`
	Text      string         `json:"text"`
	Error     *string        `json:"error"`
	Metadata  map[string]any `json:"metadata"`
}

// NewResult builds a successful PluginResult with empty metadata
func NewResult(requestID, pluginID, text string) PluginResult {
	return PluginResult{
		RequestID: requestID,
		PluginID:  pluginID,
		Success:   true,
		Text:      text,
		Metadata:  map[string]any{},
	}
}

// NewErrorResult builds a failed PluginResult carrying the error message
func NewErrorResult(requestID, pluginID, errMsg string) PluginResult {
	return PluginResult{
		RequestID: requestID,
		PluginID:  pluginID,
		Success:   false,
		Error:     &errMsg,
		Metadata:  map[string]any{},
	}
}

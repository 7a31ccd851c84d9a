package plugin

import (
	"regexp"
	"strings"

	"github.com/homeclaw/gateway/internal/param"
)

var (
	urlWithScheme = regexp.MustCompile(`(?i)https?://[^\s"'<>)\]]+`)
	urlTrailing   = regexp.MustCompile(`[.,;:!?)]+$`)
	bareHost      = regexp.MustCompile(`(?:^|\s)([a-zA-Z0-9][-a-zA-Z0-9.]*\.[a-zA-Z]{2,})(?:[\s,;:!?)]|$)`)

	nodeAfterOn   = regexp.MustCompile(`(?i)on\s+([a-zA-Z0-9_-]+)`)
	nodeShapedRef = regexp.MustCompile(`(?i)([a-zA-Z0-9]+-node-[a-zA-Z0-9]+)`)
)

// extractURL pulls the first URL out of free-form text, e.g.
// "open https://www.example.com please" or "check example.com".
func extractURL(text string) string {
	if m := urlWithScheme.FindString(text); m != "" {
		return urlTrailing.ReplaceAllString(m, "")
	}
	if m := bareHost.FindStringSubmatch(text); m != nil {
		return "https://" + m[1]
	}
	return ""
}

// inferCapability guesses the capability for a request that carries only
// free-form text: a URL means navigate, a node id plus an action word means
// the matching node capability.
func inferCapability(userInput string, params map[string]any) (string, map[string]any) {
	url := extractURL(userInput)
	if url == "" {
		url = param.String(params, "url")
	}
	if url != "" {
		merged := cloneParams(params)
		merged["url"] = url
		return "browser_navigate", merged
	}

	nodeID := param.String(params, "node_id", "nodeId")
	if nodeID == "" {
		if m := nodeAfterOn.FindStringSubmatch(userInput); m != nil {
			nodeID = m[1]
		} else if m := nodeShapedRef.FindStringSubmatch(userInput); m != nil {
			nodeID = m[1]
		}
	}

	lower := strings.ToLower(userInput)
	switch {
	case nodeID != "" && (strings.Contains(lower, "photo") || strings.Contains(lower, "snap")):
		merged := cloneParams(params)
		merged["node_id"] = nodeID
		return "node_camera_snap", merged
	case nodeID != "" && strings.Contains(lower, "record") && strings.Contains(lower, "video"):
		merged := cloneParams(params)
		merged["node_id"] = nodeID
		return "node_camera_clip", merged
	case strings.Contains(lower, "node") && (strings.Contains(lower, "list") ||
		strings.Contains(lower, "connected") || strings.Contains(lower, "what nodes")):
		return "node_list", params
	}

	return "", params
}

func cloneParams(params map[string]any) map[string]any {
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const registerRetryInterval = 5 * time.Second

type registerResponse struct {
	Registered bool   `json:"registered"`
	PluginID   string `json:"plugin_id"`
	Error      string `json:"error,omitempty"`
}

// Register posts the manifest to the orchestrator once
func Register(ctx context.Context, client *http.Client, coreURL string, manifest Manifest) error {
	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, coreURL+"/api/plugins/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration returned status %d", resp.StatusCode)
	}

	var out registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding registration response: %w", err)
	}
	if !out.Registered {
		if out.Error != "" {
			return fmt.Errorf("registration rejected: %s", out.Error)
		}
		return fmt.Errorf("registration rejected")
	}
	return nil
}

// RegisterLoop retries registration until it succeeds or ctx is cancelled.
// The orchestrator may start after the gateway, so failures are expected
// during startup.
func RegisterLoop(ctx context.Context, coreURL string, manifest Manifest, log *zap.Logger) {
	client := &http.Client{Timeout: 10 * time.Second}
	for {
		err := Register(ctx, client, coreURL, manifest)
		if err == nil {
			log.Info("registered with core",
				zap.String("plugin_id", manifest.PluginID),
				zap.String("core_url", coreURL))
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn("registration failed, retrying",
			zap.Error(err),
			zap.Duration("retry_in", registerRetryInterval))
		select {
		case <-ctx.Done():
			return
		case <-time.After(registerRetryInterval):
		}
	}
}

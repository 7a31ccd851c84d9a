// Package config loads gateway settings from the environment, with a .env
// file overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob for the gateway. All values come from the
// environment; zero-config startup works against a local orchestrator.
type Config struct {
	// Port the gateway HTTP server listens on.
	Port int
	// CoreURL is the orchestrator base URL (no trailing slash).
	CoreURL string
	// CoreAPIKey is attached to the relay upstream dial when the client
	// supplies no key of its own. Optional.
	CoreAPIKey string
	// BaseURL is this gateway's own externally reachable base URL,
	// advertised in the registration manifest.
	BaseURL string

	// Headless controls the browser engine launch mode.
	Headless bool
	// MaxContexts caps concurrently open browser contexts.
	MaxContexts int64

	// CommandTimeout bounds one node command round trip.
	CommandTimeout time.Duration
	// RunTimeout bounds one /run request socket. Must exceed CommandTimeout
	// so a command timeout surfaces as a structured failure, not a dead
	// socket; the orchestrator's own timeout_sec sits above both.
	RunTimeout time.Duration

	// RatePerMinute and RateBurst shape the per-user /run token bucket.
	RatePerMinute int
	RateBurst     int
}

const (
	defaultPort           = 3020
	defaultCoreURL        = "http://127.0.0.1:9000"
	defaultMaxContexts    = 8
	defaultCommandTimeout = 5 * time.Minute
	defaultRunTimeout     = 6 * time.Minute
	defaultRatePerMinute  = 60
	defaultRateBurst      = 10
)

// Load reads configuration from a .env file (when present) and the process
// environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:           envInt("PORT", defaultPort),
		CoreURL:        strings.TrimRight(envString("CORE_URL", defaultCoreURL), "/"),
		CoreAPIKey:     envString("CORE_API_KEY", ""),
		Headless:       envBool("BROWSER_HEADLESS", true),
		MaxContexts:    int64(envInt("MAX_CONTEXTS", defaultMaxContexts)),
		CommandTimeout: envDuration("NODE_CMD_TIMEOUT", defaultCommandTimeout),
		RunTimeout:     envDuration("RUN_TIMEOUT", defaultRunTimeout),
		RatePerMinute:  envInt("RATE_PER_MINUTE", defaultRatePerMinute),
		RateBurst:      envInt("RATE_BURST", defaultRateBurst),
	}
	cfg.BaseURL = strings.TrimRight(envString("PLUGIN_BASE", fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)), "/")

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.MaxContexts <= 0 {
		return cfg, fmt.Errorf("MAX_CONTEXTS must be positive, got %d", cfg.MaxContexts)
	}
	if cfg.RunTimeout <= cfg.CommandTimeout {
		return cfg, fmt.Errorf("RUN_TIMEOUT (%s) must exceed NODE_CMD_TIMEOUT (%s)", cfg.RunTimeout, cfg.CommandTimeout)
	}
	return cfg, nil
}

// ManifestTimeoutSec is the invocation timeout advertised to the
// orchestrator in the registration manifest. It sits one margin above
// RunTimeout, which Load keeps above CommandTimeout, so the chain
// command < /run socket < orchestrator holds for any configuration.
func (c Config) ManifestTimeoutSec() int {
	return int(c.RunTimeout/time.Second) + 60
}

// CoreWSURL derives the orchestrator websocket endpoint from CoreURL
func (c Config) CoreWSURL() string {
	ws := c.CoreURL
	if strings.HasPrefix(ws, "https://") {
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	} else if strings.HasPrefix(ws, "http://") {
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws"
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

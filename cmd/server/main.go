package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/homeclaw/gateway/internal/api"
	"github.com/homeclaw/gateway/internal/browser"
	"github.com/homeclaw/gateway/internal/canvas"
	"github.com/homeclaw/gateway/internal/config"
	"github.com/homeclaw/gateway/internal/node"
	"github.com/homeclaw/gateway/internal/plugin"
	"github.com/homeclaw/gateway/internal/proxy"
	"github.com/homeclaw/gateway/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting gateway",
		zap.Int("port", cfg.Port),
		zap.String("core_url", cfg.CoreURL),
		zap.Bool("headless", cfg.Headless))

	// Browser engine and per-session context pool
	driver := browser.NewPlaywrightDriver(cfg.Headless, logger)
	defer driver.Close()
	pool := browser.NewPool(driver, cfg.MaxContexts, logger)
	browserDispatcher := browser.NewDispatcher(pool)

	// Canvas documents and live viewers
	store := canvas.NewStore()
	broadcast := canvas.NewBroadcaster(logger)

	// Node fleet and command correlation
	registry := node.NewRegistry(logger)
	correlator := node.NewCorrelator(registry, cfg.CommandTimeout, logger)

	dispatcher := plugin.NewDispatcher(browserDispatcher, store, broadcast, registry, correlator, logger)

	// Control-plane relay to the orchestrator socket
	relay := proxy.NewServer(cfg.CoreWSURL(), cfg.CoreAPIKey, logger)

	rateLimiter := ratelimit.NewLimiter(cfg.RatePerMinute, cfg.RateBurst)

	handler := api.NewHandler(dispatcher, store, broadcast, registry, correlator, cfg.RunTimeout, logger)
	router := handler.SetupRoutes(relay, rateLimiter)

	// WriteTimeout is zero: /run applies its own per-request deadline, which
	// must outlive the node command timeout.
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: 0,
		IdleTimeout: 60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go plugin.RegisterLoop(rootCtx, cfg.CoreURL, plugin.BuildManifest(cfg.BaseURL, cfg.ManifestTimeoutSec()), logger)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	pool.CloseAll()

	logger.Info("stopped")
}

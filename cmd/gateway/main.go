// Command gateway runs the multi-protocol proxy: it loads the OAuth
// account pool, wires the four core subsystems (token pool, rate-limit
// tracker, signature store, Upstream client) behind the client-facing
// HTTP surface, and serves until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpt/klein-cli/internal/alerting"
	"github.com/fpt/klein-cli/internal/config"
	"github.com/fpt/klein-cli/internal/ratelimit"
	"github.com/fpt/klein-cli/internal/server"
	"github.com/fpt/klein-cli/internal/signature"
	"github.com/fpt/klein-cli/internal/tokenpool"
	"github.com/fpt/klein-cli/internal/transform/common"
	"github.com/fpt/klein-cli/internal/upstream"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to proxy config (default: .agents/proxy-settings.json or $HOME/.klein/proxy-settings.json)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.LoadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateSettings(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	level := pkgLogger.LogLevel(cfg.Agent.LogLevel)
	if *logLevel != "" {
		level = pkgLogger.LogLevel(*logLevel)
	}
	pkgLogger.SetGlobalLoggerWithConsoleWriter(level, os.Stdout)
	log := pkgLogger.NewComponentLogger("gateway")

	if err := os.MkdirAll(cfg.Accounts.Dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare accounts directory: %v\n", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	refresher := server.NewGoogleOAuthRefresher(httpClient, os.Getenv("GOOGLE_OAUTH_CLIENT_ID"), os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"))
	resolver := server.NewCloudCodeProjectResolver(httpClient)

	mode := tokenpool.ModeBalance
	switch cfg.Accounts.SchedulingMode {
	case "performance_first":
		mode = tokenpool.ModePerformanceFirst
	case "cache_first":
		mode = tokenpool.ModeCacheFirst
	}

	pool := tokenpool.New(cfg.Accounts.Dir, refresher, resolver, mode)
	if err := pool.LoadAccounts(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load accounts: %v\n", err)
		os.Exit(1)
	}

	tracker := ratelimit.New()
	signatures := signature.New()
	client := upstream.NewClient()
	safetyThreshold := common.SafetyThresholdFromEnv()

	var notifier *alerting.Notifier
	if cfg.Proxy.DiscordWebhookURL != "" {
		notifier = alerting.NewNotifier(cfg.Proxy.DiscordWebhookURL)
	}

	srv := server.New(pool, tracker, signatures, client, safetyThreshold)

	httpServer := &http.Server{
		Addr:    cfg.Proxy.ListenAddr,
		Handler: srv.Routes(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	go runPeriodicCleanup(ctx, tracker)

	log.Info("proxy starting", "addr", cfg.Proxy.ListenAddr, "accounts_dir", cfg.Accounts.Dir, "scheduling_mode", cfg.Accounts.SchedulingMode)
	fmt.Printf("klein proxy listening on %s\n", cfg.Proxy.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			if notifier != nil {
				notifier.Notify(context.Background(), "proxy server error: "+err.Error())
			}
			fmt.Fprintf(os.Stderr, "Gateway error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runPeriodicCleanup periodically sweeps expired rate-limit entries
// (SPEC_FULL.md §4.6 "Cleanup of expired entries is periodic and
// idempotent").
func runPeriodicCleanup(ctx context.Context, tracker *ratelimit.Tracker) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracker.Cleanup()
		}
	}
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/fleet_routes/internal/api"
	"github.com/dgnsrekt/fleet_routes/internal/batch"
	"github.com/dgnsrekt/fleet_routes/internal/config"
	"github.com/dgnsrekt/fleet_routes/internal/controller"
	"github.com/dgnsrekt/fleet_routes/internal/netutil"
	"github.com/dgnsrekt/fleet_routes/internal/relay"
	"github.com/dgnsrekt/fleet_routes/internal/storage"
)

func main() {
	cfg, err := config.LoadController()
	if err != nil {
		slog.Error("failed to load controller config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	profile, err := config.LoadPortalProfile(cfg.PortalProfile)
	if err != nil {
		slog.Error("failed to load portal profile", "file", cfg.PortalProfile, "error", err)
		os.Exit(1)
	}

	slog.Info("routes_controller config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"vehicles_file", cfg.VehiclesFile,
		"download_dir", cfg.DownloadDir,
		"ledger_dir", cfg.LedgerDir,
		"portal", profile.BaseURL,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	ledger := storage.NewLedger(cfg.LedgerDir, 64, 10)
	defer func() {
		if err := ledger.Close(); err != nil {
			slog.Debug("run ledger close failed", "error", err)
		}
	}()

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	events := relay.NewBroker()
	job := &batch.Job{Config: cfg.Config, Profile: profile, Ledger: ledger, Events: events}
	runs := batch.NewManager(runCtx, job.Run)

	svc := controller.NewService(runs, cfg.LedgerDir)
	h := api.NewServer(svc, events)

	// Stream handlers end when this context does, so Shutdown need not wait them out.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	srv := &http.Server{
		Addr:              bindAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	go func() {
		slog.Info("routes_controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("routes_controller server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("routes_controller shutting down", "stream_clients", events.ClientCount())
	cancelStreams()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("routes_controller shutdown failed", "error", err)
	}

	// A running batch closes its browser once canceled.
	cancelRuns()
	runs.Wait()
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/fleet_routes/internal/batch"
	"github.com/dgnsrekt/fleet_routes/internal/config"
	"github.com/dgnsrekt/fleet_routes/internal/storage"
)

// errIncomplete signals that the batch ran but not every vehicle was exported.
var errIncomplete = errors.New("not every vehicle was exported")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	rootCmd := newRootCmd(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintln(os.Stderr, "get_routes:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "get_routes",
		Short: "Download yesterday's route history CSV for each listed vehicle",
		Long: `get_routes logs into the fleet portal once per vehicle, resolves the vehicle in
the history view and downloads its route history for the previous day. Each CSV
is renamed to start with the vehicle registration.

Credentials are read from ROUTES_ACCOUNT, ROUTES_USERNAME and ROUTES_PASSWORD
(environment or .env file).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.VehiclesFile, "vehicles", cfg.VehiclesFile, "Vehicle list file, one registration per line")
	flags.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "Directory downloads are saved to")
	flags.StringVar(&cfg.LedgerDir, "ledger-dir", cfg.LedgerDir, "Run ledger directory (empty disables the ledger)")
	flags.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser without a window")
	flags.BoolVar(&cfg.FailFast, "fail-fast", cfg.FailFast, "Stop at the first vehicle that fails")
	flags.StringVar(&cfg.PortalProfile, "portal-profile", cfg.PortalProfile, "YAML file overriding portal URL, titles and selectors")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.DurationVar(&cfg.DownloadTimeout, "download-timeout", cfg.DownloadTimeout, "Maximum wait for each CSV download")

	return rootCmd
}

func run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}
	profile, err := config.LoadPortalProfile(cfg.PortalProfile)
	if err != nil {
		slog.Error("failed to load portal profile", "file", cfg.PortalProfile, "error", err)
		return err
	}

	slog.Info("get_routes config loaded",
		"vehicles_file", cfg.VehiclesFile,
		"download_dir", cfg.DownloadDir,
		"ledger_dir", cfg.LedgerDir,
		"headless", cfg.Headless,
		"fail_fast", cfg.FailFast,
		"portal", profile.BaseURL,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	job := &batch.Job{Config: cfg, Profile: profile}
	if cfg.LedgerDir != "" {
		ledger := storage.NewLedger(cfg.LedgerDir, 64, 10)
		defer func() {
			if err := ledger.Close(); err != nil {
				slog.Warn("run ledger close failed", "error", err)
			}
		}()
		job.Ledger = ledger
	}

	sum, err := job.Run(ctx, uuid.NewString())
	if err != nil {
		slog.Error("batch did not run", "error", err)
		return err
	}

	printSummary(out, sum)
	if !sum.Succeeded() {
		return errIncomplete
	}
	return nil
}

func printSummary(out io.Writer, sum batch.Summary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VEHICLE\tSTATUS\tFILE / ERROR")
	for _, r := range sum.Results {
		detail := filepath.Base(r.File)
		if r.Status != batch.StatusOK {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Vehicle, r.Status, detail)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%d of %d downloaded (run %s)\n", sum.OK, len(sum.Results), sum.RunID)
}

func setupLogger(level, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
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

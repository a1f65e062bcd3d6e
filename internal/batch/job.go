package batch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/fleet_routes/internal/browser"
	"github.com/dgnsrekt/fleet_routes/internal/config"
	"github.com/dgnsrekt/fleet_routes/internal/download"
	"github.com/dgnsrekt/fleet_routes/internal/notify"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
	"github.com/dgnsrekt/fleet_routes/internal/vehicles"
)

// Job wires a full batch: the vehicle list, one browser session and the
// portal client driving it.
type Job struct {
	Config  *config.Config
	Profile *config.PortalProfile
	// Ledger is optional.
	Ledger Recorder
	// Events is optional; the controller streams progress through it.
	Events Publisher
	// HTTPClient is used for notifications; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Run executes one batch. The returned error is non-nil only when the batch
// could not start; per-vehicle failures are reported in the summary.
func (j *Job) Run(ctx context.Context, runID string) (Summary, error) {
	sum, err := j.run(ctx, runID)
	if err != nil {
		now := time.Now()
		sum = Summary{RunID: runID, StartedAt: now, FinishedAt: now, Error: err.Error()}
		if j.Events != nil {
			j.Events.Publish(FeedRun, RunEvent{RunID: runID, Phase: "failed", Summary: &sum})
		}
	}
	j.notify(ctx, sum)
	return sum, err
}

func (j *Job) run(ctx context.Context, runID string) (Summary, error) {
	cfg := j.Config
	list, err := vehicles.LoadList(cfg.VehiclesFile)
	if err != nil {
		return Summary{}, err
	}
	slog.Info("vehicle list loaded", "file", cfg.VehiclesFile, "vehicles", len(list))

	sess, err := browser.NewSession(ctx, browser.Options{
		Headless:    cfg.Headless,
		DownloadDir: cfg.DownloadDir,
		BrowserPath: cfg.BrowserPath,
		UserDataDir: cfg.UserDataDir,
	})
	if err != nil {
		return Summary{}, portal.NewError(portal.CodeBrowserUnavailable, "start browser", err)
	}
	defer sess.Close()

	runner := &Runner{
		Portal: portal.NewClient(sess.Context(), j.Profile, portal.Timeouts{
			Login:   cfg.LoginTimeout,
			History: cfg.HistoryTimeout,
		}),
		Waiter: &download.Waiter{
			Dir:     sess.DownloadDir(),
			Timeout: cfg.DownloadTimeout,
			Poll:    cfg.DownloadPoll,
			Events:  sess.Downloads(),
		},
		Creds: portal.Credentials{
			Account:  cfg.Account,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		FailFast:  cfg.FailFast,
		Recorder:  j.Ledger,
		Publisher: j.Events,
	}
	return runner.Run(ctx, runID, list), nil
}

func (j *Job) notify(ctx context.Context, sum Summary) {
	if j.Config.NTFYEndpoint == "" {
		return
	}
	// The batch context may already be canceled; the report still goes out.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := notify.Send(nctx, j.HTTPClient, j.Config.NTFYEndpoint, summaryMessage(sum)); err != nil {
		slog.Warn("summary notification failed", "endpoint", j.Config.NTFYEndpoint, "error", err)
	}
}

func summaryMessage(sum Summary) notify.Message {
	msg := notify.Message{Title: "Route export", Body: sum.Message(), Tags: []string{"truck"}}
	if !sum.Succeeded() {
		msg.Priority = "high"
		msg.Tags = append(msg.Tags, "warning")
	}
	return msg
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/fleet_routes/internal/download"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
)

// Recorder persists vehicle results as they are produced.
type Recorder interface {
	Write(record any) error
}

// Publisher receives progress events while a batch runs.
type Publisher interface {
	Publish(feed string, v any)
}

// Event feeds sent to a Publisher.
const (
	FeedRun     = "run"
	FeedVehicle = "vehicle"
)

// RunEvent marks the start or end of a batch on the run feed.
type RunEvent struct {
	RunID    string   `json:"run_id"`
	Phase    string   `json:"phase"`
	Vehicles int      `json:"vehicles"`
	Summary  *Summary `json:"summary,omitempty"`
}

// Runner exports route history for a list of vehicles, one at a time.
type Runner struct {
	Portal   portal.Portal
	Waiter   *download.Waiter
	Creds    portal.Credentials
	FailFast bool
	// Recorder is optional.
	Recorder Recorder
	// Publisher is optional.
	Publisher Publisher
	// Now defaults to time.Now.
	Now func() time.Time
}

// stageError marks the step of a vehicle iteration that failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func inStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: stage, err: err}
}

const stageResolve = "resolve vehicle"

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run processes vehicles in order. Each vehicle's failure is recorded and
// the batch moves on, unless FailFast is set, in which case the remaining
// vehicles are skipped. Cancelling ctx skips whatever has not started.
func (r *Runner) Run(ctx context.Context, runID string, vehicles []string) Summary {
	sum := Summary{RunID: runID, StartedAt: r.now(), Results: make([]VehicleResult, 0, len(vehicles))}
	slog.Info("batch started", "run_id", runID, "vehicles", len(vehicles), "fail_fast", r.FailFast)
	r.publish(FeedRun, RunEvent{RunID: runID, Phase: "started", Vehicles: len(vehicles)})

	halted := ""
	for i, name := range vehicles {
		if halted == "" && ctx.Err() != nil {
			halted = "canceled"
		}
		if halted != "" {
			res := VehicleResult{RunID: runID, Vehicle: name, Status: StatusSkipped, Error: halted, StartedAt: r.now()}
			res.FinishedAt = res.StartedAt
			r.record(&sum, res)
			continue
		}

		slog.Info("processing vehicle", "vehicle", name, "index", i+1, "total", len(vehicles))
		res := r.runVehicle(ctx, runID, name)
		r.record(&sum, res)

		if res.Status != StatusOK && r.FailFast {
			halted = fmt.Sprintf("fail-fast after %s", name)
			slog.Warn("halting batch", "vehicle", name, "status", res.Status)
		}
	}

	sum.FinishedAt = r.now()
	slog.Info("batch finished", "run_id", runID,
		"ok", sum.OK, "failed", sum.Failed, "skipped", sum.Skipped, "total", len(vehicles))
	r.publish(FeedRun, RunEvent{RunID: runID, Phase: "finished", Vehicles: len(vehicles), Summary: &sum})
	return sum
}

func (r *Runner) publish(feed string, v any) {
	if r.Publisher != nil {
		r.Publisher.Publish(feed, v)
	}
}

func (r *Runner) record(sum *Summary, res VehicleResult) {
	sum.add(res)
	r.publish(FeedVehicle, res)
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.Write(res); err != nil {
		slog.Warn("run ledger write failed", "vehicle", res.Vehicle, "error", err)
	}
}

func (r *Runner) runVehicle(ctx context.Context, runID, name string) VehicleResult {
	res := VehicleResult{RunID: runID, Vehicle: name, StartedAt: r.now()}
	resolution, file, err := r.export(ctx, name)
	res.FinishedAt = r.now()
	res.InternalID = resolution.InternalID

	if err != nil {
		res.Status = classify(err)
		res.Code = portal.CodeOf(err)
		res.Error = err.Error()
		slog.Error("vehicle export failed",
			"vehicle", name,
			"status", res.Status,
			"code", res.Code,
			"error", err)
		return res
	}

	res.Status = StatusOK
	res.File = file
	slog.Info("downloaded file", "vehicle", name, "file", filepath.Base(file))
	return res
}

// export runs one full iteration for a vehicle: log in, open history,
// resolve the vehicle, download yesterday's CSV and rename it.
func (r *Runner) export(ctx context.Context, name string) (portal.Resolution, string, error) {
	if err := r.Portal.Login(ctx, r.Creds); err != nil {
		return portal.Resolution{}, "", inStage("login", err)
	}
	if err := r.Portal.NavigateToHistory(ctx); err != nil {
		return portal.Resolution{}, "", inStage("open history", err)
	}
	res, err := r.Portal.ResolveVehicle(ctx, name)
	if err != nil {
		return portal.Resolution{}, "", inStage(stageResolve, err)
	}
	slog.Debug("vehicle resolved", "vehicle", name, "internal_id", res.InternalID)

	before, err := download.TakeSnapshot(r.Waiter.Dir)
	if err != nil {
		return res, "", inStage("snapshot downloads", err)
	}
	r.Waiter.Drain()
	if err := r.Portal.TriggerDownload(ctx, res, portal.ReportDate(r.now())); err != nil {
		return res, "", inStage("request export", err)
	}
	path, err := r.Waiter.Wait(ctx, before)
	if err != nil {
		return res, "", inStage("wait for download", err)
	}
	renamed, err := download.Rename(path, res.DisplayName)
	if err != nil {
		return res, "", inStage("rename download", err)
	}
	return res, renamed, nil
}

// classify maps an iteration error to a vehicle status. Only a vehicle the
// dropdown does not list counts as not found; a missing control elsewhere
// is a portal failure. A vehicle interrupted by cancellation is canceled.
func classify(err error) Status {
	var se *stageError
	code := portal.CodeOf(err)
	switch {
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case code == portal.CodeElementNotFound && errors.As(err, &se) && se.stage == stageResolve:
		return StatusNotFound
	case code == portal.CodeTimeout, errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusFailed
	}
}

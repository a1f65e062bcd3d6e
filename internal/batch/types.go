// Package batch runs the per-vehicle export loop and tracks its outcomes.
package batch

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of one vehicle in a batch.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusTimeout  Status = "timeout"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusSkipped  Status = "skipped"
)

// VehicleResult records what happened to one vehicle.
type VehicleResult struct {
	RunID      string    `json:"run_id"`
	Vehicle    string    `json:"vehicle"`
	Status     Status    `json:"status"`
	Code       string    `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
	InternalID string    `json:"internal_id,omitempty"`
	File       string    `json:"file,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary is the result of one batch.
type Summary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []VehicleResult `json:"results"`
	OK         int             `json:"ok"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	// Error is set when the batch could not start, e.g. the browser failed to launch.
	Error string `json:"error,omitempty"`
}

func (s *Summary) add(r VehicleResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusOK:
		s.OK++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Succeeded reports whether the batch started and every vehicle was exported.
func (s Summary) Succeeded() bool {
	return s.Error == "" && s.OK == len(s.Results)
}

// Message is a short human-readable report of the batch.
func (s Summary) Message() string {
	if s.Error != "" {
		return fmt.Sprintf("Route export %s did not run: %s", s.RunID, s.Error)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Route export %s: %d of %d downloaded", s.RunID, s.OK, len(s.Results))
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", s.Skipped)
	}
	b.WriteString(".")
	for _, r := range s.Results {
		if r.Status == StatusOK || r.Status == StatusSkipped {
			continue
		}
		fmt.Fprintf(&b, " %s: %s", r.Vehicle, r.Status)
		if r.Code != "" {
			fmt.Fprintf(&b, " (%s)", r.Code)
		}
		b.WriteString(".")
	}
	return b.String()
}

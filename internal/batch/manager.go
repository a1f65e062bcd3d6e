package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunActive is returned by Start while another batch is running.
var ErrRunActive = errors.New("a batch is already running")

// RunFunc executes one batch under the given run ID.
type RunFunc func(ctx context.Context, runID string) (Summary, error)

// RunState describes the batch currently in flight, if any.
type RunState struct {
	Running   bool       `json:"running"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Manager admits one batch at a time and keeps the latest summary.
type Manager struct {
	base  context.Context
	run   RunFunc
	newID func() string

	mu      sync.Mutex
	current RunState
	latest  *Summary
	wg      sync.WaitGroup
}

// NewManager returns a manager whose batches run under base; canceling base
// stops the running batch.
func NewManager(base context.Context, run RunFunc) *Manager {
	return &Manager{base: base, run: run, newID: uuid.NewString}
}

// Start launches a batch in the background and returns its run ID.
func (m *Manager) Start() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Running {
		return "", ErrRunActive
	}

	id := m.newID()
	started := time.Now()
	m.current = RunState{Running: true, RunID: id, StartedAt: &started}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		sum, err := m.run(m.base, id)
		if err != nil {
			slog.Error("batch failed to run", "run_id", id, "error", err)
			if sum.Error == "" {
				sum.Error = err.Error()
			}
		}
		if sum.RunID == "" {
			sum.RunID = id
		}

		m.mu.Lock()
		m.latest = &sum
		m.current = RunState{}
		m.mu.Unlock()
	}()
	return id, nil
}

// Current reports the batch in flight.
func (m *Manager) Current() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Latest returns the summary of the most recently finished batch.
func (m *Manager) Latest() (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Summary{}, false
	}
	return *m.latest, true
}

// Wait blocks until no batch is running.
func (m *Manager) Wait() {
	m.wg.Wait()
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/fleet_routes/internal/batch"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
	"github.com/dgnsrekt/fleet_routes/internal/relay"
)

type stubService struct {
	startID  string
	startErr error
	state    batch.RunState
	latest   *batch.Summary
	records  []json.RawMessage
	dayErr   error
}

func (s *stubService) StartRun(ctx context.Context) (string, error) { return s.startID, s.startErr }
func (s *stubService) CurrentRun(ctx context.Context) batch.RunState { return s.state }
func (s *stubService) LatestRun(ctx context.Context) (batch.Summary, error) {
	if s.latest == nil {
		return batch.Summary{}, &portal.CodedError{Code: portal.CodeFileNotFound, Message: "no batch has finished yet"}
	}
	return *s.latest, nil
}
func (s *stubService) LedgerDay(ctx context.Context, date string) ([]json.RawMessage, error) {
	return s.records, s.dayErr
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if !strings.Contains(body, `apiDescriptionUrl="/openapi.json"`) {
		t.Fatalf("docs missing openapi reference")
	}
}

func TestOpenAPIListsRunOperations(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	for _, path := range []string{"/health", "/api/v1/runs", "/api/v1/runs/latest", "/api/v1/runs/current", "/api/v1/ledger/{date}"} {
		if !strings.Contains(w.Body.String(), `"`+path+`"`) {
			t.Fatalf("openapi missing path %s", path)
		}
	}
}

func TestEventsDocsMountedWithBroker(t *testing.T) {
	for _, tc := range []struct {
		name   string
		events *relay.Broker
		want   int
	}{
		{name: "with broker", events: relay.NewBroker(), want: http.StatusOK},
		{name: "without broker", events: nil, want: http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := NewServer(&stubService{}, tc.events)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/events", nil))
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusOK && !strings.Contains(w.Body.String(), "/api/v1/runs/ws") {
				t.Fatalf("events docs missing websocket endpoint")
			}
		})
	}
}

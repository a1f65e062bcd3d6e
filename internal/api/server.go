package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/fleet_routes/internal/batch"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
	"github.com/dgnsrekt/fleet_routes/internal/relay"
)

// Service is what the controller API needs from the batch layer.
type Service interface {
	StartRun(ctx context.Context) (string, error)
	CurrentRun(ctx context.Context) batch.RunState
	LatestRun(ctx context.Context) (batch.Summary, error)
	LedgerDay(ctx context.Context, date string) ([]json.RawMessage, error)
}

// NewServer builds the controller API. When events is non-nil, batch progress
// is streamed on /api/v1/runs/events (SSE) and /api/v1/runs/ws (WebSocket).
func NewServer(svc Service, events *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Route Export Controller API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if events != nil {
		router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
				slog.Debug("events docs response write failed", "error", err)
			}
		})
		router.Get("/api/v1/runs/events", relay.SSEHandler(events))
		router.Get("/api/v1/runs/ws", relay.WSHandler(events))
	}

	registerHealthHandlers(api)
	registerRunHandlers(api, svc)

	return router
}

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, batch.ErrRunActive) {
		return huma.Error409Conflict(err.Error())
	}
	var coded *portal.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case portal.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case portal.CodeFileNotFound, portal.CodeElementNotFound:
			return huma.Error404NotFound(coded.Message)
		case portal.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case portal.CodeBrowserUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

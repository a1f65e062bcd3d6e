package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/fleet_routes/internal/batch"
)

type startRunOutput struct {
	Body struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
}

type runStateOutput struct {
	Body batch.RunState
}

type summaryOutput struct {
	Body batch.Summary
}

type ledgerInput struct {
	Date string `path:"date" doc:"UTC day in YYYY-MM-DD form" example:"2024-03-15"`
}

type ledgerOutput struct {
	Body struct {
		Date    string            `json:"date"`
		Records []json.RawMessage `json:"records"`
	}
}

func registerRunHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "start-run", Method: http.MethodPost, Path: "/api/v1/runs", Summary: "Start a route export batch", Tags: []string{"Runs"}, DefaultStatus: http.StatusAccepted},
		func(ctx context.Context, input *struct{}) (*startRunOutput, error) {
			id, err := svc.StartRun(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &startRunOutput{}
			out.Body.RunID = id
			out.Body.Status = "started"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "current-run", Method: http.MethodGet, Path: "/api/v1/runs/current", Summary: "Report the batch in flight", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct{}) (*runStateOutput, error) {
			return &runStateOutput{Body: svc.CurrentRun(ctx)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "latest-run", Method: http.MethodGet, Path: "/api/v1/runs/latest", Summary: "Get the summary of the last finished batch", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct{}) (*summaryOutput, error) {
			sum, err := svc.LatestRun(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &summaryOutput{Body: sum}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "ledger-day", Method: http.MethodGet, Path: "/api/v1/ledger/{date}", Summary: "List vehicle results recorded on one day", Tags: []string{"Ledger"}},
		func(ctx context.Context, input *ledgerInput) (*ledgerOutput, error) {
			records, err := svc.LedgerDay(ctx, input.Date)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &ledgerOutput{}
			out.Body.Date = input.Date
			out.Body.Records = records
			if out.Body.Records == nil {
				out.Body.Records = []json.RawMessage{}
			}
			return out, nil
		})
}

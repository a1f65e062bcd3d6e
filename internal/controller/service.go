package controller

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dgnsrekt/fleet_routes/internal/batch"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
	"github.com/dgnsrekt/fleet_routes/internal/storage"
)

// Service exposes batch runs and the run ledger to the HTTP API.
type Service struct {
	runs      *batch.Manager
	ledgerDir string
}

func NewService(runs *batch.Manager, ledgerDir string) *Service {
	return &Service{runs: runs, ledgerDir: ledgerDir}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &portal.CodedError{Code: portal.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) StartRun(ctx context.Context) (string, error) {
	return s.runs.Start()
}

func (s *Service) CurrentRun(ctx context.Context) batch.RunState {
	return s.runs.Current()
}

func (s *Service) LatestRun(ctx context.Context) (batch.Summary, error) {
	sum, ok := s.runs.Latest()
	if !ok {
		return batch.Summary{}, &portal.CodedError{Code: portal.CodeFileNotFound, Message: "no batch has finished yet"}
	}
	return sum, nil
}

func (s *Service) LedgerDay(ctx context.Context, date string) ([]json.RawMessage, error) {
	if err := s.requireNonEmpty(date, "date"); err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &portal.CodedError{Code: portal.CodeValidation, Message: "date must be YYYY-MM-DD", Cause: err}
	}
	records, err := storage.ReadDay(s.ledgerDir, date)
	if err != nil {
		return nil, &portal.CodedError{Code: portal.CodeFileAccess, Message: "read run ledger", Cause: err}
	}
	return records, nil
}

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type entry struct {
	Vehicle string `json:"vehicle"`
	Status  string `json:"status"`
}

func TestLedgerWritesDateDirectory(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(dir, 8, 1)
	l.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	for _, e := range []entry{{"ABC123", "ok"}, {"GHI789", "not_found"}} {
		if err := l.Write(e); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "2024-03-15", LedgerFile)); err != nil {
		t.Fatalf("ledger file missing: %v", err)
	}

	records, err := ReadDay(dir, "2024-03-15")
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d; want 2", len(records))
	}
	var got entry
	if err := json.Unmarshal(records[1], &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got.Vehicle != "GHI789" || got.Status != "not_found" {
		t.Fatalf("records[1] = %+v; want GHI789 not_found", got)
	}
}

func TestLedgerWriteAfterClose(t *testing.T) {
	l := NewLedger(t.TempDir(), 1, 1)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Write(entry{Vehicle: "X"}); err == nil {
		t.Fatal("Write() after Close = nil; want error")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestReadDayMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	records, err := ReadDay(dir, "2024-01-01")
	if err != nil || len(records) != 0 {
		t.Fatalf("ReadDay() = %v, %v; want no records", records, err)
	}
	if _, err := ReadDay(dir, "../etc"); err == nil {
		t.Fatal("ReadDay() with invalid date = nil error")
	}
}

func TestReadDaySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	day := filepath.Join(dir, "2024-03-15")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatalf("os.MkdirAll() failed: %v", err)
	}
	content := "{\"vehicle\":\"A\"}\n{truncated\n\n{\"vehicle\":\"B\"}\n"
	if err := os.WriteFile(filepath.Join(day, LedgerFile), []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
	records, err := ReadDay(dir, "2024-03-15")
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d; want 2", len(records))
	}
}

package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/fleet_routes/internal/browser"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
}

func TestRenamedName(t *testing.T) {
	tests := []struct {
		original, display, want string
	}{
		{"./ABC123_20240314.csv", "XYZ", "XYZ_ABC123_20240314.csv"},
		{"ABC123_20240314.csv", "XYZ", "XYZ_ABC123_20240314.csv"},
		{"History.CSV", "AB12 CDE", "AB12 CDE_History.csv"},
		{"History.csv", "AB/12", "AB_12_History.csv"},
		{"History.csv", `AB\12`, "AB_12_History.csv"},
		{"History.csv", "../../escape", "____escape_History.csv"},
	}
	for _, tt := range tests {
		if got := RenamedName(tt.original, tt.display); got != tt.want {
			t.Errorf("RenamedName(%q, %q) = %q; want %q", tt.original, tt.display, got, tt.want)
		}
	}
}

func TestRenameKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()

	first := filepath.Join(dir, "History.csv")
	writeFile(t, first, "day one")
	got, err := Rename(first, "ABC123")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if want := filepath.Join(dir, "ABC123_History.csv"); got != want {
		t.Fatalf("Rename() = %q; want %q", got, want)
	}

	// The portal reuses the same file name for a second export.
	writeFile(t, first, "day one again")
	got, err = Rename(first, "ABC123")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if want := filepath.Join(dir, "ABC123_History_2.csv"); got != want {
		t.Fatalf("second Rename() = %q; want %q", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ABC123_History.csv"))
	if err != nil {
		t.Fatalf("os.ReadFile() failed: %v", err)
	}
	if string(data) != "day one" {
		t.Fatalf("first export overwritten: %q", data)
	}
}

func TestRenameStaysInDownloadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("os.Mkdir() failed: %v", err)
	}
	src := filepath.Join(dir, "History.csv")
	writeFile(t, src, "x")

	got, err := Rename(src, "../../escape")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Fatalf("Rename() = %q; want a file inside %q", got, dir)
	}
}

func TestRenameMissingSource(t *testing.T) {
	_, err := Rename(filepath.Join(t.TempDir(), "gone.csv"), "ABC123")
	if got, want := portal.CodeOf(err), portal.CodeFileAccess; got != want {
		t.Fatalf("CodeOf(err) = %q; want %q", got, want)
	}
}

func TestTakeSnapshotFiltersFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "c.crdownload"), "c")
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatalf("os.Mkdir() failed: %v", err)
	}

	snap, err := TakeSnapshot(dir)
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d; want 2 (%v)", len(snap), snap)
	}
	if _, ok := snap["a.csv"]; !ok {
		t.Fatal("snapshot missing a.csv")
	}
}

func TestTakeSnapshotMissingDir(t *testing.T) {
	_, err := TakeSnapshot(filepath.Join(t.TempDir(), "missing"))
	if got, want := portal.CodeOf(err), portal.CodeFileAccess; got != want {
		t.Fatalf("CodeOf(err) = %q; want %q", got, want)
	}
}

func TestWaitReturnsNewStableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.csv"), "stray")
	before, err := TakeSnapshot(dir)
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "ABC123_20240314.csv"), "lat,lon\n")

	w := &Waiter{Dir: dir, Timeout: 2 * time.Second, Poll: 10 * time.Millisecond}
	got, err := w.Wait(context.Background(), before)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if want := filepath.Join(dir, "ABC123_20240314.csv"); got != want {
		t.Fatalf("Wait() = %q; want %q", got, want)
	}
}

func TestWaitAcceptsStableEmptyFile(t *testing.T) {
	dir := t.TempDir()
	before, _ := TakeSnapshot(dir)
	writeFile(t, filepath.Join(dir, "History.csv"), "")

	w := &Waiter{Dir: dir, Timeout: 2 * time.Second, Poll: 10 * time.Millisecond}
	got, err := w.Wait(context.Background(), before)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if filepath.Base(got) != "History.csv" {
		t.Fatalf("Wait() = %q; want History.csv", got)
	}
}

func TestWaitCompletedEvent(t *testing.T) {
	dir := t.TempDir()
	before, _ := TakeSnapshot(dir)
	writeFile(t, filepath.Join(dir, "History.csv"), "x")

	events := make(chan browser.DownloadEvent, 1)
	events <- browser.DownloadEvent{GUID: "g", State: browser.DownloadCompleted}
	w := &Waiter{Dir: dir, Timeout: 2 * time.Second, Poll: time.Hour, Events: events}

	got, err := w.Wait(context.Background(), before)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if filepath.Base(got) != "History.csv" {
		t.Fatalf("Wait() = %q; want History.csv", got)
	}
}

func TestWaitNothingAppears(t *testing.T) {
	dir := t.TempDir()
	before, _ := TakeSnapshot(dir)
	w := &Waiter{Dir: dir, Timeout: 50 * time.Millisecond, Poll: 10 * time.Millisecond}

	_, err := w.Wait(context.Background(), before)
	if got, want := portal.CodeOf(err), portal.CodeFileNotFound; got != want {
		t.Fatalf("CodeOf(err) = %q; want %q", got, want)
	}
}

func TestWaitPartialDownloadTimesOut(t *testing.T) {
	dir := t.TempDir()
	before, _ := TakeSnapshot(dir)
	writeFile(t, filepath.Join(dir, "Unconfirmed 1.crdownload"), "half")
	w := &Waiter{Dir: dir, Timeout: 50 * time.Millisecond, Poll: 10 * time.Millisecond}

	_, err := w.Wait(context.Background(), before)
	if got, want := portal.CodeOf(err), portal.CodeDownloadIncomplete; got != want {
		t.Fatalf("CodeOf(err) = %q; want %q", got, want)
	}
}

func TestWaitCanceledDownload(t *testing.T) {
	events := make(chan browser.DownloadEvent, 1)
	events <- browser.DownloadEvent{GUID: "g", State: browser.DownloadCanceled}
	w := &Waiter{Dir: t.TempDir(), Timeout: time.Second, Poll: time.Hour, Events: events}

	_, err := w.Wait(context.Background(), Snapshot{})
	if got, want := portal.CodeOf(err), portal.CodeDownloadIncomplete; got != want {
		t.Fatalf("CodeOf(err) = %q; want %q", got, want)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &Waiter{Dir: t.TempDir(), Timeout: time.Second, Poll: time.Hour}

	if _, err := w.Wait(ctx, Snapshot{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v; want context.Canceled", err)
	}
}

func TestDrainDiscardsStaleEvents(t *testing.T) {
	events := make(chan browser.DownloadEvent, 3)
	events <- browser.DownloadEvent{State: browser.DownloadCompleted}
	events <- browser.DownloadEvent{State: browser.DownloadInProgress}
	w := &Waiter{Events: events}
	w.Drain()
	if got := len(events); got != 0 {
		t.Fatalf("len(events) = %d; want 0", got)
	}
}

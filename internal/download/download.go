// Package download finds the file a portal export produced and gives it a
// per-vehicle name.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/fleet_routes/internal/browser"
	"github.com/dgnsrekt/fleet_routes/internal/portal"
)

const (
	csvExt     = ".csv"
	partialExt = ".crdownload"

	// emptyStablePolls is how many unchanged polls a zero-byte CSV needs
	// before it counts as finished.
	emptyStablePolls = 3
)

type fileState struct {
	size    int64
	modTime time.Time
}

// Snapshot is the set of CSV and partial download files in a directory at
// one point in time.
type Snapshot map[string]fileState

// TakeSnapshot lists the CSV and partial download files directly inside dir.
func TakeSnapshot(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, portal.NewError(portal.CodeFileAccess, "read download dir "+dir, err)
	}
	snap := make(Snapshot)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isCSV(name) && !isPartial(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Renamed or removed between ReadDir and Info.
			continue
		}
		snap[name] = fileState{size: info.Size(), modTime: info.ModTime()}
	}
	return snap, nil
}

func isCSV(name string) bool     { return strings.EqualFold(filepath.Ext(name), csvExt) }
func isPartial(name string) bool { return strings.HasSuffix(name, partialExt) }

// changed reports the files in after that are absent from before or differ
// from it: the newest such CSV, and whether a new partial download exists.
func changed(before, after Snapshot) (name string, state fileState, found, partial bool) {
	for n, st := range after {
		if prev, ok := before[n]; ok && prev == st {
			continue
		}
		if isPartial(n) {
			partial = true
			continue
		}
		if !found || st.modTime.After(state.modTime) {
			name, state, found = n, st, true
		}
	}
	return name, state, found, partial
}

// Waiter waits for an export to land in Dir.
type Waiter struct {
	Dir     string
	Timeout time.Duration
	Poll    time.Duration
	// Events may be nil, in which case only the directory is watched.
	Events <-chan browser.DownloadEvent
}

// Drain discards download events left over from earlier exports.
func (w *Waiter) Drain() {
	for {
		select {
		case <-w.Events:
		default:
			return
		}
	}
}

// Wait blocks until a CSV that is not in before has finished downloading and
// returns its path. The file counts as finished once the browser reports the
// download completed or its size is unchanged across two polls. A zero-byte
// file needs emptyStablePolls unchanged polls instead.
func (w *Waiter) Wait(ctx context.Context, before Snapshot) (string, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := w.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var (
		completed bool
		started   bool
		lastName  string
		lastState fileState
		stable    int
	)

	check := func() (string, bool, error) {
		after, err := TakeSnapshot(w.Dir)
		if err != nil {
			return "", false, err
		}
		name, st, ok, partial := changed(before, after)
		if partial {
			started = true
		}
		if !ok {
			return "", false, nil
		}
		started = true
		if completed && !partial {
			return name, true, nil
		}
		if name == lastName && st == lastState && !partial {
			stable++
			// An empty export is legitimate but also looks like a download
			// that has not started writing, so it must hold still longer.
			if st.size > 0 || stable >= emptyStablePolls {
				return name, true, nil
			}
			return "", false, nil
		}
		lastName, lastState, stable = name, st, 0
		return "", false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev := <-w.Events:
			switch ev.State {
			case browser.DownloadCanceled:
				return "", portal.NewError(portal.CodeDownloadIncomplete, "download canceled by browser", nil)
			case browser.DownloadCompleted:
				completed = true
			default:
				started = true
				continue
			}
		case <-ticker.C:
		case <-deadline.C:
			if !started {
				return "", portal.NewError(portal.CodeFileNotFound, "no csv file appeared in "+w.Dir, nil)
			}
			return "", portal.NewError(portal.CodeDownloadIncomplete,
				fmt.Sprintf("download did not complete within %s", timeout), nil)
		}

		name, done, err := check()
		if err != nil {
			return "", err
		}
		if done {
			slog.Debug("download finished", "file", name)
			return filepath.Join(w.Dir, name), nil
		}
	}
}

// RenamedName returns the per-vehicle name for a portal file:
// {displayName}_{stem}.csv, where stem drops any leading "./" and the
// trailing ".csv". Path separators and ".." in displayName become "_".
func RenamedName(original, displayName string) string {
	stem := strings.TrimPrefix(filepath.ToSlash(original), "./")
	stem = filepath.Base(stem)
	if strings.HasSuffix(strings.ToLower(stem), csvExt) {
		stem = stem[:len(stem)-len(csvExt)]
	}
	return fileSafe(displayName) + "_" + stem + csvExt
}

var unsafeNameParts = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

// fileSafe keeps a display name from leaving the download directory.
func fileSafe(name string) string {
	return unsafeNameParts.Replace(name)
}

// Rename moves path to its per-vehicle name in the same directory. An
// existing file is never overwritten; a numeric suffix is added instead.
func Rename(path, displayName string) (string, error) {
	dir := filepath.Dir(path)
	name := RenamedName(filepath.Base(path), displayName)
	base := strings.TrimSuffix(name, csvExt)

	target := filepath.Join(dir, name)
	for i := 2; ; i++ {
		_, err := os.Lstat(target)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", portal.NewError(portal.CodeFileAccess, "stat "+target, err)
		}
		target = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, csvExt))
	}

	if err := os.Rename(path, target); err != nil {
		return "", portal.NewError(portal.CodeFileAccess, "rename "+filepath.Base(path), err)
	}
	return target, nil
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Options holds browser session configuration. It is fixed once the session starts.
type Options struct {
	Headless    bool
	DownloadDir string
	BrowserPath string
	UserDataDir string
}

// Download states reported by the browser.
const (
	DownloadInProgress = "inProgress"
	DownloadCompleted  = "completed"
	DownloadCanceled   = "canceled"
)

// DownloadEvent is a browser download lifecycle notification.
type DownloadEvent struct {
	GUID              string
	SuggestedFilename string
	State             string
	ReceivedBytes     int64
	TotalBytes        int64
}

// Session owns one Chrome process and the tab driven by the exporter.
type Session struct {
	opts        Options
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	downloads   chan DownloadEvent
	closeOnce   sync.Once
}

// DetectBrowser finds an available Chrome/Chromium binary on PATH or in the
// default macOS location.
func DetectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried chromium-browser, chromium, google-chrome)")
}

func (o Options) validate() error {
	if o.DownloadDir == "" {
		return errors.New("download directory is required")
	}
	if !filepath.IsAbs(o.DownloadDir) {
		return fmt.Errorf("download directory must be absolute: %s", o.DownloadDir)
	}
	return nil
}

func (o Options) allocatorOptions(browserPath string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browserPath),
		chromedp.Flag("headless", o.Headless),
		chromedp.DisableGPU,
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("safebrowsing-disable-download-protection", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if o.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(o.UserDataDir))
	}
	return opts
}

// NewSession launches the browser, opens a tab and allows downloads into
// opts.DownloadDir. The caller must Close the session on every path.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	browserPath := opts.BrowserPath
	if browserPath == "" {
		path, err := DetectBrowser()
		if err != nil {
			return nil, err
		}
		browserPath = path
	}
	slog.Info("detected browser", "path", browserPath, "headless", opts.Headless)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts.allocatorOptions(browserPath)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Session{
		opts:        opts,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		downloads:   make(chan DownloadEvent, 64),
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	// Headless Chrome drops downloads unless told where to put them.
	err := chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(opts.DownloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser session: %w", err)
	}

	slog.Info("browser session started", "download_dir", opts.DownloadDir)
	return s, nil
}

func (s *Session) onEvent(ev any) {
	var out DownloadEvent
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		out = DownloadEvent{GUID: e.GUID, SuggestedFilename: e.SuggestedFilename, State: DownloadInProgress}
	case *cdpbrowser.EventDownloadProgress:
		out = DownloadEvent{
			GUID:          e.GUID,
			State:         string(e.State),
			ReceivedBytes: int64(e.ReceivedBytes),
			TotalBytes:    int64(e.TotalBytes),
		}
	default:
		return
	}
	// Event handlers must not block the CDP reader.
	select {
	case s.downloads <- out:
	default:
		slog.Warn("download event dropped, buffer full", "guid", out.GUID, "state", out.State)
	}
}

// Context returns the chromedp context of the session's tab.
func (s *Session) Context() context.Context {
	return s.ctx
}

// DownloadDir returns the absolute directory downloads are written to.
func (s *Session) DownloadDir() string {
	return s.opts.DownloadDir
}

// Downloads delivers download lifecycle events for the session's tab.
func (s *Session) Downloads() <-chan DownloadEvent {
	return s.downloads
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("graceful browser close failed", "error", err)
		}
		s.cancel()
		s.allocCancel()
		slog.Info("browser session closed")
	})
	return nil
}

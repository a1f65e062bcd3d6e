package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LedgerFile is the file name used inside each date directory.
const LedgerFile = "runs.jsonl"

// Ledger appends JSON records to {baseDir}/{YYYY-MM-DD}/runs.jsonl. Writes
// are queued and flushed by a background goroutine.
type Ledger struct {
	baseDir     string
	maxSizeMB   int
	writeCh     chan any
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
	currentDate string
	logger      *lumberjack.Logger
	mu          sync.Mutex
	now         func() time.Time
}

// NewLedger starts a ledger writer rooted at baseDir.
func NewLedger(baseDir string, bufferSize int, maxSizeMB int) *Ledger {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	l := &Ledger{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}

	l.wg.Add(1)
	go l.writeLoop()

	return l
}

// Write queues a record. It never blocks; a full buffer drops the record.
func (l *Ledger) Write(record any) error {
	select {
	case <-l.done:
		return fmt.Errorf("ledger is closed")
	default:
	}
	select {
	case l.writeCh <- record:
		return nil
	default:
		slog.Warn("run ledger buffer full, dropping record", "dir", l.baseDir)
		return fmt.Errorf("buffer full")
	}
}

// Close flushes queued records and closes the current file.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger != nil {
		err := l.logger.Close()
		l.logger = nil
		return err
	}
	return nil
}

func (l *Ledger) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case record := <-l.writeCh:
			l.writeRecord(record)
		case <-l.done:
			l.flush()
			return
		}
	}
}

// flush writes whatever is still queued, bounded so Close cannot hang.
func (l *Ledger) flush() {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case record := <-l.writeCh:
			l.writeRecord(record)
		case <-timeout:
			slog.Warn("run ledger close timeout, some records may be lost", "dir", l.baseDir)
			return
		default:
			return
		}
	}
}

func (l *Ledger) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("Failed to marshal ledger record", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	date := l.now().UTC().Format("2006-01-02")
	if date != l.currentDate || l.logger == nil {
		if err := l.rotateForDate(date); err != nil {
			slog.Error("Failed to open ledger file", "error", err, "date", date)
			return
		}
	}

	if _, err := l.logger.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write ledger record", "error", err)
	}
}

func (l *Ledger) rotateForDate(date string) error {
	if l.logger != nil {
		_ = l.logger.Close()
		l.logger = nil
	}

	dir := filepath.Join(l.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir %s: %w", dir, err)
	}

	filename := filepath.Join(dir, LedgerFile)
	l.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    l.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     90,
		Compress:   false,
		LocalTime:  false,
	}

	l.currentDate = date
	slog.Info("Opened run ledger", "file", filename)
	return nil
}

// ReadDay returns the records written on date (YYYY-MM-DD), oldest first.
// A day with no ledger file yields no records.
func ReadDay(baseDir, date string) ([]json.RawMessage, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid ledger date %q: %w", date, err)
	}
	f, err := os.Open(filepath.Join(baseDir, date, LedgerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var out []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			slog.Warn("skipping malformed ledger line", "date", date)
			continue
		}
		out = append(out, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return out, nil
}

// FILE: src/internal/collector/windows/wer.go
//go:build windows

package windows

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const werScanInterval = 15 * time.Second

// werDirectories is the fixed list scanned for new crash artifacts.
var werDirectories = []string{
	`C:\ProgramData\Microsoft\Windows\WER\ReportQueue`,
	`C:\ProgramData\Microsoft\Windows\WER\ReportArchive`,
}

// WERWatcher polls a fixed list of WER report directories for files
// whose last-write time is newer than the last seen.
type WERWatcher struct {
	stop     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	lastSeen map[string]time.Time
}

// NewWERWatcher constructs a WERWatcher.
func NewWERWatcher() *WERWatcher {
	return &WERWatcher{stop: make(chan struct{}), stopped: make(chan struct{}), lastSeen: make(map[string]time.Time)}
}

func (w *WERWatcher) Name() string { return "wer.watcher" }

func (w *WERWatcher) Start(ctx context.Context, sup *collector.Supervisor) error {
	go w.run(ctx, sup)
	return nil
}

func (w *WERWatcher) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(w.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-time.After(werScanInterval):
		}
		w.scan(sup)
	}
}

func (w *WERWatcher) scan(sup *collector.Supervisor) {
	for _, dir := range werDirectories {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if !info.ModTime().After(w.lastSeen[path]) {
				continue
			}
			w.lastSeen[path] = info.ModTime()
			rec := event.Record{
				Source:   w.Name(),
				Category: event.CategoryWER,
				Severity: event.SeverityInfo,
				Message:  "WER artifact updated",
			}
			rec.SetAttribute("path", path)
			rec.SetAttribute("last_write", info.ModTime().UTC().Format(time.RFC3339))
			sup.Emit(rec)
		}
	}
}

func (w *WERWatcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.stopped
}

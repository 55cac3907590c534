// FILE: src/internal/collector/linux/crash.go
package linux

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/fsnotify/fsnotify"
)

// CrashWatcher observes a crash-dump directory (default /var/crash)
// and emits a Critical record for each new or moved-in file. Uses
// fsnotify in place of the original's raw inotify syscalls.
type CrashWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
	stopped chan struct{}
	once    sync.Once
}

// NewCrashWatcher constructs a CrashWatcher over dir.
func NewCrashWatcher(dir string) *CrashWatcher {
	if dir == "" {
		dir = "/var/crash"
	}
	return &CrashWatcher{dir: dir, stopped: make(chan struct{})}
}

func (c *CrashWatcher) Name() string { return "inotify.crash" }

func (c *CrashWatcher) Start(ctx context.Context, sup *collector.Supervisor) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		sup.Emit(event.Record{
			Source:   c.Name(),
			Category: event.CategoryCrash,
			Severity: event.SeverityWarning,
			Message:  "Cannot watch crash directory",
		})
		return nil
	}
	c.watcher = watcher
	go c.run(ctx, sup)
	return nil
}

func (c *CrashWatcher) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(c.stopped)
	defer c.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rec := event.Record{
				Source:   c.Name(),
				Category: event.CategoryCrash,
				Severity: event.SeverityCritical,
				Message:  "Crash dump detected",
			}
			rec.SetAttribute("path", filepath.Join(c.dir, filepath.Base(ev.Name)))
			sup.Emit(rec)
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (c *CrashWatcher) Stop() {
	c.once.Do(func() {
		if c.watcher != nil {
			c.watcher.Close()
		}
	})
	if c.watcher != nil {
		<-c.stopped
	}
}

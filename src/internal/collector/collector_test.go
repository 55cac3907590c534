// FILE: src/internal/collector/collector_test.go
package collector

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/ringbuffer"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/require"
)

// stubCollector emits a fixed number of records then blocks until
// Stop is called, matching testable property (f)'s stub source shape.
type stubCollector struct {
	name    string
	count   int
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newStubCollector(name string, count int) *stubCollector {
	return &stubCollector{name: name, count: count, stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Start(ctx context.Context, sup *Supervisor) error {
	go func() {
		defer close(c.stopped)
		for i := 0; i < c.count; i++ {
			sup.Emit(event.Record{
				Source:   c.name,
				Category: event.CategoryGeneral,
				Severity: event.SeverityInfo,
				Message:  "stub record",
			})
		}
		select {
		case <-c.stop:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (c *stubCollector) Stop() {
	c.once.Do(func() { close(c.stop) })
	<-c.stopped
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	logger := log.NewLogger()
	require.NoError(t, logger.ApplyConfigString("level=-4", "enable_console=false", "disable_file=true"))
	j, err := journal.Open(filepath.Join(dir, "guest.log"), "test")
	require.NoError(t, err)
	ring := ringbuffer.New[event.Record](64)
	return New(logger, j, ring, WithEmitRateLimit(0, 0))
}

func TestCollectorLifecycleAllRecordsPersisted(t *testing.T) {
	sup := newTestSupervisor(t)
	stub := newStubCollector("stub", 5)
	sup.Register(stub)

	sup.Start(context.Background())
	require.Eventually(t, func() bool {
		return sup.Ring().Size() == 5
	}, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not join collector promptly")
	}

	snap := sup.Ring().Snapshot()
	require.Len(t, snap, 5)
}

func TestEmitStampsCommonAttributes(t *testing.T) {
	sup := newTestSupervisor(t)
	sup.machineID = "abc-123"

	sup.Emit(event.Record{Source: "test", Category: event.CategoryGeneral, Severity: event.SeverityInfo, Message: "m"})

	snap := sup.Ring().Snapshot()
	require.Len(t, snap, 1)
	_, ok := snap[0].Attribute("machine_id")
	require.True(t, ok)
}

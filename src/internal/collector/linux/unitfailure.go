// FILE: src/internal/collector/linux/unitfailure.go
package linux

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const unitFailurePollInterval = 30 * time.Second

func listFailedUnits(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "list-units", "--state=failed", "--no-legend", "--plain").Output()
	if err != nil {
		return nil, err
	}
	var units []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		units = append(units, fields[0])
	}
	sort.Strings(units)
	return units, nil
}

func sameUnitSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// UnitFailurePoller emits a Warning when the failed-unit list is
// non-empty and has changed since the last sample.
type UnitFailurePoller struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewUnitFailurePoller constructs a UnitFailurePoller.
func NewUnitFailurePoller() *UnitFailurePoller {
	return &UnitFailurePoller{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (u *UnitFailurePoller) Name() string { return "systemd.unit-failures" }

func (u *UnitFailurePoller) Start(ctx context.Context, sup *collector.Supervisor) error {
	go u.run(ctx, sup)
	return nil
}

func (u *UnitFailurePoller) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(u.stopped)

	var last []string
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stop:
			return
		case <-time.After(unitFailurePollInterval):
		}

		units, err := listFailedUnits(ctx)
		if err != nil {
			continue
		}
		if len(units) > 0 && !sameUnitSet(units, last) {
			rec := event.Record{
				Source:   u.Name(),
				Category: event.CategoryServiceHealth,
				Severity: event.SeverityWarning,
				Message:  "Failed systemd units detected",
			}
			rec.SetAttribute("units", strings.Join(units, ","))
			sup.Emit(rec)
		}
		last = units
	}
}

func (u *UnitFailurePoller) Stop() {
	u.once.Do(func() { close(u.stop) })
	<-u.stopped
}

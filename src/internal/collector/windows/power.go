// FILE: src/internal/collector/windows/power.go
//go:build windows

package windows

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const powerPollInterval = 30 * time.Second

func readPowerStatus(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command",
		"(Get-CimInstance -ClassName Win32_Battery | Select-Object -First 1 -ExpandProperty BatteryStatus)").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// PowerPoller polls the platform's power status and emits only when it
// changes since the last sample.
type PowerPoller struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewPowerPoller constructs a PowerPoller.
func NewPowerPoller() *PowerPoller {
	return &PowerPoller{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (p *PowerPoller) Name() string { return "power.poller" }

func (p *PowerPoller) Start(ctx context.Context, sup *collector.Supervisor) error {
	go p.run(ctx, sup)
	return nil
}

func (p *PowerPoller) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(p.stopped)

	last := ""
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-time.After(powerPollInterval):
		}

		status, err := readPowerStatus(ctx)
		if err != nil || status == "" {
			continue
		}
		if !first && status == last {
			continue
		}
		first = false
		last = status
		rec := event.Record{
			Source:   p.Name(),
			Category: event.CategoryPower,
			Severity: event.SeverityInfo,
			Message:  "Power status changed",
		}
		rec.SetAttribute("status", status)
		sup.Emit(rec)
	}
}

func (p *PowerPoller) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.stopped
}

// WSLDiagnosticsPoller reads WSL's default-distribution registry
// value, emitting only on change.
type WSLDiagnosticsPoller struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewWSLDiagnosticsPoller constructs a WSLDiagnosticsPoller.
func NewWSLDiagnosticsPoller() *WSLDiagnosticsPoller {
	return &WSLDiagnosticsPoller{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (d *WSLDiagnosticsPoller) Name() string { return "wsl.diagnostics" }

func (d *WSLDiagnosticsPoller) Start(ctx context.Context, sup *collector.Supervisor) error {
	go d.run(ctx, sup)
	return nil
}

func (d *WSLDiagnosticsPoller) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(d.stopped)

	last := ""
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-time.After(powerPollInterval):
		}

		version, err := readRegistryString(`SOFTWARE\Microsoft\Windows\CurrentVersion\Lxss`, "DefaultDistribution")
		if err != nil {
			continue
		}
		if !first && version == last {
			continue
		}
		first = false
		last = version
		rec := event.Record{
			Source:   d.Name(),
			Category: event.CategoryWslDiagnostics,
			Severity: event.SeverityInfo,
			Message:  "WSL default distribution changed",
		}
		rec.SetAttribute("default_distribution", version)
		sup.Emit(rec)
	}
}

func (d *WSLDiagnosticsPoller) Stop() {
	d.once.Do(func() { close(d.stop) })
	<-d.stopped
}

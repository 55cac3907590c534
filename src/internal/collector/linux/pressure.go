// FILE: src/internal/collector/linux/pressure.go
package linux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const pressureSampleInterval = 10 * time.Second

// PressureSampler watches /proc/pressure/{memory,cpu} and emits only
// when the configured thresholds are crossed.
type PressureSampler struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	lastMemSome10 float64
	haveLastMem   bool
}

// NewPressureSampler constructs a PressureSampler.
func NewPressureSampler() *PressureSampler {
	return &PressureSampler{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (p *PressureSampler) Name() string { return "pressure.sampler" }

func (p *PressureSampler) Start(ctx context.Context, sup *collector.Supervisor) error {
	go p.run(ctx, sup)
	return nil
}

func (p *PressureSampler) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.stopped
}

func (p *PressureSampler) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(p.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-time.After(pressureSampleInterval):
		}
		p.sampleMemory(sup)
		p.sampleCPU(sup)
	}
}

func (p *PressureSampler) sampleMemory(sup *collector.Supervisor) {
	some, full, ok := parsePressureFile("/proc/pressure/memory")
	if !ok {
		return
	}

	risen := p.haveLastMem && some.avg10-p.lastMemSome10 > 5
	p.lastMemSome10, p.haveLastMem = some.avg10, true

	trigger := (some.avg10 > 40 && risen) || some.avg60 > 30 || full.avg10 > 5
	if !trigger {
		return
	}

	severity := event.SeverityWarning
	if some.avg10 > 60 || full.avg10 > 10 {
		severity = event.SeverityCritical
	}

	rec := event.Record{
		Source:   "pressure.memory",
		Category: event.CategoryPressure,
		Severity: severity,
		Message:  "Memory pressure elevated",
	}
	rec.SetAttribute("some_avg10", fmt.Sprintf("%.2f", some.avg10))
	rec.SetAttribute("some_avg60", fmt.Sprintf("%.2f", some.avg60))
	rec.SetAttribute("full_avg10", fmt.Sprintf("%.2f", full.avg10))
	sup.Emit(rec)
}

func (p *PressureSampler) sampleCPU(sup *collector.Supervisor) {
	some, full, ok := parsePressureFile("/proc/pressure/cpu")
	if !ok {
		return
	}

	trigger := some.avg10 > 60 || full.avg10 > 20
	if !trigger {
		return
	}

	severity := event.SeverityWarning
	if some.avg10 > 80 {
		severity = event.SeverityCritical
	}

	rec := event.Record{
		Source:   "pressure.cpu",
		Category: event.CategoryPressure,
		Severity: severity,
		Message:  "CPU pressure sustained",
	}
	rec.SetAttribute("some_avg10", fmt.Sprintf("%.2f", some.avg10))
	rec.SetAttribute("full_avg10", fmt.Sprintf("%.2f", full.avg10))
	sup.Emit(rec)
}

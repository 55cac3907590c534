// FILE: src/internal/collector/windows/servicestate.go
//go:build windows

package windows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const serviceSampleInterval = 5 * time.Second

// trackedServices is the static list of platform services sampled for
// current state, process id, and exit code.
var trackedServices = []string{"LxssManager", "vmcompute", "WSLService"}

type serviceSample struct {
	state    svc.State
	pid      uint32
	exitCode uint32
}

func queryService(m *mgr.Mgr, name string) (serviceSample, error) {
	s, err := m.OpenService(name)
	if err != nil {
		return serviceSample{}, err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return serviceSample{}, err
	}
	return serviceSample{state: status.State, pid: status.ProcessId, exitCode: status.Win32ExitCode}, nil
}

// ServiceStateSampler queries a static list of platform services every
// 5 seconds and emits only when a field differs from the last sample.
type ServiceStateSampler struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	last    map[string]serviceSample
}

// NewServiceStateSampler constructs a ServiceStateSampler.
func NewServiceStateSampler() *ServiceStateSampler {
	return &ServiceStateSampler{stop: make(chan struct{}), stopped: make(chan struct{}), last: make(map[string]serviceSample)}
}

func (s *ServiceStateSampler) Name() string { return "service.state" }

func (s *ServiceStateSampler) Start(ctx context.Context, sup *collector.Supervisor) error {
	go s.run(ctx, sup)
	return nil
}

func (s *ServiceStateSampler) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(s.stopped)

	m, err := mgr.Connect()
	if err != nil {
		sup.Emit(event.Record{
			Source:   s.Name(),
			Category: event.CategoryServiceHealth,
			Severity: event.SeverityError,
			Message:  "Cannot connect to service control manager",
		})
		return
	}
	defer m.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(serviceSampleInterval):
		}
		s.sample(sup, m)
	}
}

func (s *ServiceStateSampler) sample(sup *collector.Supervisor, m *mgr.Mgr) {
	for _, name := range trackedServices {
		current, err := queryService(m, name)
		if err != nil {
			continue
		}
		prev, hadPrev := s.last[name]
		s.last[name] = current
		if !hadPrev || prev == current {
			continue
		}

		severity := event.SeverityInfo
		message := "Service state changed"
		if prev.pid != current.pid {
			severity = event.SeverityWarning
			message = "Service process changed"
		}

		rec := event.Record{
			Source:   s.Name(),
			Category: event.CategoryServiceHealth,
			Severity: severity,
			Message:  message,
		}
		rec.SetAttribute("service", name)
		rec.SetAttribute("state", fmt.Sprintf("%d", current.state))
		rec.SetAttribute("pid", fmt.Sprintf("%d", current.pid))
		rec.SetAttribute("exit_code", fmt.Sprintf("%d", current.exitCode))
		sup.Emit(rec)
	}
}

func (s *ServiceStateSampler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.stopped
}

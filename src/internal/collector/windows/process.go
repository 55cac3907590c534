// FILE: src/internal/collector/windows/process.go
//go:build windows

package windows

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"golang.org/x/sys/windows"
)

const processSampleInterval = 3 * time.Second

// trackedProcessNames is the virtualisation stack's user and kernel
// helper process list. Treated as a tuning parameter, not a contract,
// per spec.md's open question on the exact set.
var trackedProcessNames = []string{"wsl.exe", "vmmem", "vmmemWSL.exe", "vmwp.exe", "wslservice.exe", "wslhost.exe"}

type trackedProcess struct {
	pid        uint32
	parentPid  uint32
	workingSet uint64
}

func snapshotProcesses() (map[string]trackedProcess, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	found := make(map[string]trackedProcess)

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return found, nil
	}
	for {
		name := strings.ToLower(windows.UTF16ToString(entry.ExeFile[:]))
		for _, tracked := range trackedProcessNames {
			if name == strings.ToLower(tracked) {
				found[tracked] = trackedProcess{pid: entry.ProcessID, parentPid: entry.ParentProcessID}
			}
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return found, nil
}

func processWorkingSetBytes(pid uint32) (uint64, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(handle)

	var counters windows.PROCESS_MEMORY_COUNTERS
	counters.Cb = uint32(unsafe.Sizeof(counters))
	if err := windows.GetProcessMemoryInfo(handle, &counters); err != nil {
		return 0, err
	}
	return uint64(counters.WorkingSetSize), nil
}

func totalPhysicalMemoryBytes() (uint64, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return 0, err
	}
	return status.TotalPhys, nil
}

// ProcessSampler enumerates the tracked virtualisation-stack process
// names every 3 seconds, emitting on appearance, disappearance, and
// working-set threshold crossings.
type ProcessSampler struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	seen map[string]trackedProcess
	ws   map[string]uint64
}

// NewProcessSampler constructs a ProcessSampler.
func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		seen:    make(map[string]trackedProcess),
		ws:      make(map[string]uint64),
	}
}

func (p *ProcessSampler) Name() string { return "process.sampler" }

func (p *ProcessSampler) Start(ctx context.Context, sup *collector.Supervisor) error {
	go p.run(ctx, sup)
	return nil
}

func (p *ProcessSampler) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(p.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-time.After(processSampleInterval):
		}
		p.sample(sup)
	}
}

func (p *ProcessSampler) sample(sup *collector.Supervisor) {
	current, err := snapshotProcesses()
	if err != nil {
		return
	}
	physical, _ := totalPhysicalMemoryBytes()

	for name, proc := range current {
		if _, ok := p.seen[name]; !ok {
			rec := event.Record{
				Source:   p.Name(),
				Category: event.CategoryProcess,
				Severity: event.SeverityInfo,
				Message:  "Tracked process started",
			}
			rec.SetAttribute("name", name)
			rec.SetAttribute("pid", fmt.Sprintf("%d", proc.pid))
			rec.SetAttribute("parent_pid", fmt.Sprintf("%d", proc.parentPid))
			sup.Emit(rec)
		}
		p.checkWorkingSet(sup, name, proc, physical)
	}
	for name := range p.seen {
		if _, ok := current[name]; !ok {
			rec := event.Record{
				Source:   p.Name(),
				Category: event.CategoryProcess,
				Severity: event.SeverityWarning,
				Message:  "Tracked process exited",
			}
			rec.SetAttribute("name", name)
			sup.Emit(rec)
			delete(p.ws, name)
		}
	}
	p.seen = current
}

func (p *ProcessSampler) checkWorkingSet(sup *collector.Supervisor, name string, proc trackedProcess, physical uint64) {
	ws, err := processWorkingSetBytes(proc.pid)
	if err != nil || physical == 0 {
		return
	}
	prev, hadPrev := p.ws[name]
	p.ws[name] = ws

	pctOfPhysical := float64(ws) / float64(physical) * 100
	grewBy := int64(0)
	if hadPrev {
		grewBy = int64(ws) - int64(prev)
	}
	grewPct := 0.0
	if hadPrev && prev > 0 {
		grewPct = float64(grewBy) / float64(prev) * 100
	}

	const mib256 = 256 * 1024 * 1024
	severity := ""
	switch {
	case pctOfPhysical > 90:
		severity = event.SeverityCritical
	case pctOfPhysical > 75 || grewPct > 25 || grewBy > mib256:
		severity = event.SeverityWarning
	}
	if severity == "" {
		return
	}

	rec := event.Record{
		Source:   p.Name(),
		Category: event.CategoryProcess,
		Severity: severity,
		Message:  "Tracked process memory pressure detected",
	}
	rec.SetAttribute("name", name)
	rec.SetAttribute("working_set_bytes", fmt.Sprintf("%d", ws))
	rec.SetAttribute("percent_of_physical", fmt.Sprintf("%.2f", pctOfPhysical))
	sup.Emit(rec)
}

func (p *ProcessSampler) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.stopped
}

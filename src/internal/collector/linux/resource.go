// FILE: src/internal/collector/linux/resource.go
package linux

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"golang.org/x/sys/unix"
)

const resourceSampleInterval = 5 * time.Second

type cpuSample struct {
	user, nice, system, idle, iowait, irq, softirq uint64
}

func readCPUSample() (cpuSample, bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuSample{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return cpuSample{}, false
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 8 || fields[0] != "cpu" {
		return cpuSample{}, false
	}
	var s cpuSample
	vals := make([]uint64, 7)
	for i := 0; i < 7; i++ {
		vals[i], _ = strconv.ParseUint(fields[i+1], 10, 64)
	}
	s.user, s.nice, s.system, s.idle, s.iowait, s.irq, s.softirq = vals[0], vals[1], vals[2], vals[3], vals[4], vals[5], vals[6]
	return s, true
}

func cpuUsagePercent(prev, curr cpuSample) float64 {
	prevIdle := prev.idle + prev.iowait
	currIdle := curr.idle + curr.iowait
	prevTotal := prevIdle + prev.user + prev.nice + prev.system + prev.irq + prev.softirq
	currTotal := currIdle + curr.user + curr.nice + curr.system + curr.irq + curr.softirq
	totald := currTotal - prevTotal
	idled := currIdle - prevIdle
	if totald == 0 {
		return 0
	}
	return (float64(totald-idled) / float64(totald)) * 100
}

func readMemoryUsedPercent() (float64, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			total, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable":
			available, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if total == 0 {
		return 0, false
	}
	return (1 - float64(available)/float64(total)) * 100, true
}

func rootFilesystemUsedPercent() (float64, bool) {
	var stat unix.Statfs_t
	if err := unix.Statfs("/", &stat); err != nil {
		return 0, false
	}
	if stat.Blocks == 0 {
		return 0, false
	}
	used := stat.Blocks - stat.Bfree
	return (float64(used) / float64(stat.Blocks)) * 100, true
}

// ResourceSampler emits one Info Resource record every 5 seconds with
// CPU, memory, and root-filesystem usage.
type ResourceSampler struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewResourceSampler constructs a ResourceSampler.
func NewResourceSampler() *ResourceSampler {
	return &ResourceSampler{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (r *ResourceSampler) Name() string { return "resource.sampler" }

func (r *ResourceSampler) Start(ctx context.Context, sup *collector.Supervisor) error {
	go r.run(ctx, sup)
	return nil
}

func (r *ResourceSampler) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.stopped
}

func (r *ResourceSampler) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(r.stopped)

	prev, havePrev := readCPUSample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-time.After(resourceSampleInterval):
		}

		curr, ok := readCPUSample()
		var cpuPct float64
		if ok && havePrev {
			cpuPct = cpuUsagePercent(prev, curr)
		}
		if ok {
			prev, havePrev = curr, true
		}

		memPct, _ := readMemoryUsedPercent()
		diskPct, _ := rootFilesystemUsedPercent()

		rec := event.Record{
			Source:   r.Name(),
			Category: event.CategoryResource,
			Severity: event.SeverityInfo,
			Message:  "Resource sample",
		}
		rec.SetAttribute("cpu", fmt.Sprintf("%.2f", cpuPct))
		rec.SetAttribute("mem", fmt.Sprintf("%.2f", memPct))
		rec.SetAttribute("disk_root", fmt.Sprintf("%.2f", diskPct))
		sup.Emit(rec)
	}
}

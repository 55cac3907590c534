// FILE: src/internal/collector/linux/network.go
package linux

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const networkSampleInterval = 15 * time.Second

type interfaceCounters struct {
	rxBytes, rxErrors, rxDropped uint64
	txBytes, txErrors, txDropped uint64
}

func readInterfaceCounters() map[string]interfaceCounters {
	f, err := os.Open("/proc/net/dev")
	if err != nil {
		return nil
	}
	defer f.Close()

	counters := make(map[string]interfaceCounters)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue // header lines
		}
		line := scanner.Text()
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		fields := strings.Fields(line[colon+1:])
		if len(fields) < 16 {
			continue
		}
		var c interfaceCounters
		c.rxBytes, _ = strconv.ParseUint(fields[0], 10, 64)
		c.rxErrors, _ = strconv.ParseUint(fields[2], 10, 64)
		c.rxDropped, _ = strconv.ParseUint(fields[3], 10, 64)
		c.txBytes, _ = strconv.ParseUint(fields[8], 10, 64)
		c.txErrors, _ = strconv.ParseUint(fields[10], 10, 64)
		c.txDropped, _ = strconv.ParseUint(fields[11], 10, 64)
		counters[name] = c
	}
	return counters
}

// NetworkCounters reads per-interface counters every 15 seconds,
// skipping loopback, and emits on non-zero error or drop deltas.
type NetworkCounters struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewNetworkCounters constructs a NetworkCounters collector.
func NewNetworkCounters() *NetworkCounters {
	return &NetworkCounters{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (n *NetworkCounters) Name() string { return "network.counters" }

func (n *NetworkCounters) Start(ctx context.Context, sup *collector.Supervisor) error {
	go n.run(ctx, sup)
	return nil
}

func (n *NetworkCounters) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(n.stopped)

	prev := readInterfaceCounters()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case <-time.After(networkSampleInterval):
		}

		curr := readInterfaceCounters()
		for name, c := range curr {
			if name == "lo" {
				continue
			}
			p, ok := prev[name]
			if !ok {
				continue
			}
			errDelta := (c.rxErrors - p.rxErrors) + (c.txErrors - p.txErrors)
			dropDelta := (c.rxDropped - p.rxDropped) + (c.txDropped - p.txDropped)
			if errDelta == 0 && dropDelta == 0 {
				continue
			}
			severity := event.SeverityInfo
			if errDelta != 0 {
				severity = event.SeverityWarning
			}
			rec := event.Record{
				Source:   n.Name(),
				Category: event.CategoryNetwork,
				Severity: severity,
				Message:  "Network interface counters changed",
			}
			rec.SetAttribute("interface", name)
			rec.SetAttribute("error_delta", strconv.FormatUint(errDelta, 10))
			rec.SetAttribute("drop_delta", strconv.FormatUint(dropDelta, 10))
			sup.Emit(rec)
		}
		prev = curr
	}
}

func (n *NetworkCounters) Stop() {
	n.once.Do(func() { close(n.stop) })
	<-n.stopped
}

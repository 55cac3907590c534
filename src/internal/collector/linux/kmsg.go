// FILE: src/internal/collector/linux/kmsg.go
package linux

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

var criticalKeywords = []string{"panic", "fatal", "bug"}
var warningKeywords = []string{"error", "warn", "oom"}

func classifyKmsgSeverity(line string) string {
	if containsAnyKeyword(line, criticalKeywords) {
		return event.SeverityCritical
	}
	if containsAnyKeyword(line, warningKeywords) {
		return event.SeverityWarning
	}
	return event.SeverityInfo
}

// stripKmsgPrefix removes the "<priority>,<seq>,<timestamp>,...;" frame
// the kernel prepends to each /dev/kmsg line, leaving the message text.
func stripKmsgPrefix(line string) string {
	semi := strings.Index(line, ";")
	if semi < 0 {
		return line
	}
	return line[semi+1:]
}

// KernelMessageTail reads new /dev/kmsg lines and classifies severity
// by keyword.
type KernelMessageTail struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewKernelMessageTail constructs a KernelMessageTail.
func NewKernelMessageTail() *KernelMessageTail {
	return &KernelMessageTail{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (k *KernelMessageTail) Name() string { return "kmsg.tail" }

func (k *KernelMessageTail) Start(ctx context.Context, sup *collector.Supervisor) error {
	f, err := os.Open("/dev/kmsg")
	if err != nil {
		sup.Emit(event.Record{
			Source:   k.Name(),
			Category: event.CategoryKmsg,
			Severity: event.SeverityWarning,
			Message:  "Cannot open /dev/kmsg",
		})
		close(k.stopped)
		return nil
	}
	go k.run(ctx, sup, f)
	return nil
}

func (k *KernelMessageTail) run(ctx context.Context, sup *collector.Supervisor, f *os.File) {
	defer close(k.stopped)
	defer f.Close()

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 8192), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-k.stop:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			msg := stripKmsgPrefix(line)
			sup.Emit(event.Record{
				Source:   k.Name(),
				Category: event.CategoryKmsg,
				Severity: classifyKmsgSeverity(msg),
				Message:  msg,
			})
		}
	}
}

func (k *KernelMessageTail) Stop() {
	k.once.Do(func() { close(k.stop) })
	<-k.stopped
}

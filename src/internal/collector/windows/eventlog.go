// FILE: src/internal/collector/windows/eventlog.go
//go:build windows

package windows

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

const eventLogPollInterval = 10 * time.Second

// eventLogChannels is the fixed list of structured log channels
// polled, mirroring the original's channel list.
var eventLogChannels = []string{"System", "Application", "Microsoft-Windows-Hyper-V-Worker-Admin"}

type winEventRecord struct {
	RecordId     uint64 `json:"RecordId"`
	LevelDisplay string `json:"LevelDisplayName"`
	Message      string `json:"Message"`
	ProviderName string `json:"ProviderName"`
}

func levelToSeverity(level string) string {
	switch level {
	case "Critical":
		return event.SeverityCritical
	case "Error":
		return event.SeverityError
	case "Warning":
		return event.SeverityWarning
	case "Verbose":
		return event.SeverityVerbose
	default:
		return event.SeverityInfo
	}
}

// queryChannel invokes PowerShell's Get-WinEvent, filtered to entries
// newer than afterRecordID, emitting each as JSON. This replaces a
// direct wevtapi binding with the platform's own query tool, the same
// shelling-out pattern the guest side uses for journalctl.
func queryChannel(ctx context.Context, channel string, afterRecordID uint64) ([]winEventRecord, error) {
	script := `Get-WinEvent -LogName '` + channel + `' -MaxEvents 50 -ErrorAction SilentlyContinue | ` +
		`Where-Object { $_.RecordId -gt ` + itoa(afterRecordID) + ` } | ` +
		`Select-Object RecordId,LevelDisplayName,Message,ProviderName | ConvertTo-Json -Compress`
	out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	return parseWinEventJSON(out)
}

func parseWinEventJSON(out []byte) ([]winEventRecord, error) {
	trimmed := trimSpaceBytes(out)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []winEventRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var single winEventRecord
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []winEventRecord{single}, nil
}

// EventLogTail polls a fixed list of channels, keeping the largest
// record id seen per channel and only emitting newer records.
type EventLogTail struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewEventLogTail constructs an EventLogTail.
func NewEventLogTail() *EventLogTail {
	return &EventLogTail{stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (e *EventLogTail) Name() string { return "eventlog.tail" }

func (e *EventLogTail) Start(ctx context.Context, sup *collector.Supervisor) error {
	go e.run(ctx, sup)
	return nil
}

func (e *EventLogTail) run(ctx context.Context, sup *collector.Supervisor) {
	defer close(e.stopped)

	lastSeen := make(map[string]uint64, len(eventLogChannels))
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-time.After(eventLogPollInterval):
		}

		for _, channel := range eventLogChannels {
			records, err := queryChannel(ctx, channel, lastSeen[channel])
			if err != nil {
				continue
			}
			for _, r := range records {
				if r.RecordId <= lastSeen[channel] {
					continue
				}
				lastSeen[channel] = r.RecordId
				rec := event.Record{
					Source:   e.Name(),
					Category: event.CategoryEventLog,
					Severity: levelToSeverity(r.LevelDisplay),
					Message:  r.Message,
					Sequence: r.RecordId,
				}
				rec.SetAttribute("channel", channel)
				rec.SetAttribute("provider", r.ProviderName)
				sup.Emit(rec)
			}
		}
	}
}

func (e *EventLogTail) Stop() {
	e.once.Do(func() { close(e.stop) })
	<-e.stopped
}

// FILE: src/internal/collector/linux/journaltail.go
package linux

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/collector"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

// journalEntry is the subset of journalctl's JSON export this
// collector reads. Field names follow systemd's JSON export exactly.
type journalEntry struct {
	Unit      string `json:"_SYSTEMD_UNIT"`
	Transport string `json:"_TRANSPORT"`
	Priority  string `json:"PRIORITY"`
	Message   string `json:"MESSAGE"`
}

// JournalTail follows the systemd journal via "journalctl -f", starting
// from the tail minus a small backlog, matching sd_journal_seek_tail +
// sd_journal_previous_skip in the original without a cgo dependency on
// libsystemd.
type JournalTail struct {
	cmd     *exec.Cmd
	stopped chan struct{}
	once    sync.Once
}

// NewJournalTail constructs a JournalTail.
func NewJournalTail() *JournalTail {
	return &JournalTail{stopped: make(chan struct{})}
}

func (j *JournalTail) Name() string { return "systemd.journal" }

func (j *JournalTail) Start(ctx context.Context, sup *collector.Supervisor) error {
	cmd := exec.CommandContext(ctx, "journalctl",
		"-f", "-n", "10", "-o", "json", "--no-pager",
		"-u", "systemd-networkd.service",
		"-u", "systemd-resolved.service",
		"-u", "systemd-logind.service",
		"-t", "systemd",
		"-t", "systemd-oomd",
		"-k",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		sup.Emit(event.Record{
			Source:   j.Name(),
			Category: event.CategoryJournal,
			Severity: event.SeverityWarning,
			Message:  "Cannot start journalctl tail",
		})
		close(j.stopped)
		return nil
	}
	j.cmd = cmd
	go j.run(stdout, sup)
	return nil
}

func (j *JournalTail) run(stdout io.ReadCloser, sup *collector.Supervisor) {
	defer close(j.stopped)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 8192), 1<<20)
	for scanner.Scan() {
		var entry journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		rec := event.Record{
			Source:   j.Name(),
			Category: event.CategoryJournal,
			Severity: event.SeverityInfo,
			Message:  entry.Message,
		}
		rec.SetAttribute("unit", entry.Unit)
		rec.SetAttribute("transport", entry.Transport)
		rec.SetAttribute("priority", entry.Priority)
		sup.Emit(rec)
	}
}

func (j *JournalTail) Stop() {
	j.once.Do(func() {
		if j.cmd != nil && j.cmd.Process != nil {
			_ = j.cmd.Process.Kill()
		}
	})
	<-j.stopped
}

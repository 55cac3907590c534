// FILE: src/cmd/wsl-report/main.go
// wsl-report is the offline post-mortem tool: it loads a host and a
// guest journal, merges them into one timeline, and prints the fused
// report as JSON. Grounded on the original master_report tool's
// argument shape and default install paths.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/analyser"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/filter"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/report"
)

func defaultHostLogPath() string {
	if runtime.GOOS == "windows" {
		return `C:/ProgramData/WslMonitor/host-events.log`
	}
	return "/mnt/c/ProgramData/WslMonitor/host-events.log"
}

func defaultGuestLogPath() string {
	if runtime.GOOS == "windows" {
		return `C:/ProgramData/WslMonitor/guest-events.log`
	}
	return "/var/log/wsl-monitor/guest-events.log"
}

func main() {
	var (
		hostLog  = flag.String("host-log", defaultHostLogPath(), "Path to the host journal")
		guestLog = flag.String("guest-log", defaultGuestLogPath(), "Path to the guest journal")
		output   = flag.String("output", "", "Path to write the report JSON (defaults to stdout)")
		include  = flag.String("include", "", "Comma-separated regexes; an event's timeline entry is kept only if display fields match at least one")
		exclude  = flag.String("exclude", "", "Comma-separated regexes; an event's timeline entry is dropped if its display fields match any")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --host-log <path> --guest-log <path> [--output <path>] [--include <regex,...>] [--exclude <regex,...>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	doc, warnings := report.Build(report.Options{HostLogPath: *hostLog, GuestLogPath: *guestLog}, time.Now())
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w.Message)
	}

	filters, err := buildFilters(*include, *exclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	doc.Events = filterTimeline(doc.Events, filters...)

	rendered := report.Render(doc)
	if *output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o640); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to write report to %s: %v\n", *output, err)
		os.Exit(1)
	}
}

func buildFilters(include, exclude string) ([]*filter.Filter, error) {
	var filters []*filter.Filter
	if patterns := splitPatterns(include); len(patterns) > 0 {
		f, err := filter.New(filter.Include, patterns)
		if err != nil {
			return nil, fmt.Errorf("--include: %w", err)
		}
		filters = append(filters, f)
	}
	if patterns := splitPatterns(exclude); len(patterns) > 0 {
		f, err := filter.New(filter.Exclude, patterns)
		if err != nil {
			return nil, fmt.Errorf("--exclude: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func splitPatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func filterTimeline(events []analyser.TimelineEvent, filters ...*filter.Filter) []analyser.TimelineEvent {
	if len(filters) == 0 {
		return events
	}
	out := make([]analyser.TimelineEvent, 0, len(events))
	for _, te := range events {
		keep := true
		for _, f := range filters {
			if !f.Apply(te.Record) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, te)
		}
	}
	return out
}

// FILE: src/internal/report/report.go
// Package report assembles the offline post-mortem document: it loads
// a host and a guest journal, merges them into one timeline, runs the
// heuristic analyser, and serialises the result as JSON.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/analyser"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
)

// ChannelSummary is the per-origin block of the report: where the log
// was read from, the final chain hash observed, and how many records
// it contributed.
type ChannelSummary struct {
	LogPath        string
	FinalChainHash string
	EventCount     int
}

// Document is the full report shape written to --output or stdout.
type Document struct {
	GeneratedAt time.Time
	Host        ChannelSummary
	Guest       ChannelSummary
	Health      analyser.HealthSnapshot
	Insights    []analyser.Insight
	Events      []analyser.TimelineEvent
}

// Options selects which log files to load.
type Options struct {
	HostLogPath  string
	GuestLogPath string
}

// loadChannel reads a journal file into TimelineEvents tagged with the
// given origin. A missing or unreadable file is not fatal: it yields
// zero events and the caller surfaces a warning, matching the
// original tool's "warn but continue" behaviour.
func loadChannel(path string, origin analyser.Origin) ([]analyser.TimelineEvent, string, error) {
	if path == "" {
		return nil, "", nil
	}
	lines, err := journal.ReadLines(path)
	if err != nil {
		return nil, "", err
	}
	events := make([]analyser.TimelineEvent, 0, len(lines))
	var finalChainHash string
	for _, line := range lines {
		events = append(events, analyser.TimelineEvent{
			Origin:    origin,
			Record:    line.Record,
			ChainHash: line.ChainHash,
		})
		finalChainHash = line.ChainHash
	}
	return events, finalChainHash, nil
}

// Warning describes a non-fatal problem encountered while building
// the report (e.g. a missing input file).
type Warning struct {
	Message string
}

func (w Warning) Error() string { return w.Message }

// Build loads both channels, merges and analyses the combined
// timeline, and returns the finished document plus any non-fatal
// warnings encountered while reading the inputs.
func Build(opts Options, now time.Time) (Document, []Warning) {
	var warnings []Warning

	hostEvents, hostChain, hostErr := loadChannel(opts.HostLogPath, analyser.OriginHost)
	if hostErr != nil {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unable to load host log from %s: %v", opts.HostLogPath, hostErr)})
	}
	guestEvents, guestChain, guestErr := loadChannel(opts.GuestLogPath, analyser.OriginGuest)
	if guestErr != nil {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unable to load guest log from %s: %v", opts.GuestLogPath, guestErr)})
	}

	merged := analyser.Merge(hostEvents, guestEvents)
	health := analyser.ComputeCrossChannelSnapshot(merged)
	insights := analyser.AnalyzeEventTimeline(merged)

	doc := Document{
		GeneratedAt: now.UTC(),
		Host: ChannelSummary{
			LogPath:        opts.HostLogPath,
			FinalChainHash: hostChain,
			EventCount:     len(hostEvents),
		},
		Guest: ChannelSummary{
			LogPath:        opts.GuestLogPath,
			FinalChainHash: guestChain,
			EventCount:     len(guestEvents),
		},
		Health:   health,
		Insights: insights,
		Events:   merged,
	}
	return doc, warnings
}

func formatTimestamp(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s.%06dZ", u.Format("2006-01-02T15:04:05"), u.Nanosecond()/1000)
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func writeChannelSummary(b *strings.Builder, c ChannelSummary) {
	b.WriteString("{\n")
	b.WriteString(`    "logPath": `)
	b.WriteString(jsonString(c.LogPath))
	b.WriteString(",\n")
	b.WriteString(`    "finalChainHash": `)
	b.WriteString(jsonString(c.FinalChainHash))
	b.WriteString(",\n")
	fmt.Fprintf(b, "    \"eventCount\": %d\n", c.EventCount)
	b.WriteString("  }")
}

func writeAttributes(b *strings.Builder, attrs []event.Attribute) {
	b.WriteByte('[')
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"key":`)
		b.WriteString(jsonString(a.Key))
		b.WriteString(`,"value":`)
		b.WriteString(jsonString(a.Value))
		b.WriteByte('}')
	}
	b.WriteByte(']')
}

func writeRecord(b *strings.Builder, r event.Record) {
	b.WriteString(`{"timestamp":`)
	b.WriteString(jsonString(formatTimestamp(r.Timestamp)))
	fmt.Fprintf(b, `,"sequence":%d`, r.Sequence)
	b.WriteString(`,"source":`)
	b.WriteString(jsonString(r.Source))
	b.WriteString(`,"category":`)
	b.WriteString(jsonString(r.Category))
	b.WriteString(`,"severity":`)
	b.WriteString(jsonString(r.Severity))
	b.WriteString(`,"message":`)
	b.WriteString(jsonString(r.Message))
	b.WriteString(`,"attributes":`)
	writeAttributes(b, r.Attributes)
	b.WriteByte('}')
}

func writeTimelineEvent(b *strings.Builder, ev analyser.TimelineEvent) {
	b.WriteString(`{"origin":`)
	b.WriteString(jsonString(string(ev.Origin)))
	b.WriteString(`,"chainHash":`)
	b.WriteString(jsonString(ev.ChainHash))
	b.WriteString(`,"event":`)
	writeRecord(b, ev.Record)
	b.WriteByte('}')
}

func writeChannelHealth(b *strings.Builder, m analyser.ChannelHealthMetrics) {
	b.WriteString("{\n")
	fmt.Fprintf(b, "      \"total\": %d,\n", m.Total)
	fmt.Fprintf(b, "      \"info\": %d,\n", m.Info)
	fmt.Fprintf(b, "      \"warning\": %d,\n", m.Warning)
	fmt.Fprintf(b, "      \"error\": %d,\n", m.Error)
	fmt.Fprintf(b, "      \"critical\": %d,\n", m.Critical)
	b.WriteString(`      "firstTimestamp": `)
	b.WriteString(jsonString(formatTimestamp(m.FirstTimestamp)))
	b.WriteString(",\n")
	b.WriteString(`      "lastTimestamp": `)
	b.WriteString(jsonString(formatTimestamp(m.LastTimestamp)))
	b.WriteString("\n    }")
}

func writeInsight(b *strings.Builder, ins analyser.Insight) {
	b.WriteString("{\n")
	b.WriteString(`      "id": `)
	b.WriteString(jsonString(ins.ID))
	b.WriteString(",\n")
	b.WriteString(`      "summary": `)
	b.WriteString(jsonString(ins.Summary))
	b.WriteString(",\n")
	b.WriteString(`      "rationale": `)
	b.WriteString(jsonString(ins.Rationale))
	b.WriteString(",\n")
	b.WriteString(`      "confidence": `)
	b.WriteString(jsonString(ins.Confidence))
	b.WriteString(",\n")
	b.WriteString(`      "supportingEvents": [`)
	for i, ev := range ins.SupportingEvents {
		if i > 0 {
			b.WriteByte(',')
		}
		writeTimelineEvent(b, ev)
	}
	b.WriteString("]\n    }")
}

// Render serialises the document to the same JSON shape the original
// master_report tool produced: fixed field order, two-space indent,
// no external JSON library.
func Render(doc Document) string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString(`  "generatedAt": `)
	b.WriteString(jsonString(formatTimestamp(doc.GeneratedAt)))
	b.WriteString(",\n")

	b.WriteString(`  "host": `)
	writeChannelSummary(&b, doc.Host)
	b.WriteString(",\n")

	b.WriteString(`  "guest": `)
	writeChannelSummary(&b, doc.Guest)
	b.WriteString(",\n")

	b.WriteString("  \"health\": {\n")
	b.WriteString(`    "host": `)
	writeChannelHealth(&b, doc.Health.Host)
	b.WriteString(",\n")
	b.WriteString(`    "guest": `)
	writeChannelHealth(&b, doc.Health.Guest)
	b.WriteString("\n  },\n")

	b.WriteString("  \"insights\": [\n")
	for i, ins := range doc.Insights {
		b.WriteString("    ")
		writeInsight(&b, ins)
		if i+1 < len(doc.Insights) {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("  ],\n")

	b.WriteString("  \"events\": [\n")
	for i, ev := range doc.Events {
		b.WriteString("    ")
		writeTimelineEvent(&b, ev)
		if i+1 < len(doc.Events) {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("  ]\n")
	b.WriteString("}\n")
	return b.String()
}

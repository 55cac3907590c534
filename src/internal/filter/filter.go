// FILE: src/internal/filter/filter.go
// Package filter applies regex-based include/exclude matching to
// timeline events, the way the teacher's own filter package gates log
// entries before they reach a sink. Adapted from source.LogEntry's
// message/level/source matching to event.Record's message/severity/
// source/category fields, and narrowed to a single filter (no chain:
// wsl-report needs at most one include pattern set and one exclude
// pattern set, not an arbitrary pipeline of them).
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

// Mode selects whether a match keeps or drops an event.
type Mode string

const (
	Include Mode = "include"
	Exclude Mode = "exclude"
)

// Filter matches a timeline event's text fields against a set of
// regular expressions, combined with OR logic (any pattern matching
// counts as a match), the teacher's own default logic.
type Filter struct {
	mode     Mode
	patterns []*regexp.Regexp

	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
	totalDropped   atomic.Uint64
}

// New compiles patterns and returns a Filter in the given mode. An
// empty pattern list is valid and passes everything.
func New(mode Mode, patterns []string) (*Filter, error) {
	if mode != Include && mode != Exclude {
		mode = Include
	}
	f := &Filter{mode: mode, patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] %q: %w", i, p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Apply reports whether r should be kept.
func (f *Filter) Apply(r event.Record) bool {
	f.totalProcessed.Add(1)

	if len(f.patterns) == 0 {
		f.totalMatched.Add(1)
		return true
	}

	text := strings.Join([]string{r.Severity, r.Source, r.Category, r.Message}, " ")
	matched := false
	for _, re := range f.patterns {
		if re.MatchString(text) {
			matched = true
			break
		}
	}
	if matched {
		f.totalMatched.Add(1)
	}

	var keep bool
	switch f.mode {
	case Include:
		keep = matched
	case Exclude:
		keep = !matched
	}
	if !keep {
		f.totalDropped.Add(1)
	}
	return keep
}

// Stats reports the running match/drop counters, mainly useful from
// tests and diagnostics.
func (f *Filter) Stats() (processed, matched, dropped uint64) {
	return f.totalProcessed.Load(), f.totalMatched.Load(), f.totalDropped.Load()
}

// ApplyAll filters a slice of timeline events against one or more
// filters; an event must survive every filter to be kept.
func ApplyAll(events []event.Record, filters ...*Filter) []event.Record {
	if len(filters) == 0 {
		return events
	}
	out := make([]event.Record, 0, len(events))
	for _, r := range events {
		keep := true
		for _, f := range filters {
			if !f.Apply(r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// FILE: src/internal/analyser/analyser.go
// Package analyser fuses a host and a guest journal into a single
// timeline, computes per-origin health metrics, and runs the fixed
// set of heuristic rules that turn correlated events into insights.
// Grounded on the original heuristic_analyzer's aggregation-then-emit
// structure, translated from its map/vector bookkeeping into slices
// and maps of the same shape.
package analyser

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
)

// Origin identifies which side's journal a TimelineEvent came from.
type Origin string

const (
	OriginHost  Origin = "host"
	OriginGuest Origin = "guest"
)

// TimelineEvent pairs a decoded record with the origin and chain hash
// of the journal line it was read from.
type TimelineEvent struct {
	Origin    Origin
	Record    event.Record
	ChainHash string
}

// Insight is a rule-derived finding with supporting evidence.
type Insight struct {
	ID               string
	Summary          string
	Rationale        string
	Confidence       string
	SupportingEvents []TimelineEvent
}

// ChannelHealthMetrics is one origin's severity-bucketed counts and
// timestamp range.
type ChannelHealthMetrics struct {
	Total          int
	Info           int
	Warning        int
	Error          int
	Critical       int
	FirstTimestamp time.Time
	LastTimestamp  time.Time
}

// HealthSnapshot is the cross-channel health aggregate.
type HealthSnapshot struct {
	Host  ChannelHealthMetrics
	Guest ChannelHealthMetrics
}

// Merge stably sorts events by timestamp ascending. Ties keep the
// original per-file relative order, achieved by stable sort over the
// concatenation host-then-guest (or whatever order the caller passes).
func Merge(streams ...[]TimelineEvent) []TimelineEvent {
	var all []TimelineEvent
	for _, s := range streams {
		all = append(all, s...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Record.Timestamp.Before(all[j].Record.Timestamp)
	})
	return all
}

func findAttribute(r event.Record, key string) (string, bool) {
	return r.Attribute(key)
}

func containsCaseInsensitive(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func isRecent(reference, candidate event.Record, window time.Duration) bool {
	if candidate.Timestamp.IsZero() {
		return false
	}
	if reference.Timestamp.IsZero() {
		return true
	}
	delta := reference.Timestamp.Sub(candidate.Timestamp)
	return delta >= 0 && delta <= window
}

func computeConfidence(weight int) string {
	switch {
	case weight >= 5:
		return "High"
	case weight >= 3:
		return "Medium"
	default:
		return "Low"
	}
}

const (
	defaultWindow = 10 * time.Minute
	extendedWindow = 30 * time.Minute
)

// AnalyzeEventTimeline applies every heuristic rule to a merged
// timeline, returning insights sorted by id.
func AnalyzeEventTimeline(events []TimelineEvent) []Insight {
	if len(events) == 0 {
		return nil
	}
	lastEvent := events[len(events)-1].Record

	restartBursts := make(map[Origin]int)
	securityWeight := 0
	var securityEvents, memoryPressureEvents, kernelFaultEvents []TimelineEvent

	for _, ev := range events {
		r := ev.Record
		switch r.Category {
		case event.CategoryServiceHealth:
			state, hasState := findAttribute(r, "state")
			restarts, hasRestarts := findAttribute(r, "restartCount")
			if hasState && containsCaseInsensitive(state, "restart") {
				restartBursts[ev.Origin] += 2
			}
			if hasRestarts {
				if count, err := strconv.ParseInt(restarts, 10, 64); err == nil && count >= 3 {
					restartBursts[ev.Origin] += int(count)
				}
			}
		case event.CategorySecurity:
			stateText, hasStateText := findAttribute(r, "stateText")
			vendor, hasVendor := findAttribute(r, "name")
			suite, hasSuite := findAttribute(r, "suite")
			disabled := hasStateText && containsCaseInsensitive(stateText, "Disabled")
			if disabled {
				securityWeight += 2
			}
			if hasVendor && containsCaseInsensitive(vendor, "Microsoft") {
				// Lower weight for Microsoft Defender: expected baseline.
			} else if hasStateText && containsCaseInsensitive(stateText, "Outdated") {
				securityWeight++
			}
			if disabled || (hasSuite && containsCaseInsensitive(suite, "ThirdParty")) {
				securityEvents = append(securityEvents, ev)
			}
		case event.CategoryProcess, event.CategoryResource:
			if containsCaseInsensitive(r.Message, "memory pressure") || containsCaseInsensitive(r.Message, "pressure stall") {
				memoryPressureEvents = append(memoryPressureEvents, ev)
			}
		}
		if r.Category == event.CategoryKernel || r.Category == event.CategoryKmsg ||
			containsCaseInsensitive(r.Message, "panic") || containsCaseInsensitive(r.Message, "bugcheck") {
			kernelFaultEvents = append(kernelFaultEvents, ev)
		}
	}

	var insights []Insight

	origins := make([]Origin, 0, len(restartBursts))
	for origin := range restartBursts {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })
	for _, origin := range origins {
		weight := restartBursts[origin]
		if weight == 0 {
			continue
		}
		insight := Insight{
			ID:         string(origin) + "_service_restart_burst",
			Summary:    "Rapid restart burst detected on " + string(origin) + " service stack",
			Rationale:  "Multiple ServiceHealth events indicated restart storms shortly before collection halted.",
			Confidence: computeConfidence(weight),
		}
		for _, ev := range events {
			if ev.Origin == origin && ev.Record.Category == event.CategoryServiceHealth && isRecent(lastEvent, ev.Record, defaultWindow) {
				insight.SupportingEvents = append(insight.SupportingEvents, ev)
			}
		}
		if len(insight.SupportingEvents) > 0 {
			insights = append(insights, insight)
		}
	}

	if len(securityEvents) > 0 {
		insight := Insight{
			ID:         "cross_environment_security_intervention",
			Summary:    "Third-party security suite intervention suspected",
			Rationale:  "SecurityCenter telemetry reported disabled or outdated states for non-Microsoft products around the shutdown.",
			Confidence: computeConfidence(securityWeight + len(securityEvents)),
		}
		for _, ev := range securityEvents {
			if isRecent(lastEvent, ev.Record, extendedWindow) {
				insight.SupportingEvents = append(insight.SupportingEvents, ev)
			}
		}
		if len(insight.SupportingEvents) > 0 {
			insights = append(insights, insight)
		}
	}

	if len(memoryPressureEvents) > 0 {
		insight := Insight{
			ID:         "memory_pressure_correlation",
			Summary:    "Sustained memory pressure observed prior to restart",
			Rationale:  "Process and resource collectors recorded elevated working sets or pressure stall metrics leading up to the outage.",
			Confidence: computeConfidence(len(memoryPressureEvents)),
		}
		for _, ev := range memoryPressureEvents {
			if isRecent(lastEvent, ev.Record, defaultWindow) {
				insight.SupportingEvents = append(insight.SupportingEvents, ev)
			}
		}
		if len(insight.SupportingEvents) > 0 {
			insights = append(insights, insight)
		}
	}

	if len(kernelFaultEvents) > 0 {
		insight := Insight{
			ID:         "kernel_fault_chain",
			Summary:    "Kernel faults surfaced within the observation window",
			Rationale:  "Guest kernel messages or Windows bugcheck indicators were emitted close to the shutdown timeline.",
			Confidence: computeConfidence(len(kernelFaultEvents)),
		}
		for _, ev := range kernelFaultEvents {
			if isRecent(lastEvent, ev.Record, extendedWindow) {
				insight.SupportingEvents = append(insight.SupportingEvents, ev)
			}
		}
		if len(insight.SupportingEvents) > 0 {
			insights = append(insights, insight)
		}
	}

	sort.SliceStable(insights, func(i, j int) bool { return insights[i].ID < insights[j].ID })
	return insights
}

// ComputeCrossChannelSnapshot buckets each origin's events by severity
// and tracks the first/last non-zero timestamp seen.
func ComputeCrossChannelSnapshot(events []TimelineEvent) HealthSnapshot {
	var snapshot HealthSnapshot
	accumulate := func(metrics *ChannelHealthMetrics, r event.Record) {
		if !r.Timestamp.IsZero() {
			if metrics.FirstTimestamp.IsZero() || r.Timestamp.Before(metrics.FirstTimestamp) {
				metrics.FirstTimestamp = r.Timestamp
			}
			if r.Timestamp.After(metrics.LastTimestamp) {
				metrics.LastTimestamp = r.Timestamp
			}
		}
		metrics.Total++
		switch r.Severity {
		case event.SeverityCritical:
			metrics.Critical++
		case event.SeverityError:
			metrics.Error++
		case event.SeverityWarning:
			metrics.Warning++
		default:
			metrics.Info++
		}
	}

	for _, ev := range events {
		switch ev.Origin {
		case OriginHost:
			accumulate(&snapshot.Host, ev.Record)
		case OriginGuest:
			accumulate(&snapshot.Guest, ev.Record)
		}
	}
	return snapshot
}

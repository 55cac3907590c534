// FILE: src/internal/analyser/analyser_test.go
package analyser

import (
	"testing"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRecord(category, severity, message string, ts time.Time, attrs map[string]string) event.Record {
	r := event.Record{Category: category, Severity: severity, Message: message, Timestamp: ts}
	for k, v := range attrs {
		r.SetAttribute(k, v)
	}
	return r
}

func TestMergeSortsByTimestampStably(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	host := []TimelineEvent{
		{Origin: OriginHost, Record: mkRecord(event.CategoryGeneral, event.SeverityInfo, "h1", base.Add(2*time.Second), nil)},
		{Origin: OriginHost, Record: mkRecord(event.CategoryGeneral, event.SeverityInfo, "h2", base.Add(1*time.Second), nil)},
	}
	guest := []TimelineEvent{
		{Origin: OriginGuest, Record: mkRecord(event.CategoryGeneral, event.SeverityInfo, "g1", base.Add(1*time.Second), nil)},
	}
	merged := Merge(host, guest)
	require.Len(t, merged, 3)
	assert.Equal(t, "h2", merged[0].Record.Message)
	assert.Equal(t, "g1", merged[1].Record.Message)
	assert.Equal(t, "h1", merged[2].Record.Message)
}

// TestFourEventTimelineProducesFourInsights exercises the exact
// scenario: a restart-burst host ServiceHealth event, a disabled
// third-party host Security event, a guest Process memory-pressure
// event, and a guest Kernel panic event, all within the last two
// minutes of the timeline.
func TestFourEventTimelineProducesFourInsights(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	restart := TimelineEvent{
		Origin: OriginHost,
		Record: mkRecord(event.CategoryServiceHealth, event.SeverityWarning, "Service entered restart pending",
			base.Add(-2*time.Minute), map[string]string{"state": "RestartPending", "restartCount": "4"}),
	}
	security := TimelineEvent{
		Origin: OriginHost,
		Record: mkRecord(event.CategorySecurity, event.SeverityWarning, "Security product state",
			base.Add(-1*time.Minute), map[string]string{"stateText": "Disabled|Outdated", "name": "non-Microsoft"}),
	}
	memoryPressure := TimelineEvent{
		Origin: OriginGuest,
		Record: mkRecord(event.CategoryProcess, event.SeverityWarning, "Tracked process memory pressure",
			base.Add(-1*time.Minute), nil),
	}
	kernelFault := TimelineEvent{
		Origin: OriginGuest,
		Record: mkRecord(event.CategoryKernel, event.SeverityCritical, "kernel panic: fatal fault",
			base.Add(-1*time.Minute), nil),
	}

	timeline := Merge([]TimelineEvent{restart, security, memoryPressure, kernelFault})
	insights := AnalyzeEventTimeline(timeline)

	require.Len(t, insights, 4)
	ids := make([]string, len(insights))
	for i, ins := range insights {
		ids[i] = ins.ID
	}
	assert.Equal(t, []string{
		"cross_environment_security_intervention",
		"host_service_restart_burst",
		"kernel_fault_chain",
		"memory_pressure_correlation",
	}, ids)

	snapshot := ComputeCrossChannelSnapshot(timeline)
	assert.Equal(t, 2, snapshot.Host.Total)
	assert.Equal(t, 2, snapshot.Host.Warning)
	assert.Equal(t, 2, snapshot.Guest.Total)
	assert.GreaterOrEqual(t, snapshot.Guest.Warning, 1)
}

func TestRestartBurstRequiresWeight(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeline := []TimelineEvent{
		{Origin: OriginHost, Record: mkRecord(event.CategoryServiceHealth, event.SeverityInfo, "steady state", base, map[string]string{"state": "Running"})},
	}
	insights := AnalyzeEventTimeline(timeline)
	assert.Empty(t, insights)
}

func TestMicrosoftVendorSecurityContributesNoWeight(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeline := []TimelineEvent{
		{Origin: OriginHost, Record: mkRecord(event.CategorySecurity, event.SeverityInfo, "Security product state", base,
			map[string]string{"stateText": "Enabled|UpToDate", "name": "Microsoft Defender"})},
	}
	insights := AnalyzeEventTimeline(timeline)
	assert.Empty(t, insights)
}

func TestOutOfWindowEventsAreNotAttached(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stale := TimelineEvent{
		Origin: OriginGuest,
		Record: mkRecord(event.CategoryKernel, event.SeverityCritical, "kernel panic", base.Add(-2*time.Hour), nil),
	}
	anchor := TimelineEvent{
		Origin: OriginGuest,
		Record: mkRecord(event.CategoryGeneral, event.SeverityInfo, "anchor", base, nil),
	}
	timeline := Merge([]TimelineEvent{stale, anchor})
	insights := AnalyzeEventTimeline(timeline)
	assert.Empty(t, insights)
}

func TestInsightsAreSortedByID(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeline := []TimelineEvent{
		{Origin: OriginGuest, Record: mkRecord(event.CategoryKernel, event.SeverityCritical, "kernel panic", base, nil)},
		{Origin: OriginHost, Record: mkRecord(event.CategoryServiceHealth, event.SeverityWarning, "restart pending", base, map[string]string{"state": "restart"})},
		{Origin: OriginGuest, Record: mkRecord(event.CategoryProcess, event.SeverityWarning, "memory pressure detected", base, nil)},
	}
	insights := AnalyzeEventTimeline(timeline)
	for i := 1; i < len(insights); i++ {
		assert.LessOrEqual(t, insights[i-1].ID, insights[i].ID)
	}
}

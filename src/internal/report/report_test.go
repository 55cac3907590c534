// FILE: src/internal/report/report_test.go
package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJournal(t *testing.T, dir, name string, messages ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	j, err := journal.Open(path, "test")
	require.NoError(t, err)
	for _, m := range messages {
		_, err := j.Append(event.Record{Message: m, Category: event.CategoryGeneral})
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())
	return path
}

func TestBuildMergesBothChannelsAndCountsEvents(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeJournal(t, dir, "host.log", "h1", "h2")
	guestPath := writeJournal(t, dir, "guest.log", "g1")

	doc, warnings := Build(Options{HostLogPath: hostPath, GuestLogPath: guestPath}, time.Now())
	assert.Empty(t, warnings)
	assert.Equal(t, 2, doc.Host.EventCount)
	assert.Equal(t, 1, doc.Guest.EventCount)
	assert.Len(t, doc.Events, 3)
	assert.NotEmpty(t, doc.Host.FinalChainHash)
	assert.NotEmpty(t, doc.Guest.FinalChainHash)
}

func TestBuildWarnsOnMissingLogButDoesNotFail(t *testing.T) {
	dir := t.TempDir()
	guestPath := writeJournal(t, dir, "guest.log", "g1")

	doc, warnings := Build(Options{HostLogPath: filepath.Join(dir, "missing.log"), GuestLogPath: guestPath}, time.Now())
	require.Len(t, warnings, 1)
	assert.Equal(t, 0, doc.Host.EventCount)
	assert.Equal(t, 1, doc.Guest.EventCount)
}

func TestRenderProducesParseableFieldOrderAndContent(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeJournal(t, dir, "host.log", "h1")
	guestPath := writeJournal(t, dir, "guest.log", "g1")

	doc, _ := Build(Options{HostLogPath: hostPath, GuestLogPath: guestPath}, time.Now())
	rendered := Render(doc)

	assert.Contains(t, rendered, `"generatedAt"`)
	assert.Contains(t, rendered, `"host"`)
	assert.Contains(t, rendered, `"guest"`)
	assert.Contains(t, rendered, `"health"`)
	assert.Contains(t, rendered, `"insights"`)
	assert.Contains(t, rendered, `"events"`)
	assert.Contains(t, rendered, "h1")
	assert.Contains(t, rendered, "g1")
}

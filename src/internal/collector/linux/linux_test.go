// FILE: src/internal/collector/linux/linux_test.go
package linux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePressureFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory")
	content := "some avg10=45.00 avg60=20.00 avg300=1.00 total=100\nfull avg10=2.00 avg60=0.00 avg300=0.00 total=5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	some, full, ok := parsePressureFile(path)
	require.True(t, ok)
	assert.Equal(t, 45.0, some.avg10)
	assert.Equal(t, 20.0, some.avg60)
	assert.Equal(t, 2.0, full.avg10)
}

func TestCpuUsagePercent(t *testing.T) {
	prev := cpuSample{user: 100, idle: 900}
	curr := cpuSample{user: 150, idle: 950}
	pct := cpuUsagePercent(prev, curr)
	assert.InDelta(t, 50.0, pct, 0.01)
}

func TestClassifyKmsgSeverity(t *testing.T) {
	assert.Equal(t, "Critical", classifyKmsgSeverity("kernel panic - not syncing"))
	assert.Equal(t, "Warning", classifyKmsgSeverity("OOM killer invoked"))
	assert.Equal(t, "Info", classifyKmsgSeverity("link is up"))
}

func TestContainsAnyKeyword(t *testing.T) {
	assert.True(t, containsAnyKeyword("Kernel BUG detected", []string{"bug"}))
	assert.False(t, containsAnyKeyword("all clear", []string{"bug", "panic"}))
}

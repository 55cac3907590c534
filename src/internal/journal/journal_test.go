// FILE: src/internal/journal/journal_test.go
package journal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/digest"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 8*1024*1024)
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

func extractField(t *testing.T, line, key string) string {
	t.Helper()
	marker := `"` + key + `":"`
	idx := strings.Index(line, marker)
	require.GreaterOrEqual(t, idx, 0, "field %s not found in %s", key, line)
	start := idx + len(marker)
	end := strings.Index(line[start:], `"`)
	require.GreaterOrEqual(t, end, 0)
	return line[start : start+end]
}

func TestAppendAssignsStrictlyIncreasingSequence(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "guest.log"), "wslmon.test")
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 5; i++ {
		r, err := j.Append(event.Record{Message: "m"})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), r.Sequence)
	}
}

func TestAppendChainsHashesSequentially(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 3; i++ {
		_, err := j.Append(event.Record{Message: "m"})
		require.NoError(t, err)
	}

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	prevHash := strings.Repeat("0", 64)
	for _, line := range lines {
		eventStart := strings.Index(line, `"event":`) + len(`"event":`)
		eventEnd := strings.LastIndex(line, `,"chainHash"`)
		require.Greater(t, eventEnd, eventStart)
		payload := line[eventStart:eventEnd]

		chainHash := extractField(t, line, "chainHash")
		sum := digest.SHA256([]byte(prevHash + payload))
		assert.Equal(t, digest.ToHex(sum[:]), chainHash)
		prevHash = chainHash
	}
}

func TestAppendOmitsHmacWhenNoKeyConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Append(event.Record{Message: "m"})
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], `"hmac"`)
}

func TestAppendIncludesHmacWhenKeyConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	key := []byte{0x00}
	j, err := Open(path, "wslmon.test", WithHMACKey(key))
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Append(event.Record{Message: "m"})
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `"hmac"`)

	eventStart := strings.Index(lines[0], `"event":`) + len(`"event":`)
	eventEnd := strings.LastIndex(lines[0], `,"chainHash"`)
	payload := lines[0][eventStart:eventEnd]
	expected := digest.ToHex(digest.HMACSHA256(key, []byte(payload)))
	assert.Equal(t, expected, extractField(t, lines[0], "hmac"))
}

func TestRecoveryUsesPersistedChainState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := j.Append(event.Record{Message: "m"})
		require.NoError(t, err)
	}
	chainBeforeClose := j.ChainHash()
	require.NoError(t, j.Close())

	j2, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	defer j2.Close()

	r, err := j2.Append(event.Record{Message: "m2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.Sequence)

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	eventStart := strings.Index(lines[2], `"event":`) + len(`"event":`)
	eventEnd := strings.LastIndex(lines[2], `,"chainHash"`)
	payload := lines[2][eventStart:eventEnd]
	sum := digest.SHA256([]byte(chainBeforeClose + payload))
	assert.Equal(t, digest.ToHex(sum[:]), extractField(t, lines[2], "chainHash"))
}

func TestRotateWritesManifestAndResetsChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Append(event.Record{Message: "before rotation"})
	require.NoError(t, err)
	require.NoError(t, j.Rotate())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var manifestFound bool
	for _, e := range entries {
		if strings.Contains(e.Name(), ".manifest") {
			manifestFound = true
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(data), `"finalChainHash"`)
			assert.Contains(t, string(data), `"entries": 1`)
		}
	}
	assert.True(t, manifestFound)

	r, err := j.Append(event.Record{Message: "after rotation"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Sequence)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	eventStart := strings.Index(lines[0], `"event":`) + len(`"event":`)
	eventEnd := strings.LastIndex(lines[0], `,"chainHash"`)
	payload := lines[0][eventStart:eventEnd]
	sum := digest.SHA256([]byte(strings.Repeat("0", 64) + payload))
	assert.Equal(t, digest.ToHex(sum[:]), extractField(t, lines[0], "chainHash"))
}

func TestReadLinesRoundTripsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)

	_, err = j.Append(event.Record{Category: event.CategoryResource, Message: "first"})
	require.NoError(t, err)
	_, err = j.Append(event.Record{Category: event.CategoryResource, Message: "second"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	lines, err := ReadLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0].Record.Message)
	assert.Equal(t, "second", lines[1].Record.Message)
	assert.NotEmpty(t, lines[0].ChainHash)
	assert.NotEmpty(t, lines[1].ChainHash)
}

func TestReadLinesSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	_, err = j.Append(event.Record{Message: "ok"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString("not even json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines, err := ReadLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok", lines[0].Record.Message)
}

func TestVerifyChainDetectsTamperedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := j.Append(event.Record{Message: "m"})
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())

	lines, err := ReadLines(path)
	require.NoError(t, err)
	ok, brokenAt := VerifyChain(lines)
	assert.True(t, ok)
	assert.Equal(t, -1, brokenAt)

	lines[1].Record.Message = "tampered"
	ok, brokenAt = VerifyChain(lines)
	assert.False(t, ok)
	assert.Equal(t, 1, brokenAt)
}

func TestOpenResetsOnMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.log")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o640))

	j, err := Open(path, "wslmon.test")
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, strings.Repeat("0", 64), j.ChainHash())
}

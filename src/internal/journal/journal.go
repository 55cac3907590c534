// FILE: src/internal/journal/journal.go
// Package journal implements the append-only, hash-chained, rotating
// event log: the tamper-evidence anchor each side of the fabric
// writes to before anything else sees a record.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/digest"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/wsnerr"
)

// MaxSegmentBytes is the size threshold, checked after each flush,
// past which a segment is rotated.
const MaxSegmentBytes = 5 * 1024 * 1024

var zeroHash = strings.Repeat("0", 64)

const rotationSuffixLayout = "20060102T150405Z"

// Journal is the tamper-evident, rotating event log for one side of
// the fabric. All exported methods are safe for concurrent use.
type Journal struct {
	mu sync.Mutex

	path          string
	sidecarPath   string
	defaultSource string
	hmacKey       []byte

	file *os.File

	currentChainHash      string
	nextSequence          uint64
	entriesSinceRotation  uint64
	writtenSinceLastCheck int64
}

// Option configures a Journal at construction time.
type Option func(*Journal)

// WithHMACKey sets the key used to compute the optional per-record
// authentication tag. A nil or empty key disables the tag.
func WithHMACKey(key []byte) Option {
	return func(j *Journal) { j.hmacKey = key }
}

// Open creates or resumes the journal at path, hardening its parent
// directory and recovering chain state from the sidecar file.
func Open(path, defaultSource string, opts ...Option) (*Journal, error) {
	j := &Journal{
		path:          path,
		sidecarPath:   path + ".chainstate",
		defaultSource: defaultSource,
	}
	for _, opt := range opts {
		opt(j)
	}

	if err := hardenDirectory(filepath.Dir(path)); err != nil {
		return nil, wsnerr.Fatal("journal", fmt.Errorf("harden directory: %w", err))
	}

	j.loadChainState()

	if err := j.openSegment(); err != nil {
		return nil, wsnerr.Fatal("journal", fmt.Errorf("open segment: %w", err))
	}
	return j, nil
}

func hardenDirectory(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		return os.Chmod(dir, 0o750)
	}
	return nil
}

func (j *Journal) openSegment() error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	j.file = f
	j.writtenSinceLastCheck = info.Size()
	return nil
}

func (j *Journal) loadChainState() {
	data, err := os.ReadFile(j.sidecarPath)
	if err != nil {
		j.resetChainState()
		return
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		j.resetChainState()
		return
	}
	hash := fields[0]
	seq, errSeq := strconv.ParseUint(fields[1], 10, 64)
	entries, errEntries := strconv.ParseUint(fields[2], 10, 64)
	if len(hash) != 64 || errSeq != nil || errEntries != nil {
		j.resetChainState()
		return
	}
	if seq == 0 {
		seq = 1
	}
	j.currentChainHash = hash
	j.nextSequence = seq
	j.entriesSinceRotation = entries
}

func (j *Journal) resetChainState() {
	j.currentChainHash = zeroHash
	j.nextSequence = 1
	j.entriesSinceRotation = 0
}

func (j *Journal) persistChainState() error {
	tmp := j.sidecarPath + ".tmp"
	content := fmt.Sprintf("%s\n%d\n%d\n", j.currentChainHash, j.nextSequence, j.entriesSinceRotation)
	if err := os.WriteFile(tmp, []byte(content), 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, j.sidecarPath)
}

// Append enriches, chains, authenticates and durably writes one
// record. It is synchronous: it returns only after the line is
// flushed and the sidecar state file has been updated. The record's
// assigned Sequence is returned so callers (the supervisor) can
// observe it.
func (j *Journal) Append(r event.Record) (event.Record, error) {
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		if err := j.openSegment(); err != nil {
			return event.Record{}, wsnerr.TransientIO("journal", err)
		}
	}

	enriched := r
	if enriched.Sequence == 0 {
		enriched.Sequence = j.nextSequence
		j.nextSequence++
	} else if enriched.Sequence >= j.nextSequence {
		j.nextSequence = enriched.Sequence + 1
	}
	if enriched.Timestamp.IsZero() {
		enriched.Timestamp = now
	}
	if enriched.Source == "" {
		enriched.Source = j.defaultSource
	}
	if enriched.Category == "" {
		enriched.Category = event.CategoryGeneral
	}
	if enriched.Severity == "" {
		enriched.Severity = event.SeverityInfo
	}

	payload := event.Serialize(enriched)
	hashInput := j.currentChainHash + payload
	sum := digest.SHA256([]byte(hashInput))
	j.currentChainHash = digest.ToHex(sum[:])

	var hmacHex string
	if len(j.hmacKey) > 0 {
		mac := digest.HMACSHA256(j.hmacKey, []byte(payload))
		hmacHex = digest.ToHex(mac)
	}

	var line strings.Builder
	line.WriteString(`{"event":`)
	line.WriteString(payload)
	line.WriteString(`,"chainHash":"`)
	line.WriteString(j.currentChainHash)
	line.WriteString(`"`)
	if hmacHex != "" {
		line.WriteString(`,"hmac":"`)
		line.WriteString(hmacHex)
		line.WriteString(`"`)
	}
	line.WriteString("}\n")

	n, err := j.file.WriteString(line.String())
	if err != nil {
		return event.Record{}, wsnerr.TransientIO("journal", fmt.Errorf("write: %w", err))
	}
	if err := j.file.Sync(); err != nil {
		return event.Record{}, wsnerr.TransientIO("journal", fmt.Errorf("flush: %w", err))
	}
	j.writtenSinceLastCheck += int64(n)

	j.entriesSinceRotation++
	if err := j.persistChainState(); err != nil {
		return event.Record{}, wsnerr.TransientIO("journal", fmt.Errorf("sidecar: %w", err))
	}

	if j.writtenSinceLastCheck > MaxSegmentBytes {
		if err := j.rotateLocked(); err != nil {
			return event.Record{}, wsnerr.TransientIO("journal", fmt.Errorf("rotate: %w", err))
		}
	}

	return enriched, nil
}

// Rotate closes the current segment, renames it with a timestamp
// suffix, writes a manifest describing it, resets the chain state,
// and opens a fresh segment. Safe to call directly; Append also calls
// it automatically once the size threshold is crossed.
func (j *Journal) Rotate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rotateLocked()
}

func (j *Journal) rotateLocked() error {
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}

	suffix := time.Now().UTC().Format(rotationSuffixLayout)
	rotatedName := j.path + "." + suffix
	if err := os.Rename(j.path, rotatedName); err != nil && !os.IsNotExist(err) {
		return err
	}

	manifestPath := rotatedName + ".manifest"
	manifest := fmt.Sprintf(
		"{\n  \"finalChainHash\": \"%s\",\n  \"entries\": %d,\n  \"rotatedAt\": \"%s\"\n}\n",
		j.currentChainHash, j.entriesSinceRotation, formatManifestTimestamp(time.Now()),
	)
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o640); err != nil {
		return err
	}

	j.resetChainState()
	if err := j.persistChainState(); err != nil {
		return err
	}
	j.writtenSinceLastCheck = 0
	return j.openSegment()
}

func formatManifestTimestamp(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s.%06dZ", u.Format("2006-01-02T15:04:05"), u.Nanosecond()/1000)
}

// Close flushes and releases the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// ChainHash returns the current chain hash, mainly for tests.
func (j *Journal) ChainHash() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.currentChainHash
}

// Line is one decoded journal record together with the chain hash and
// optional HMAC recorded alongside it.
type Line struct {
	Record    event.Record
	ChainHash string
	HMAC      string
}

// ReadLines reads and decodes every line of a journal segment in
// order. It does not verify the chain; verification is a separate,
// explicit step so callers can distinguish "unreadable" from
// "readable but tampered". A malformed individual line is dropped,
// not fatal, matching the MalformedInput handling of every other line
// parser in the fabric.
func ReadLines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []Line
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if raw == "" {
			continue
		}
		line, ok := parseLine(raw)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseLine(raw string) (Line, bool) {
	eventStart := strings.Index(raw, `"event":`)
	if eventStart < 0 {
		return Line{}, false
	}
	eventStart += len(`"event":`)
	eventEnd := strings.LastIndex(raw, `,"chainHash"`)
	if eventEnd < 0 || eventEnd <= eventStart {
		return Line{}, false
	}
	payload := raw[eventStart:eventEnd]

	record, ok := event.Deserialize(payload)
	if !ok {
		return Line{}, false
	}

	chainMarker := `"chainHash":"`
	chainIdx := strings.Index(raw, chainMarker)
	if chainIdx < 0 {
		return Line{}, false
	}
	chainStart := chainIdx + len(chainMarker)
	chainEnd := strings.Index(raw[chainStart:], `"`)
	if chainEnd < 0 {
		return Line{}, false
	}
	chainHash := raw[chainStart : chainStart+chainEnd]

	var hmacHex string
	if hmacIdx := strings.Index(raw, `"hmac":"`); hmacIdx >= 0 {
		hmacStart := hmacIdx + len(`"hmac":"`)
		if hmacEnd := strings.Index(raw[hmacStart:], `"`); hmacEnd >= 0 {
			hmacHex = raw[hmacStart : hmacStart+hmacEnd]
		}
	}

	return Line{Record: record, ChainHash: chainHash, HMAC: hmacHex}, true
}

// VerifyChain recomputes the hash chain over a sequence of lines read
// from a single segment and reports the index of the first mismatch,
// if any.
func VerifyChain(lines []Line) (ok bool, brokenAt int) {
	prev := zeroHash
	for i, line := range lines {
		payload := event.Serialize(line.Record)
		sum := digest.SHA256([]byte(prev + payload))
		if digest.ToHex(sum[:]) != line.ChainHash {
			return false, i
		}
		prev = line.ChainHash
	}
	return true, -1
}

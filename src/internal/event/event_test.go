// FILE: src/internal/event/event_test.go
package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSerializeFieldOrderAndEscaping(t *testing.T) {
	r := Record{
		Timestamp: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Sequence:  1,
		Source:    "s",
		Category:  "General",
		Severity:  "Info",
		Message:   "m",
	}
	got := Serialize(r)
	want := `{"timestamp":"1970-01-01T00:00:00.000000Z","sequence":1,"source":"s","category":"General","severity":"Info","message":"m","attributes":[]}`
	assert.Equal(t, want, got)
}

func TestSerializeEscapesControlBytesAndQuotes(t *testing.T) {
	r := Record{
		Message: "line1\nline2\ttab\"quote\\back\x01ctrl",
	}
	got := Serialize(r)
	assert.Contains(t, got, `\n`)
	assert.Contains(t, got, `\t`)
	assert.Contains(t, got, `\"`)
	assert.Contains(t, got, `\\`)
	assert.Contains(t, got, ``)
}

func TestSerializeSortsAttributesByKeyThenValue(t *testing.T) {
	r := Record{
		Attributes: []Attribute{
			{Key: "b", Value: "2"},
			{Key: "a", Value: "2"},
			{Key: "a", Value: "1"},
		},
	}
	got := Serialize(r)
	want := `"attributes":[{"key":"a","value":"1"},{"key":"a","value":"2"},{"key":"b","value":"2"}]}`
	assert.Contains(t, got, want)
}

func TestDeserializeRoundTrip(t *testing.T) {
	r := Record{
		Timestamp: time.Date(2026, 8, 3, 12, 30, 0, 123456000, time.UTC),
		Sequence:  42,
		Source:    "wslmon.ubuntu",
		Category:  "Journal",
		Severity:  "Warning",
		Message:   "unit failed: \"foo\"",
		Attributes: []Attribute{
			{Key: "unit", Value: "foo.service"},
		},
	}
	serialized := Serialize(r)
	got, ok := Deserialize(serialized)
	assert.True(t, ok)
	assert.True(t, r.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, r.Sequence, got.Sequence)
	assert.Equal(t, r.Source, got.Source)
	assert.Equal(t, r.Category, got.Category)
	assert.Equal(t, r.Severity, got.Severity)
	assert.Equal(t, r.Message, got.Message)
	assert.Equal(t, r.Attributes, got.Attributes)
}

func TestDeserializeMissingFieldsDefaultEmpty(t *testing.T) {
	json := `{"timestamp":"2026-01-01T00:00:00Z","source":"","category":"","severity":"","message":"","attributes":[]}`
	got, ok := Deserialize(json)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), got.Sequence)
	assert.Empty(t, got.Source)
}

func TestDeserializeMissingTimestampFails(t *testing.T) {
	_, ok := Deserialize(`{"sequence":1}`)
	assert.False(t, ok)
}

func TestSetAttributeOverwritesInPlace(t *testing.T) {
	var r Record
	r.SetAttribute("k", "v1")
	r.SetAttribute("other", "x")
	r.SetAttribute("k", "v2")
	assert.Len(t, r.Attributes, 2)
	v, ok := r.Attribute("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

// FILE: src/internal/event/event.go
// Package event defines the atomic record carried through the journal,
// the ring buffer, and the IPC channel, along with its canonical
// on-wire serialisation.
package event

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Category enumerates the producer domains the analyser understands.
const (
	CategoryServiceHealth  = "ServiceHealth"
	CategorySecurity       = "Security"
	CategoryProcess        = "Process"
	CategoryResource       = "Resource"
	CategoryPressure       = "Pressure"
	CategoryKernel         = "Kernel"
	CategoryKmsg           = "Kmsg"
	CategoryJournal        = "Journal"
	CategoryCrash          = "Crash"
	CategoryPower          = "Power"
	CategoryNetwork        = "Network"
	CategoryEventLog       = "EventLog"
	CategoryWER            = "WER"
	CategoryWslDiagnostics = "WslDiagnostics"
	CategoryIPC            = "IPC"
	CategoryGeneral        = "General"
)

// Severity levels, ordered low to high for bucketing purposes.
const (
	SeverityVerbose  = "Verbose"
	SeverityInfo     = "Info"
	SeverityWarning  = "Warning"
	SeverityError    = "Error"
	SeverityCritical = "Critical"
)

// Attribute is a single key/value pair attached to a Record.
type Attribute struct {
	Key   string
	Value string
}

// Record is the atomic unit flowing through the journal, ring buffer
// and IPC channel. Zero value has Sequence 0 (unassigned) and a zero
// Timestamp (substituted by the journal on append).
type Record struct {
	Timestamp  time.Time
	Sequence   uint64
	Source     string
	Category   string
	Severity   string
	Message    string
	Attributes []Attribute
}

// SetAttribute inserts or overwrites an attribute in place, preserving
// insertion order for attributes that aren't already present.
func (r *Record) SetAttribute(key, value string) {
	for i := range r.Attributes {
		if r.Attributes[i].Key == key {
			r.Attributes[i].Value = value
			return
		}
	}
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
}

// Attribute returns the value for key and whether it was present.
func (r *Record) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

const timestampLayout = "2006-01-02T15:04:05"

func formatTimestamp(ts time.Time) string {
	u := ts.UTC()
	micros := u.Nanosecond() / 1000
	return fmt.Sprintf("%s.%06dZ", u.Format(timestampLayout), micros)
}

func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
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
	return b.String()
}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 < len(s) {
				if code, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(code))
					i += 4
					continue
				}
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Serialize produces the canonical, deterministic JSON form used as
// the input to both the chain hash and the frame MAC: a fixed field
// order, no whitespace outside string literals, and attributes sorted
// lexicographically by (key, value).
func Serialize(r Record) string {
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"timestamp":"`)
	b.WriteString(escape(formatTimestamp(r.Timestamp)))
	b.WriteString(`","sequence":`)
	b.WriteString(strconv.FormatUint(r.Sequence, 10))
	b.WriteString(`,"source":"`)
	b.WriteString(escape(r.Source))
	b.WriteString(`","category":"`)
	b.WriteString(escape(r.Category))
	b.WriteString(`","severity":"`)
	b.WriteString(escape(r.Severity))
	b.WriteString(`","message":"`)
	b.WriteString(escape(r.Message))
	b.WriteString(`","attributes":[`)

	attrs := make([]Attribute, len(r.Attributes))
	copy(attrs, r.Attributes)
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Key == attrs[j].Key {
			return attrs[i].Value < attrs[j].Value
		}
		return attrs[i].Key < attrs[j].Key
	})
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"key":"`)
		b.WriteString(escape(a.Key))
		b.WriteString(`","value":"`)
		b.WriteString(escape(a.Value))
		b.WriteString(`"}`)
	}
	b.WriteString(`]}`)
	return b.String()
}

func findStringField(json, key string) (string, bool) {
	pattern := `"` + key + `":"`
	idx := strings.Index(json, pattern)
	if idx < 0 {
		return "", false
	}
	pos := idx + len(pattern)
	var raw strings.Builder
	escaping := false
	for i := pos; i < len(json); i++ {
		c := json[i]
		if !escaping {
			if c == '\\' {
				escaping = true
			} else if c == '"' {
				return unescape(raw.String()), true
			} else {
				raw.WriteByte(c)
			}
		} else {
			raw.WriteByte('\\')
			raw.WriteByte(c)
			escaping = false
		}
	}
	return "", false
}

func findUintField(json, key string) (uint64, bool) {
	pattern := `"` + key + `":`
	idx := strings.Index(json, pattern)
	if idx < 0 {
		return 0, false
	}
	pos := idx + len(pattern)
	end := pos
	for end < len(json) && json[end] >= '0' && json[end] <= '9' {
		end++
	}
	if end == pos {
		return 0, false
	}
	v, err := strconv.ParseUint(json[pos:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseTimestamp(raw string) (time.Time, bool) {
	if len(raw) < 19 {
		return time.Time{}, false
	}
	base, err := time.Parse(timestampLayout, raw[:19])
	if err != nil {
		return time.Time{}, false
	}
	rest := raw[19:]
	rest = strings.TrimSuffix(rest, "Z")
	rest = strings.TrimPrefix(rest, ".")
	for len(rest) < 6 {
		rest += "0"
	}
	if len(rest) > 6 {
		rest = rest[:6]
	}
	micros, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		micros = 0
	}
	return base.UTC().Add(time.Duration(micros) * time.Microsecond), true
}

func extractAttributes(json string) []Attribute {
	const marker = `"attributes":[`
	idx := strings.Index(json, marker)
	if idx < 0 {
		return nil
	}
	pos := idx + len(marker)
	end := strings.Index(json[pos:], "]")
	if end < 0 {
		return nil
	}
	arr := json[pos : pos+end]

	var attrs []Attribute
	i := 0
	for i < len(arr) {
		start := strings.Index(arr[i:], "{")
		if start < 0 {
			break
		}
		start += i
		close := strings.Index(arr[start:], "}")
		if close < 0 {
			break
		}
		close += start
		item := arr[start : close+1]
		k, _ := findStringField(item, "key")
		v, _ := findStringField(item, "value")
		if k != "" || v != "" {
			attrs = append(attrs, Attribute{Key: k, Value: v})
		}
		i = close + 1
	}
	return attrs
}

// Deserialize parses the canonical JSON form. It is permissive: a
// missing sequence defaults to 0, missing strings default to empty,
// and unknown fields are ignored. Returns false only when the
// timestamp field is absent or unparseable.
func Deserialize(json string) (Record, bool) {
	var r Record
	ts, ok := findStringField(json, "timestamp")
	if !ok {
		return Record{}, false
	}
	parsed, ok := parseTimestamp(ts)
	if !ok {
		return Record{}, false
	}
	r.Timestamp = parsed
	if seq, ok := findUintField(json, "sequence"); ok {
		r.Sequence = seq
	}
	r.Source, _ = findStringField(json, "source")
	r.Category, _ = findStringField(json, "category")
	r.Severity, _ = findStringField(json, "severity")
	r.Message, _ = findStringField(json, "message")
	r.Attributes = extractAttributes(json)
	return r, true
}

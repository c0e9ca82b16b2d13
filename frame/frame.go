// Package frame implements the STOMP frame value type: the immutable
// (command, headers, body, version) tuple that every other layer of this
// module builds, parses, or serializes.
//
// A Frame carries headers two ways at once: RawHeaders, an ordered list that
// preserves duplicates exactly as they arrived on the wire, and the
// deduplicated view produced by Unraw, which keeps only the first value per
// name. Builders and the parser both populate RawHeaders; Get and Headers
// read the deduplicated view directly, and Unraw returns a copy whose
// RawHeaders holds only that view.
package frame

import (
	"bytes"
	"fmt"

	"gostomp/header"
	"gostomp/stompspec"
)

// Header is a single (name, value) pair as it appears on the wire.
type Header struct {
	Name  string
	Value string
}

// Frame is an immutable STOMP frame.
type Frame struct {
	Command    string
	RawHeaders []Header
	Body       []byte
	Version    stompspec.Version

	headers    map[string]string // lazily built deduplicated view
	headersSet bool
}

// New builds a frame from an ordered header slice. Passing a nil or empty
// body is equivalent to an empty byte slice.
func New(command string, headers []Header, body []byte, version stompspec.Version) *Frame {
	if version == "" {
		version = stompspec.DefaultVersion
	}
	return &Frame{
		Command:    command,
		RawHeaders: headers,
		Body:       body,
		Version:    version,
	}
}

// NewFromMap builds a frame from a plain header map; iteration order of a Go
// map is not stable, so callers needing a specific wire order should build
// RawHeaders directly instead.
func NewFromMap(command string, headers map[string]string, body []byte, version stompspec.Version) *Frame {
	raw := make([]Header, 0, len(headers))
	for k, v := range headers {
		raw = append(raw, Header{Name: k, Value: v})
	}
	return New(command, raw, body, version)
}

// Get returns the first value for name in the deduplicated view, and whether
// it was present.
func (f *Frame) Get(name string) (string, bool) {
	f.ensureHeaders()
	v, ok := f.headers[name]
	return v, ok
}

// GetDefault returns the first value for name, or def if absent.
func (f *Frame) GetDefault(name, def string) string {
	if v, ok := f.Get(name); ok {
		return v
	}
	return def
}

// Headers returns the deduplicated header view: the first value seen per
// name, in no particular order. Callers that need wire order should use
// RawHeaders directly.
func (f *Frame) Headers() map[string]string {
	f.ensureHeaders()
	out := make(map[string]string, len(f.headers))
	for k, v := range f.headers {
		out[k] = v
	}
	return out
}

func (f *Frame) ensureHeaders() {
	if f.headersSet {
		return
	}
	f.headers = make(map[string]string, len(f.RawHeaders))
	for _, h := range f.RawHeaders {
		if _, exists := f.headers[h.Name]; !exists {
			f.headers[h.Name] = h.Value
		}
	}
	f.headersSet = true
}

// Unraw returns an equivalent frame whose RawHeaders has been collapsed to
// the deduplicated view (first occurrence per name). The original frame is
// left untouched.
func (f *Frame) Unraw() *Frame {
	f.ensureHeaders()
	raw := make([]Header, 0, len(f.headers))
	// Preserve first-seen order for determinism even though the map itself
	// is unordered.
	seen := make(map[string]bool, len(f.headers))
	for _, h := range f.RawHeaders {
		if seen[h.Name] {
			continue
		}
		seen[h.Name] = true
		raw = append(raw, Header{Name: h.Name, Value: h.Value})
	}
	return &Frame{
		Command:    f.Command,
		RawHeaders: raw,
		Body:       f.Body,
		Version:    f.Version,
	}
}

// Equal reports whether f and other serialize to byte-identical wire forms.
func (f *Frame) Equal(other *Frame) bool {
	if other == nil {
		return false
	}
	a, errA := f.Serialize()
	b, errB := other.Serialize()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Serialize renders the frame to its wire form: command line, header lines
// (escaped per version), a blank line, the body, and a trailing NUL.
func (f *Frame) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteRune(stompspec.LineDelimiter)
	for _, h := range f.RawHeaders {
		name := header.Escape(f.Version, f.Command, h.Name)
		value := header.Escape(f.Version, f.Command, h.Value)
		buf.WriteString(name)
		buf.WriteRune(stompspec.HeaderSeparator)
		buf.WriteString(value)
		buf.WriteRune(stompspec.LineDelimiter)
	}
	buf.WriteRune(stompspec.LineDelimiter)
	buf.Write(f.Body)
	buf.WriteByte(stompspec.FrameDelimiter)
	return buf.Bytes(), nil
}

func (f *Frame) String() string {
	b, err := f.Serialize()
	if err != nil {
		return fmt.Sprintf("<frame %s: serialize error: %v>", f.Command, err)
	}
	return string(b)
}

// HeartBeat is the minimal frame exchanged to prove liveness under 1.1/1.2:
// a single line-delimiter byte, carrying no command or headers.
type HeartBeat struct {
	Version stompspec.Version
}

// Serialize renders the heart-beat to its one-byte wire form.
func (h *HeartBeat) Serialize() []byte {
	return []byte{stompspec.LineDelimiter}
}

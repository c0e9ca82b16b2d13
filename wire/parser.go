// Package wire turns a byte stream into STOMP frames and back. Parser is a
// streaming, incremental state machine: callers feed it arbitrary byte
// chunks via Add and drain completed frames via Get. It never blocks and
// never reads from or writes to any I/O handle itself; that is the
// transport collaborator's job (see the transport package).
package wire

import (
	"bytes"
	"strconv"

	"gostomp/frame"
	"gostomp/header"
	"gostomp/stomperr"
	"gostomp/stompspec"
)

type parserState int

const (
	stateHeartBeat parserState = iota
	stateCommand
	stateHeaders
	stateBody
)

// Item is one unit of parsed input: either a complete frame, or a heart-beat.
// Exactly one of the two fields is non-nil/true.
type Item struct {
	Frame     *frame.Frame
	HeartBeat *frame.HeartBeat
}

// Parser incrementally decodes a byte stream into a queue of Items.
type Parser struct {
	version stompspec.Version

	state   parserState
	buf     bytes.Buffer
	command string
	headers []frame.Header

	contentLength int // -1 means "read until NUL"
	bodyRead      int

	items []Item
}

// NewParser creates a parser for the given version.
func NewParser(version stompspec.Version) *Parser {
	if version == "" {
		version = stompspec.DefaultVersion
	}
	p := &Parser{version: version}
	p.Reset()
	return p
}

// SetVersion changes the version a subsequent Add call decodes against.
// Typically called once, right after negotiating the version on CONNECTED.
func (p *Parser) SetVersion(version stompspec.Version) {
	p.version = version
}

// Reset discards any partially or fully parsed state, including queued
// items.
func (p *Parser) Reset() {
	p.items = nil
	p.resetFrame()
}

func (p *Parser) resetFrame() {
	p.state = stateHeartBeat
	p.buf.Reset()
	p.command = ""
	p.headers = nil
	p.contentLength = -1
	p.bodyRead = 0
}

// CanRead reports whether a completed item is available via Get.
func (p *Parser) CanRead() bool {
	return len(p.items) > 0
}

// Get returns and removes the next completed item, if any.
func (p *Parser) Get() (Item, bool) {
	if len(p.items) == 0 {
		return Item{}, false
	}
	item := p.items[0]
	p.items = p.items[1:]
	return item, true
}

// Add feeds data into the parser. A zero-valued byte seen outside a frame
// body terminates consumption of that call (the rest of data is dropped)
// without corrupting parser state: the next Add call picks up cleanly.
// Inside a body, a zero byte is handled as body data or frame delimiter.
func (p *Parser) Add(data []byte) error {
	for _, c := range data {
		if c == 0 && p.state != stateBody {
			return nil
		}
		if err := p.step(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) step(c byte) error {
	switch p.state {
	case stateHeartBeat:
		return p.stepHeartBeat(c)
	case stateCommand:
		return p.stepCommand(c)
	case stateHeaders:
		return p.stepHeaders(c)
	case stateBody:
		return p.stepBody(c)
	}
	return nil
}

func (p *Parser) stepHeartBeat(c byte) error {
	if c != stompspec.LineDelimiter {
		p.state = stateCommand
		return p.step(c)
	}
	if p.version != stompspec.V10 {
		p.items = append(p.items, Item{HeartBeat: &frame.HeartBeat{Version: p.version}})
	}
	return nil
}

func (p *Parser) stepCommand(c byte) error {
	if c != stompspec.LineDelimiter {
		p.buf.WriteByte(c)
		return nil
	}
	cmd, err := p.decodeLine(p.buf.Bytes())
	if err != nil {
		p.resetFrame()
		return err
	}
	if !stompspec.IsLegalCommand(p.version, cmd) {
		p.resetFrame()
		return stomperr.NewFrameError("invalid command: %q", cmd)
	}
	p.command = cmd
	p.headers = nil
	p.buf.Reset()
	p.state = stateHeaders
	return nil
}

func (p *Parser) stepHeaders(c byte) error {
	if c != stompspec.LineDelimiter {
		p.buf.WriteByte(c)
		return nil
	}
	line, err := p.decodeLine(p.buf.Bytes())
	if err != nil {
		p.resetFrame()
		return err
	}
	p.buf.Reset()
	if line == "" {
		// Blank line: headers are done, body begins.
		p.contentLength = -1
		for _, h := range p.headers {
			if h.Name == stompspec.ContentLengthHeader {
				n, convErr := strconv.Atoi(h.Value)
				if convErr != nil {
					p.resetFrame()
					return stomperr.NewFrameError("invalid content-length: %q", h.Value)
				}
				p.contentLength = n
				break
			}
		}
		p.bodyRead = 0
		p.state = stateBody
		return nil
	}
	idx := bytes.IndexByte([]byte(line), stompspec.HeaderSeparator)
	if idx < 0 {
		p.resetFrame()
		return stomperr.NewFrameError("no separator in header line: %q", line)
	}
	name, value := line[:idx], line[idx+1:]
	uName, err := header.Unescape(p.version, p.command, name)
	if err != nil {
		p.resetFrame()
		return err
	}
	uValue, err := header.Unescape(p.version, p.command, value)
	if err != nil {
		p.resetFrame()
		return err
	}
	p.headers = append(p.headers, frame.Header{Name: uName, Value: uValue})
	return nil
}

func (p *Parser) stepBody(c byte) error {
	p.bodyRead++
	if p.contentLength >= 0 && p.bodyRead > p.contentLength && c != stompspec.FrameDelimiter {
		p.resetFrame()
		return stomperr.NewFrameError("expected frame delimiter after %d body bytes", p.contentLength)
	}
	if p.bodyRead <= p.contentLength || c != stompspec.FrameDelimiter {
		p.buf.WriteByte(c)
		return nil
	}
	body := append([]byte(nil), p.buf.Bytes()...)
	if len(body) > 0 && !stompspec.BodyAllowed(p.version, p.command) {
		p.resetFrame()
		return stomperr.NewFrameError("no body allowed for this command: %s", p.command)
	}
	f := frame.New(p.command, p.headers, body, p.version)
	p.items = append(p.items, Item{Frame: f})
	p.resetFrame()
	return nil
}

// decodeLine applies the version's charset validation and strips the
// version's trailing line-terminator rune (CR, for 1.2), if present.
func (p *Parser) decodeLine(b []byte) (string, error) {
	if p.version == stompspec.V10 {
		for _, c := range b {
			if c >= 0x80 {
				return "", stomperr.NewFrameError("invalid character for US-ASCII encoding: %q", b)
			}
		}
	}
	s := string(b)
	if strip, ok := stompspec.StripLineDelimiter(p.version); ok {
		if n := len(s); n > 0 && rune(s[n-1]) == strip {
			s = s[:n-1]
		}
	}
	return s, nil
}

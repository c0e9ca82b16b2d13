package wire

import (
	"testing"

	"gostomp/frame"
	"gostomp/stompspec"
)

func TestParserDuplicateHeaders(t *testing.T) {
	p := NewParser(stompspec.V11)
	if err := p.Add([]byte("SEND\nfoo:bar1\nfoo:bar2\n\nbody\x00")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	item, ok := p.Get()
	if !ok || item.Frame == nil {
		t.Fatalf("expected one frame item")
	}
	f := item.Frame
	if len(f.RawHeaders) != 2 || f.RawHeaders[0].Value != "bar1" || f.RawHeaders[1].Value != "bar2" {
		t.Fatalf("RawHeaders = %+v, want [(foo,bar1) (foo,bar2)]", f.RawHeaders)
	}
	dedup := f.Headers()
	if dedup["foo"] != "bar1" {
		t.Fatalf("Headers()[foo] = %q, want bar1", dedup["foo"])
	}
}

func TestParserCRLFAccepted12RejectedIn11(t *testing.T) {
	data := []byte("SEND\r\ndestination:/q\r\n\r\n\x00")

	p12 := NewParser(stompspec.V12)
	if err := p12.Add(data); err != nil {
		t.Fatalf("1.2 Add: %v", err)
	}
	if !p12.CanRead() {
		t.Fatalf("1.2 parser should have produced a frame")
	}

	p11 := NewParser(stompspec.V11)
	err := p11.Add(data)
	if err == nil {
		t.Fatalf("1.1 parser should reject CRLF-terminated headers")
	}
}

func TestParserInvalidCommandFails(t *testing.T) {
	p := NewParser(stompspec.V10)
	err := p.Add([]byte("BOGUS\n\n\x00"))
	if err == nil {
		t.Fatalf("expected error for invalid command")
	}
}

func TestParserHeartBeatOnlyAfter10(t *testing.T) {
	p10 := NewParser(stompspec.V10)
	if err := p10.Add([]byte("\n")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p10.CanRead() {
		t.Fatalf("1.0 must not emit heart-beats")
	}

	p11 := NewParser(stompspec.V11)
	if err := p11.Add([]byte("\n")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	item, ok := p11.Get()
	if !ok || item.HeartBeat == nil {
		t.Fatalf("expected a heart-beat item")
	}
}

func TestParserContentLengthBody(t *testing.T) {
	p := NewParser(stompspec.V11)
	body := "a\x00b" // NUL embedded in the body, must survive given content-length
	msg := "SEND\ndestination:/q\ncontent-length:3\n\n" + body + "\x00"
	if err := p.Add([]byte(msg)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	item, ok := p.Get()
	if !ok || item.Frame == nil {
		t.Fatalf("expected frame")
	}
	if string(item.Frame.Body) != body {
		t.Fatalf("Body = %q, want %q", item.Frame.Body, body)
	}
}

func TestParserRoundTripWithSerializer(t *testing.T) {
	f := frame.New(stompspec.CmdSend, []frame.Header{
		{Name: stompspec.DestinationHeader, Value: "/queue/a"},
		{Name: "custom", Value: "va:lue\\with\nescapes"},
	}, []byte("payload"), stompspec.V12)

	ser := NewSerializer()
	wireBytes, err := ser.Serialize(f)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p := NewParser(stompspec.V12)
	if err := p.Add(wireBytes); err != nil {
		t.Fatalf("Add: %v", err)
	}
	item, ok := p.Get()
	if !ok || item.Frame == nil {
		t.Fatalf("expected frame")
	}
	if !item.Frame.Equal(f) {
		t.Fatalf("round trip mismatch:\n got  %q\n want %q", item.Frame.String(), f.String())
	}
}

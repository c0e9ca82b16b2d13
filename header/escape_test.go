package header

import (
	"testing"

	"gostomp/stompspec"
)

func TestEscapeRoundTrip(t *testing.T) {
	cases := []struct {
		version stompspec.Version
		text    string
	}{
		{stompspec.V11, "a:b\\c\nd"},
		{stompspec.V12, "a:b\\c\nd\re"},
	}
	for _, c := range cases {
		escaped := Escape(c.version, stompspec.CmdSend, c.text)
		got, err := Unescape(c.version, stompspec.CmdSend, escaped)
		if err != nil {
			t.Fatalf("Unescape(%q): %v", escaped, err)
		}
		if got != c.text {
			t.Fatalf("round trip mismatch: got %q, want %q", got, c.text)
		}
	}
}

func TestEscapeExcludedForConnect(t *testing.T) {
	text := "weird:value\nhere"
	got := Escape(stompspec.V11, stompspec.CmdConnect, text)
	if got != text {
		t.Fatalf("CONNECT headers should not be escaped, got %q", got)
	}
}

func TestUnescapeUnknownSequenceFails(t *testing.T) {
	_, err := Unescape(stompspec.V11, stompspec.CmdSend, "bad\\qvalue")
	if err == nil {
		t.Fatalf("expected error for unknown escape sequence")
	}
}

func TestCarriageReturnOnlyEscapedIn12(t *testing.T) {
	if got := Escape(stompspec.V11, stompspec.CmdSend, "a\rb"); got != "a\rb" {
		t.Fatalf("1.1 must not escape CR, got %q", got)
	}
	if got := Escape(stompspec.V12, stompspec.CmdSend, "a\rb"); got != "a\\rb" {
		t.Fatalf("1.2 must escape CR, got %q", got)
	}
}

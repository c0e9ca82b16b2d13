// Package header implements the per-version STOMP header escaping rules:
// which characters get escaped, and which commands are exempt.
package header

import (
	"strings"

	"gostomp/stomperr"
	"gostomp/stompspec"
)

// Escape applies the escape table for version v to a single header name or
// value. Frames whose command is exempt (see stompspec.EscapeExcluded) are
// passed straight through untouched.
func Escape(v stompspec.Version, command, text string) string {
	if stompspec.EscapeExcluded(v, command) {
		return text
	}
	table := stompspec.EscapedCharacters(v)
	var b strings.Builder
	for _, r := range text {
		if letter, ok := table[r]; ok {
			b.WriteRune(stompspec.EscapeCharacter)
			b.WriteRune(letter)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape reverses Escape. It fails with a *stomperr.FrameError if the text
// contains an escape character not followed by a known escape letter.
func Unescape(v stompspec.Version, command, text string) (string, error) {
	if stompspec.EscapeExcluded(v, command) {
		return text, nil
	}
	reverse := reverseTable(stompspec.EscapedCharacters(v))

	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != stompspec.EscapeCharacter {
			b.WriteRune(r)
			continue
		}
		if i+1 >= len(runes) {
			return "", stomperr.NewFrameError("dangling escape character in header text %q", text)
		}
		letter := runes[i+1]
		literal, ok := reverse[letter]
		if !ok {
			return "", stomperr.NewFrameError("no escape sequence defined for character %q [text=%q]", letter, text)
		}
		b.WriteRune(literal)
		i++
	}
	return b.String(), nil
}

func reverseTable(table map[rune]rune) map[rune]rune {
	out := make(map[rune]rune, len(table))
	for literal, letter := range table {
		out[letter] = literal
	}
	return out
}

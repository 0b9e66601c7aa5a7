// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircutils

import (
	"strings"
	"unicode/utf8"
)

// TruncateUTF8Safe truncates a string to at most byteLimit bytes without
// splitting a multibyte encoding.
func TruncateUTF8Safe(message string, byteLimit int) string {
	if len(message) <= byteLimit {
		return message
	}
	message = message[:byteLimit]
	for i := 0; i < (utf8.UTFMax - 1); i++ {
		r, n := utf8.DecodeLastRuneInString(message)
		if r == utf8.RuneError && n <= 1 {
			message = message[:len(message)-1]
		} else {
			break
		}
	}
	return message
}

// SanitizeText prepares free-form text for inclusion in an IRC message:
// NUL and carriage returns are dropped, newlines become two spaces,
// invalid UTF-8 is replaced with the replacement character, and the
// result is truncated to byteLimit without splitting a rune.
func SanitizeText(message string, byteLimit int) (result string) {
	var buf strings.Builder
	for _, r := range message {
		switch r {
		case '\x00', '\r':
			continue
		case '\n':
			buf.WriteString("  ")
		default:
			buf.WriteRune(r)
		}
	}
	return TruncateUTF8Safe(buf.String(), byteLimit)
}

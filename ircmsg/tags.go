// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircmsg

import "strings"

// The IRCv3 message-tags value escaping table. Escaping is applied once,
// longest match first, left to right; a backslash followed by any other
// character stands for that character, and a trailing lone backslash is
// dropped.

// EscapeTagValue escapes a tag value for the wire.
func EscapeTagValue(in string) string {
	if !strings.ContainsAny(in, ";\\ \r\n") {
		return in
	}
	var buf strings.Builder
	buf.Grow(len(in) + 2)
	for i := 0; i < len(in); i++ {
		switch in[i] {
		case ';':
			buf.WriteString("\\:")
		case ' ':
			buf.WriteString("\\s")
		case '\\':
			buf.WriteString("\\\\")
		case '\r':
			buf.WriteString("\\r")
		case '\n':
			buf.WriteString("\\n")
		default:
			buf.WriteByte(in[i])
		}
	}
	return buf.String()
}

// UnescapeTagValue unescapes a tag value received from the wire; the
// exact inverse of EscapeTagValue on values it produces.
func UnescapeTagValue(in string) string {
	if strings.IndexByte(in, '\\') == -1 {
		return in
	}
	var buf strings.Builder
	buf.Grow(len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '\\' {
			buf.WriteByte(in[i])
			continue
		}
		i++
		if i == len(in) {
			break
		}
		switch in[i] {
		case ':':
			buf.WriteByte(';')
		case 's':
			buf.WriteByte(' ')
		case '\\':
			buf.WriteByte('\\')
		case 'r':
			buf.WriteByte('\r')
		case 'n':
			buf.WriteByte('\n')
		default:
			buf.WriteByte(in[i])
		}
	}
	return buf.String()
}

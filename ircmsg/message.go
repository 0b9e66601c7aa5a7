// Copyright (c) 2024 AfterNET development team
// released under the MIT license

// Package ircmsg models a single IRC protocol line as defined by the RFCs
// and the IRCv3 message-tags specification.
package ircmsg

import (
	"errors"
	"strings"
)

// NUH holds the nick!user@host triple of a message source.
type NUH struct {
	Nick string
	User string
	Host string
}

// Canonical returns the canonical string representation of the NUH.
func (nuh *NUH) Canonical() string {
	var out strings.Builder
	out.WriteString(nuh.Nick)
	if nuh.User != "" {
		out.WriteByte('!')
		out.WriteString(nuh.User)
	}
	if nuh.Host != "" {
		out.WriteByte('@')
		out.WriteString(nuh.Host)
	}
	return out.String()
}

// ParseNUH splits a message prefix into its nick, user, and host parts:
// nick!user@host, nick!user, nick@host, or a bare nick.
func ParseNUH(in string) (out NUH) {
	rest := in
	if bang := strings.IndexByte(rest, '!'); bang != -1 {
		out.Nick = rest[:bang]
		rest = rest[bang+1:]
		if at := strings.IndexByte(rest, '@'); at != -1 {
			out.User = rest[:at]
			out.Host = rest[at+1:]
		} else {
			out.User = rest
		}
		return
	}
	if at := strings.IndexByte(rest, '@'); at != -1 {
		out.Nick = rest[:at]
		out.Host = rest[at+1:]
		return
	}
	out.Nick = rest
	return
}

// Message is one parsed IRC line. A Message is immutable once parsed;
// none of its fields may be modified after construction.
type Message struct {
	// Tags maps tag keys to unescaped values; empty if the line had none.
	Tags map[string]string
	// Prefix is the original unparsed source string, empty if absent.
	Prefix string
	// Source is the parsed form of Prefix.
	Source NUH
	// Command is the uppercased command token or 3-digit numeric.
	Command string
	// Params holds the ordered parameters; a trailing parameter is the
	// final element.
	Params []string
	// Raw is the original line with the CRLF terminator stripped.
	Raw string
}

// ParseLine parses a raw IRC line. It is total: malformed or empty input
// degrades to a partial Message (empty Command and Params) rather than an
// error.
func ParseLine(line string) (msg Message) {
	line = strings.TrimRight(line, "\r\n")
	msg.Raw = line
	msg.Tags = make(map[string]string)

	// tags
	if len(line) > 0 && line[0] == '@' {
		var section string
		if idx := strings.IndexByte(line, ' '); idx != -1 {
			section, line = line[1:idx], line[idx+1:]
		} else {
			section, line = line[1:], ""
		}
		for _, fulltag := range strings.Split(section, ";") {
			if fulltag == "" {
				continue
			}
			if eq := strings.IndexByte(fulltag, '='); eq != -1 {
				msg.Tags[fulltag[:eq]] = UnescapeTagValue(fulltag[eq+1:])
			} else {
				msg.Tags[fulltag] = ""
			}
		}
	}
	line = strings.TrimLeft(line, " ")

	// source
	if len(line) > 0 && line[0] == ':' {
		if idx := strings.IndexByte(line, ' '); idx != -1 {
			msg.Prefix, line = line[1:idx], line[idx+1:]
		} else {
			msg.Prefix, line = line[1:], ""
		}
		msg.Source = ParseNUH(msg.Prefix)
	}
	line = strings.TrimLeft(line, " ")

	// command
	if idx := strings.IndexByte(line, ' '); idx != -1 {
		msg.Command, line = strings.ToUpper(line[:idx]), line[idx+1:]
	} else {
		msg.Command, line = strings.ToUpper(line), ""
	}

	// parameters
	for line != "" {
		line = strings.TrimLeft(line, " ")
		if line == "" {
			break
		}
		if line[0] == ':' {
			msg.Params = append(msg.Params, line[1:])
			break
		}
		if idx := strings.IndexByte(line, ' '); idx != -1 {
			msg.Params = append(msg.Params, line[:idx])
			line = line[idx+1:]
		} else {
			msg.Params = append(msg.Params, line)
			line = ""
		}
	}

	return msg
}

// Trailing returns the final parameter, or the empty string if the
// message has no parameters.
func (msg *Message) Trailing() string {
	if len(msg.Params) > 0 {
		return msg.Params[len(msg.Params)-1]
	}
	return ""
}

// HasTag reports whether the message carries the given tag, with its
// unescaped value.
func (msg *Message) HasTag(key string) (bool, string) {
	value, ok := msg.Tags[key]
	return ok, value
}

// Nick returns the nick of the message source, empty if there is none.
func (msg *Message) Nick() string {
	return msg.Source.Nick
}

// MakeMessage assembles a Message from its parts.
func MakeMessage(tags map[string]string, prefix string, command string, params ...string) (msg Message) {
	msg.Tags = make(map[string]string)
	for key, value := range tags {
		msg.Tags[key] = value
	}
	msg.Prefix = prefix
	msg.Source = ParseNUH(prefix)
	msg.Command = strings.ToUpper(command)
	msg.Params = params
	return msg
}

// ErrNoCommand indicates an attempt to serialize a message without a
// command.
var ErrNoCommand = errors.New("ircmsg: message has no command")

// ErrBadParam indicates a non-final parameter that is empty, contains a
// space, or starts with ':'; such a parameter cannot be represented on
// the wire.
var ErrBadParam = errors.New("ircmsg: parameter forbidden before the final position")

// Line serializes the message to a sendable line, CRLF included. Parsing
// the result yields a Message equal to this one in tags, source, command,
// and parameters; byte-for-byte identity with any original line is not
// guaranteed.
func (msg *Message) Line() (string, error) {
	if msg.Command == "" {
		return "", ErrNoCommand
	}

	var buf strings.Builder
	if len(msg.Tags) > 0 {
		buf.WriteByte('@')
		first := true
		for key, value := range msg.Tags {
			if !first {
				buf.WriteByte(';')
			}
			first = false
			buf.WriteString(key)
			if value != "" {
				buf.WriteByte('=')
				buf.WriteString(EscapeTagValue(value))
			}
		}
		buf.WriteByte(' ')
	}

	if msg.Prefix != "" {
		buf.WriteByte(':')
		buf.WriteString(msg.Prefix)
		buf.WriteByte(' ')
	}

	buf.WriteString(msg.Command)

	for i, param := range msg.Params {
		buf.WriteByte(' ')
		if param == "" || strings.ContainsRune(param, ' ') || param[0] == ':' {
			if i != len(msg.Params)-1 {
				return "", ErrBadParam
			}
			buf.WriteByte(':')
		}
		buf.WriteString(param)
	}

	buf.WriteString("\r\n")
	return buf.String(), nil
}

// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircstream

import (
	"strings"

	"github.com/afternet/irctest/irccase"
	"github.com/afternet/irctest/ircmsg"
)

func normalizeCommand(command string) string {
	return strings.ToUpper(command)
}

// MatchCommand returns a predicate satisfied by messages with the given
// command or numeric.
func MatchCommand(command string) func(*ircmsg.Message) bool {
	command = normalizeCommand(command)
	return func(msg *ircmsg.Message) bool {
		return msg.Command == command
	}
}

// MatchTag returns a predicate satisfied by messages carrying the tag,
// regardless of its value.
func MatchTag(key string) func(*ircmsg.Message) bool {
	return func(msg *ircmsg.Message) bool {
		_, ok := msg.Tags[key]
		return ok
	}
}

// MatchTagValue returns a predicate satisfied by messages carrying the
// tag with exactly the given unescaped value.
func MatchTagValue(key, value string) func(*ircmsg.Message) bool {
	return func(msg *ircmsg.Message) bool {
		v, ok := msg.Tags[key]
		return ok && v == value
	}
}

// MatchNick returns a predicate satisfied by messages whose source nick
// equals the given nick under the server's casemapping.
func MatchNick(mapping irccase.MappingType, nick string) func(*ircmsg.Message) bool {
	folded, err := irccase.Casefold(mapping, nick)
	if err != nil {
		return func(*ircmsg.Message) bool { return false }
	}
	return func(msg *ircmsg.Message) bool {
		got, err := irccase.Casefold(mapping, msg.Source.Nick)
		return err == nil && got == folded
	}
}

// And combines predicates; the result is satisfied only when all of them
// are.
func And(preds ...func(*ircmsg.Message) bool) func(*ircmsg.Message) bool {
	return func(msg *ircmsg.Message) bool {
		for _, pred := range preds {
			if !pred(msg) {
				return false
			}
		}
		return true
	}
}

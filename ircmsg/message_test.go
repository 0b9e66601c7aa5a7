// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircmsg

import (
	"reflect"
	"testing"
)

type testcode struct {
	raw     string
	message Message
}

var decodetests = []testcode{
	{":dan-!d@localhost PRIVMSG dan #test :What a cool message\r\n",
		MakeMessage(nil, "dan-!d@localhost", "PRIVMSG", "dan", "#test", "What a cool message")},
	{"@time=12732;re TEST *a asda:fs :fhye tegh\r\n",
		MakeMessage(map[string]string{"time": "12732", "re": ""}, "", "TEST", "*a", "asda:fs", "fhye tegh")},
	{"@time=12732;re TEST *\r\n",
		MakeMessage(map[string]string{"time": "12732", "re": ""}, "", "TEST", "*")},
	{":dan- TESTMSG\r\n",
		MakeMessage(nil, "dan-", "TESTMSG")},
	{":dan- TESTMSG dan \r\n",
		MakeMessage(nil, "dan-", "TESTMSG", "dan")},
	{"privmsg #channel :命令\r\n",
		MakeMessage(nil, "", "PRIVMSG", "#channel", "命令")},
	{"@time=2019-02-28T19:30:01.727Z ping HiThere!\r\n",
		MakeMessage(map[string]string{"time": "2019-02-28T19:30:01.727Z"}, "", "PING", "HiThere!")},
	{"@+draft/label=l  TEST  foo    bar   baz  \r\n",
		MakeMessage(map[string]string{"+draft/label": "l"}, "", "TEST", "foo", "bar", "baz")},
	{"@tag1=val\\:ue;tag2=\\sleading PRIVMSG #chan :hi\r\n",
		MakeMessage(map[string]string{"tag1": "val;ue", "tag2": " leading"}, "", "PRIVMSG", "#chan", "hi")},
	{"PING\r\n",
		MakeMessage(nil, "", "PING")},
}

func TestDecode(t *testing.T) {
	for _, pair := range decodetests {
		got := ParseLine(pair.raw)
		want := pair.message
		if got.Command != want.Command ||
			!reflect.DeepEqual(got.Params, want.Params) ||
			!reflect.DeepEqual(got.Tags, want.Tags) ||
			got.Prefix != want.Prefix {
			t.Errorf("ParseLine(%q):\n got %#v\nwant %#v", pair.raw, got, want)
		}
	}
}

// the parser is total: structureless input degrades to a partial message
func TestDecodeDegenerate(t *testing.T) {
	for _, raw := range []string{"", "\r\n", "     \r\n", "@tags=tesa\r\n", ":dan-\r\n"} {
		msg := ParseLine(raw)
		if len(msg.Params) != 0 {
			t.Errorf("ParseLine(%q) produced params %v", raw, msg.Params)
		}
	}

	msg := ParseLine(":dan-\r\n")
	if msg.Prefix != "dan-" || msg.Command != "" {
		t.Errorf("lone prefix parsed incorrectly: %#v", msg)
	}
	msg = ParseLine("@a=b\r\n")
	if msg.Tags["a"] != "b" || msg.Command != "" {
		t.Errorf("lone tags parsed incorrectly: %#v", msg)
	}
}

func TestDecodeExample(t *testing.T) {
	msg := ParseLine("@time=2024-01-01T00:00:00Z :nick!user@host PRIVMSG #chan :Hello world")

	if msg.Tags["time"] != "2024-01-01T00:00:00Z" {
		t.Errorf("bad tags: %v", msg.Tags)
	}
	if msg.Source != (NUH{Nick: "nick", User: "user", Host: "host"}) {
		t.Errorf("bad source: %#v", msg.Source)
	}
	if msg.Prefix != "nick!user@host" {
		t.Errorf("bad prefix: %q", msg.Prefix)
	}
	if msg.Command != "PRIVMSG" {
		t.Errorf("bad command: %q", msg.Command)
	}
	if !reflect.DeepEqual(msg.Params, []string{"#chan", "Hello world"}) {
		t.Errorf("bad params: %v", msg.Params)
	}
	if msg.Trailing() != "Hello world" {
		t.Errorf("bad trailing: %q", msg.Trailing())
	}
	if msg.Raw != "@time=2024-01-01T00:00:00Z :nick!user@host PRIVMSG #chan :Hello world" {
		t.Errorf("bad raw: %q", msg.Raw)
	}
}

var nuhTests = []struct {
	in  string
	out NUH
}{
	{"nick!user@host", NUH{"nick", "user", "host"}},
	{"nick!user", NUH{"nick", "user", ""}},
	{"nick@host", NUH{"nick", "", "host"}},
	{"nick", NUH{"nick", "", ""}},
	{"irc.example.com", NUH{"irc.example.com", "", ""}},
	{"", NUH{"", "", ""}},
	{"coolguy!ag@net\x035w\x03ork.admin", NUH{"coolguy", "ag", "net\x035w\x03ork.admin"}},
}

func TestParseNUH(t *testing.T) {
	for _, pair := range nuhTests {
		if got := ParseNUH(pair.in); got != pair.out {
			t.Errorf("ParseNUH(%q) = %#v, want %#v", pair.in, got, pair.out)
		}
	}
	canon := NUH{"nick", "user", "host"}
	if canon.Canonical() != "nick!user@host" {
		t.Errorf("bad canonical form: %q", canon.Canonical())
	}
}

var roundtriptests = []Message{
	MakeMessage(nil, "", "PING", "12345"),
	MakeMessage(nil, "nick!user@host", "PRIVMSG", "#chan", "Hello world"),
	MakeMessage(map[string]string{"time": "2024-01-01T00:00:00Z"}, "server.example", "001", "nick", "Welcome"),
	MakeMessage(map[string]string{"msg": "a;b \\c\r\n"}, "", "TAGMSG", "#chan"),
	MakeMessage(nil, "", "PRIVMSG", "#chan", ":leading colon"),
	MakeMessage(nil, "", "PRIVMSG", "#chan", ""),
}

// serializing and re-parsing must preserve tags, source, command, and
// params, though not necessarily the exact bytes
func TestRoundTrip(t *testing.T) {
	for _, want := range roundtriptests {
		line, err := want.Line()
		if err != nil {
			t.Fatalf("Line() of %#v: %v", want, err)
		}
		got := ParseLine(line)
		if got.Command != want.Command ||
			!reflect.DeepEqual(got.Params, want.Params) ||
			!reflect.DeepEqual(got.Tags, want.Tags) ||
			got.Prefix != want.Prefix {
			t.Errorf("round trip via %q:\n got %#v\nwant %#v", line, got, want)
		}
	}
}

func TestLineErrors(t *testing.T) {
	msg := MakeMessage(nil, "", "")
	if _, err := msg.Line(); err != ErrNoCommand {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}

	msg = MakeMessage(nil, "", "PRIVMSG", "has space", "trailing")
	if _, err := msg.Line(); err != ErrBadParam {
		t.Errorf("expected ErrBadParam, got %v", err)
	}
}

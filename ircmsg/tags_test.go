// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircmsg

import "testing"

var tagEscapeTests = []struct {
	unescaped string
	escaped   string
}{
	{"te;st", "te\\:st"},
	{"spaced out", "spaced\\sout"},
	{"back\\slash", "back\\\\slash"},
	{"cr\rlf\n", "cr\\rlf\\n"},
	{"all; of\\ the\r above\n", "all\\:\\sof\\\\\\sthe\\r\\sabove\\n"},
	{"plain", "plain"},
	{"", ""},
}

func TestEscapeTagValue(t *testing.T) {
	for _, pair := range tagEscapeTests {
		if got := EscapeTagValue(pair.unescaped); got != pair.escaped {
			t.Errorf("EscapeTagValue(%q) = %q, want %q", pair.unescaped, got, pair.escaped)
		}
		if got := UnescapeTagValue(pair.escaped); got != pair.unescaped {
			t.Errorf("UnescapeTagValue(%q) = %q, want %q", pair.escaped, got, pair.unescaped)
		}
	}
}

// escaping then unescaping reproduces any value exactly
func TestTagValueRoundTrip(t *testing.T) {
	values := []string{
		"; \\\r\n", "\\s", "\\\\:", "x", "v\\", "£\r", "\\r\\n",
	}
	for _, v := range values {
		if got := UnescapeTagValue(EscapeTagValue(v)); got != v {
			t.Errorf("round trip of %q gave %q", v, got)
		}
	}
}

// lenient unescaping of input we would not produce ourselves
func TestUnescapeLenient(t *testing.T) {
	cases := []struct{ in, out string }{
		{"\\", ""},           // trailing lone backslash is dropped
		{"x\\", "x"},
		{"\\b", "b"},         // unknown escape stands for the bare char
		{"\\s\\", " "},
	}
	for _, pair := range cases {
		if got := UnescapeTagValue(pair.in); got != pair.out {
			t.Errorf("UnescapeTagValue(%q) = %q, want %q", pair.in, got, pair.out)
		}
	}
}

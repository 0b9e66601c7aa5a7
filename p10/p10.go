// Copyright (c) 2024 AfterNET development team
// released under the MIT license

// Package p10 implements the compact base64-style encoding used by the
// P10 server-to-server protocol for numerics and IP addresses.
package p10

import (
	"errors"
	"strconv"
	"strings"
)

// Alphabet is the 64-symbol ordered set used by all P10 encodings. The
// position of a character is its 6-bit value.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789[]"

// CompressionMarker stands in for a run of zero words in an encoded IPv6
// address, analogous to "::" in the textual form.
const CompressionMarker = '_'

var (
	// ErrInvalidCharacter indicates a character outside the P10 alphabet.
	ErrInvalidCharacter = errors.New("p10: character outside the numeric alphabet")

	// ErrOutOfRange indicates a value too large for its encoded field.
	ErrOutOfRange = errors.New("p10: value out of range for field")

	// ErrInvalidLength indicates an encoding of the wrong length.
	ErrInvalidLength = errors.New("p10: encoding has the wrong length")

	// ErrInvalidAddress indicates a malformed textual IP address.
	ErrInvalidAddress = errors.New("p10: malformed IP address")
)

// CharToValue returns the 6-bit value of an alphabet character.
func CharToValue(c byte) (uint8, error) {
	idx := strings.IndexByte(Alphabet, c)
	if idx == -1 {
		return 0, ErrInvalidCharacter
	}
	return uint8(idx), nil
}

// ValueToChar returns the alphabet character for a 6-bit value.
func ValueToChar(v uint8) (byte, error) {
	if v > 63 {
		return 0, ErrOutOfRange
	}
	return Alphabet[v], nil
}

// DecodeWord decodes a 3-character encoding into a 16-bit word. The first
// character carries only its low 4 bits; the upper 2 are padding.
func DecodeWord(s string) (uint16, error) {
	if len(s) != 3 {
		return 0, ErrInvalidLength
	}
	c1, err := CharToValue(s[0])
	if err != nil {
		return 0, err
	}
	c2, err := CharToValue(s[1])
	if err != nil {
		return 0, err
	}
	c3, err := CharToValue(s[2])
	if err != nil {
		return 0, err
	}
	return uint16(c1&0xF)<<12 | uint16(c2)<<6 | uint16(c3), nil
}

// EncodeWord encodes a 16-bit word as 3 alphabet characters, the inverse
// of DecodeWord. The padding bits of the first character are always zero.
func EncodeWord(w uint16) string {
	return string([]byte{
		Alphabet[(w>>12)&0xF],
		Alphabet[(w>>6)&0x3F],
		Alphabet[w&0x3F],
	})
}

// DecodeIPv4 decodes a 6-character encoding into a dotted-quad address.
// The 6 symbols form a 36-bit big-endian integer; only the low 32 bits
// are significant.
func DecodeIPv4(s string) (string, error) {
	if len(s) != 6 {
		return "", ErrInvalidLength
	}
	var acc uint64
	for i := 0; i < len(s); i++ {
		v, err := CharToValue(s[i])
		if err != nil {
			return "", err
		}
		acc = acc<<6 | uint64(v)
	}
	addr := uint32(acc)
	octets := []string{
		strconv.Itoa(int(addr >> 24)),
		strconv.Itoa(int(addr >> 16 & 0xFF)),
		strconv.Itoa(int(addr >> 8 & 0xFF)),
		strconv.Itoa(int(addr & 0xFF)),
	}
	return strings.Join(octets, "."), nil
}

// EncodeIPv4 encodes a dotted-quad address as exactly 6 alphabet
// characters; the inverse of DecodeIPv4.
func EncodeIPv4(dotted string) (string, error) {
	addr, err := parseDottedQuad(dotted)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 6)
	acc := uint64(addr)
	for i := 5; i >= 0; i-- {
		buf[i] = Alphabet[acc&0x3F]
		acc >>= 6
	}
	return string(buf), nil
}

func parseDottedQuad(dotted string) (uint32, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) != 4 {
		return 0, ErrInvalidAddress
	}
	var addr uint32
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 || octet > 255 {
			return 0, ErrInvalidAddress
		}
		addr = addr<<8 | uint32(octet)
	}
	return addr, nil
}

// DecodeIPv6 decodes an encoded IPv6 address into its canonical
// "::"-compressed textual form. The encoding is a sequence of 3-character
// words with at most one compression marker standing in for a run of zero
// words; a lone marker decodes to the all-zero address.
func DecodeIPv6(s string) (string, error) {
	var words []uint16

	markerIdx := strings.IndexByte(s, CompressionMarker)
	if markerIdx != -1 {
		if strings.IndexByte(s[markerIdx+1:], CompressionMarker) != -1 {
			return "", ErrInvalidLength
		}
		left, err := decodeWordRun(s[:markerIdx])
		if err != nil {
			return "", err
		}
		right, err := decodeWordRun(s[markerIdx+1:])
		if err != nil {
			return "", err
		}
		missing := 8 - len(left) - len(right)
		if missing < 0 {
			return "", ErrInvalidLength
		}
		words = append(words, left...)
		words = append(words, make([]uint16, missing)...)
		words = append(words, right...)
	} else {
		if len(s) != 24 {
			return "", ErrInvalidLength
		}
		var err error
		words, err = decodeWordRun(s)
		if err != nil {
			return "", err
		}
	}

	var full [8]uint16
	copy(full[:], words)
	return formatIPv6(full), nil
}

// EncodeIPv6 encodes a textual IPv6 address. The longest run of zero
// words (first run on a tie) is replaced with the compression marker,
// but only if the run spans at least 2 words.
func EncodeIPv6(text string) (string, error) {
	words, err := parseIPv6Words(text)
	if err != nil {
		return "", err
	}

	start, length := longestZeroRun(words[:])

	var out strings.Builder
	if length >= 2 {
		for _, w := range words[:start] {
			out.WriteString(EncodeWord(w))
		}
		out.WriteByte(CompressionMarker)
		for _, w := range words[start+length:] {
			out.WriteString(EncodeWord(w))
		}
	} else {
		for _, w := range words {
			out.WriteString(EncodeWord(w))
		}
	}
	return out.String(), nil
}

// DecodeIP decodes either address family: a 6-character encoding without
// a compression marker is IPv4, anything else is treated as IPv6.
func DecodeIP(s string) (string, error) {
	if len(s) == 6 && strings.IndexByte(s, CompressionMarker) == -1 {
		return DecodeIPv4(s)
	}
	return DecodeIPv6(s)
}

// EncodeIP encodes a textual address of either family.
func EncodeIP(text string) (string, error) {
	if strings.IndexByte(text, ':') != -1 {
		return EncodeIPv6(text)
	}
	return EncodeIPv4(text)
}

func decodeWordRun(s string) ([]uint16, error) {
	if len(s)%3 != 0 {
		return nil, ErrInvalidLength
	}
	words := make([]uint16, 0, len(s)/3)
	for i := 0; i < len(s); i += 3 {
		w, err := DecodeWord(s[i : i+3])
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

// parseIPv6Words expands a textual IPv6 address (optionally
// "::"-compressed) into its 8 words.
func parseIPv6Words(text string) ([8]uint16, error) {
	var words [8]uint16

	if strings.IndexByte(text, ':') == -1 {
		return words, ErrInvalidAddress
	}
	if strings.Count(text, "::") > 1 {
		return words, ErrInvalidAddress
	}

	var leftPart, rightPart string
	hasGap := false
	if idx := strings.Index(text, "::"); idx != -1 {
		hasGap = true
		leftPart = text[:idx]
		rightPart = text[idx+2:]
	} else {
		leftPart = text
	}

	left, err := parseHexWords(leftPart)
	if err != nil {
		return words, err
	}
	right, err := parseHexWords(rightPart)
	if err != nil {
		return words, err
	}

	if hasGap {
		if len(left)+len(right) > 7 {
			return words, ErrInvalidAddress
		}
		copy(words[:], left)
		copy(words[8-len(right):], right)
	} else {
		if len(left) != 8 {
			return words, ErrInvalidAddress
		}
		copy(words[:], left)
	}
	return words, nil
}

func parseHexWords(part string) ([]uint16, error) {
	if part == "" {
		return nil, nil
	}
	groups := strings.Split(part, ":")
	words := make([]uint16, 0, len(groups))
	for _, g := range groups {
		if g == "" || len(g) > 4 {
			return nil, ErrInvalidAddress
		}
		v, err := strconv.ParseUint(g, 16, 16)
		if err != nil {
			return nil, ErrInvalidAddress
		}
		words = append(words, uint16(v))
	}
	return words, nil
}

// formatIPv6 renders 8 words in canonical form: lowercase hex groups,
// with the longest zero run of length >= 2 (first on a tie) compressed
// to "::".
func formatIPv6(words [8]uint16) string {
	start, length := longestZeroRun(words[:])
	if length < 2 {
		groups := make([]string, 8)
		for i, w := range words {
			groups[i] = strconv.FormatUint(uint64(w), 16)
		}
		return strings.Join(groups, ":")
	}

	var left, right []string
	for _, w := range words[:start] {
		left = append(left, strconv.FormatUint(uint64(w), 16))
	}
	for _, w := range words[start+length:] {
		right = append(right, strconv.FormatUint(uint64(w), 16))
	}
	return strings.Join(left, ":") + "::" + strings.Join(right, ":")
}

// longestZeroRun returns the start and length of the longest run of
// consecutive zero words, preferring the earliest run on a tie.
func longestZeroRun(words []uint16) (start, length int) {
	start, length = -1, 0
	runStart := -1
	for i := 0; i <= len(words); i++ {
		if i < len(words) && words[i] == 0 {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			if i-runStart > length {
				start, length = runStart, i-runStart
			}
			runStart = -1
		}
	}
	return start, length
}

// MaxServerNumeric and MaxUserNumeric are the largest encodable numeric
// values: 12 and 18 bits respectively.
const (
	MaxServerNumeric = 1<<12 - 1
	MaxUserNumeric   = 1<<18 - 1
)

// EncodeServerNumeric encodes a server numeric as 2 characters.
func EncodeServerNumeric(n uint16) (string, error) {
	if n > MaxServerNumeric {
		return "", ErrOutOfRange
	}
	return string([]byte{Alphabet[n>>6], Alphabet[n&0x3F]}), nil
}

// DecodeServerNumeric decodes a 2-character server numeric.
func DecodeServerNumeric(s string) (uint16, error) {
	if len(s) != 2 {
		return 0, ErrInvalidLength
	}
	hi, err := CharToValue(s[0])
	if err != nil {
		return 0, err
	}
	lo, err := CharToValue(s[1])
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<6 | uint16(lo), nil
}

// EncodeUserNumeric encodes a user numeric as 3 characters.
func EncodeUserNumeric(n uint32) (string, error) {
	if n > MaxUserNumeric {
		return "", ErrOutOfRange
	}
	return string([]byte{
		Alphabet[n>>12&0x3F],
		Alphabet[n>>6&0x3F],
		Alphabet[n&0x3F],
	}), nil
}

// DecodeUserNumeric decodes a 3-character user numeric.
func DecodeUserNumeric(s string) (uint32, error) {
	if len(s) != 3 {
		return 0, ErrInvalidLength
	}
	var acc uint32
	for i := 0; i < len(s); i++ {
		v, err := CharToValue(s[i])
		if err != nil {
			return 0, err
		}
		acc = acc<<6 | uint32(v)
	}
	return acc, nil
}

// FullNumeric identifies a user globally: the numeric of the server it is
// attached to plus its per-server user numeric.
type FullNumeric struct {
	Server uint16
	User   uint32
}

// EncodeFullNumeric encodes a full numeric as the 5-character
// concatenation of its server and user parts.
func EncodeFullNumeric(n FullNumeric) (string, error) {
	server, err := EncodeServerNumeric(n.Server)
	if err != nil {
		return "", err
	}
	user, err := EncodeUserNumeric(n.User)
	if err != nil {
		return "", err
	}
	return server + user, nil
}

// DecodeFullNumeric decodes a 5-character full numeric.
func DecodeFullNumeric(s string) (FullNumeric, error) {
	if len(s) != 5 {
		return FullNumeric{}, ErrInvalidLength
	}
	server, err := DecodeServerNumeric(s[:2])
	if err != nil {
		return FullNumeric{}, err
	}
	user, err := DecodeUserNumeric(s[2:])
	if err != nil {
		return FullNumeric{}, err
	}
	return FullNumeric{Server: server, User: user}, nil
}

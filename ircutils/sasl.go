// Copyright (c) 2024 AfterNET development team
// released under the MIT license

// Package ircutils holds small helpers shared by test clients: SASL
// payload handling and text sanitization.
package ircutils

import (
	"encoding/base64"
	"strings"
)

// saslChunkLen is the maximum AUTHENTICATE parameter length defined by
// the IRCv3 SASL specification.
const saslChunkLen = 400

// PlainResponse assembles the raw payload of a SASL PLAIN exchange:
// authzid, authcid, and password joined by NUL bytes.
func PlainResponse(authzid, authcid, password string) []byte {
	payload := make([]byte, 0, len(authzid)+len(authcid)+len(password)+2)
	payload = append(payload, authzid...)
	payload = append(payload, 0)
	payload = append(payload, authcid...)
	payload = append(payload, 0)
	payload = append(payload, password...)
	return payload
}

// EncodeSASLResponse base64-encodes a raw SASL response and splits it
// into successive AUTHENTICATE parameters: 400-byte chunks, an empty
// response as "+", and a final "+" when the last chunk is exactly full.
func EncodeSASLResponse(raw []byte) (result []string) {
	if len(raw) == 0 {
		return []string{"+"}
	}

	response := base64.StdEncoding.EncodeToString(raw)
	lastLen := 0
	for len(response) > 0 {
		lastLen = min(len(response), saslChunkLen)
		result = append(result, response[:lastLen])
		response = response[lastLen:]
	}
	if lastLen == saslChunkLen {
		result = append(result, "+")
	}
	return result
}

// DecodeSASLResponse reassembles AUTHENTICATE parameters collected from
// the server into the raw response they encode. A lone "+" decodes to an
// empty response.
func DecodeSASLResponse(chunks []string) ([]byte, error) {
	var encoded strings.Builder
	for _, chunk := range chunks {
		if chunk == "+" {
			continue
		}
		encoded.WriteString(chunk)
	}
	return base64.StdEncoding.DecodeString(encoded.String())
}

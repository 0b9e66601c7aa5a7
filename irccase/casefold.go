// Copyright (c) 2024 AfterNET development team
// released under the MIT license

// Package irccase folds strings according to the casemappings servers
// advertise in ISUPPORT CASEMAPPING, so that nicks and channel names can
// be compared the way the server compares them.
package irccase

import (
	"strings"

	"github.com/DanielOaks/go-idn/idna2003/stringprep"
	"golang.org/x/text/secure/precis"
)

// MappingType identifies a supported IRC casemapping.
type MappingType int

const (
	// NONE applies no folding.
	NONE MappingType = iota

	// ASCII folds only a-z, per the "ascii" casemapping.
	ASCII

	// RFC1459 additionally folds []\^ to {}|~.
	RFC1459

	// RFC3454 applies UTF-8 nameprep casefolding.
	RFC3454

	// RFC7613 applies the PRECIS UsernameCaseMapped profile.
	RFC7613
)

// Mappings maps ISUPPORT CASEMAPPING tokens to MappingTypes.
var Mappings = map[string]MappingType{
	"ascii":   ASCII,
	"rfc1459": RFC1459,
	"rfc3454": RFC3454,
	"rfc7613": RFC7613,
}

// rfc1459Fold folds the extra chars the rfc1459 mapping treats as case
// pairs; a-z are already handled by the ASCII fold.
func rfc1459Fold(r rune) rune {
	if '[' <= r && r <= ']' {
		r += '{' - '['
	}
	return r
}

// Casefold folds the input under the given mapping, or returns an error
// if the input is not valid in that mapping.
func Casefold(mapping MappingType, input string) (string, error) {
	switch mapping {
	case ASCII:
		return strings.ToLower(input), nil
	case RFC1459:
		return strings.Map(rfc1459Fold, strings.ToLower(input)), nil
	case RFC3454:
		return stringprep.Nameprep(input)
	case RFC7613:
		return precis.UsernameCaseMapped.CompareKey(input)
	default:
		return input, nil
	}
}

// Package normalize canonicalizes raw statement descriptions into the keys
// the cache and matcher look transactions up by.
package normalize

import (
	"regexp"
	"strings"
)

// EmptyKey is the sentinel returned for empty or whitespace-only
// descriptions. Sentinel keys are never cached or matched so unrelated
// blank-description transactions cannot collide.
const EmptyKey = "(empty)"

var (
	// Boilerplate phrases banks prepend to card transactions. Matched on
	// word boundaries so "pos" never eats into "deposit".
	boilerplatePattern = regexp.MustCompile(`\b(` + strings.Join([]string{
		`pos purchase`,
		`pos debit`,
		`pos`,
		`debit card purchase`,
		`debit purchase`,
		`checkcard purchase`,
		`checkcard`,
		`ach debit`,
		`ach credit`,
		`recurring payment`,
		`electronic withdrawal`,
		`visa purchase`,
		`web pmt`,
		`purchase authorized on`,
	}, `|`) + `)\b`)

	terminalPattern   = regexp.MustCompile(`\bterminal\s+[0-9a-z]+\b`)
	storeNumPattern   = regexp.MustCompile(`[#*]\s?\d+\b`)
	longDigitsPattern = regexp.MustCompile(`\b\d{4,}\b`)
	maskedCardPattern = regexp.MustCompile(`\b[x*]{2,}\d*\b`)
	datePattern       = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	stateCodes = map[string]bool{
		"al": true, "ak": true, "az": true, "ar": true, "ca": true, "co": true,
		"ct": true, "de": true, "fl": true, "ga": true, "hi": true, "id": true,
		"il": true, "in": true, "ia": true, "ks": true, "ky": true, "la": true,
		"me": true, "md": true, "ma": true, "mi": true, "mn": true, "ms": true,
		"mo": true, "mt": true, "ne": true, "nv": true, "nh": true, "nj": true,
		"nm": true, "ny": true, "nc": true, "nd": true, "oh": true, "ok": true,
		"or": true, "pa": true, "ri": true, "sc": true, "sd": true, "tn": true,
		"tx": true, "ut": true, "vt": true, "va": true, "wa": true, "wv": true,
		"wi": true, "wy": true, "dc": true,
	}
)

// Key canonicalizes a raw description. It is a pure function: same input,
// same output, no side effects. Cache and matcher correctness depend on that.
func Key(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if s == "" {
		return EmptyKey
	}

	s = boilerplatePattern.ReplaceAllString(s, " ")
	s = terminalPattern.ReplaceAllString(s, " ")
	s = storeNumPattern.ReplaceAllString(s, " ")
	s = datePattern.ReplaceAllString(s, " ")
	s = maskedCardPattern.ReplaceAllString(s, " ")
	s = longDigitsPattern.ReplaceAllString(s, " ")

	s = strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))

	s = stripTrailingLocation(s)

	if s == "" {
		return EmptyKey
	}
	return s
}

// stripTrailingLocation drops a trailing "city state-code" pair. Only the
// final token is checked against the state list; the preceding token is
// assumed to be the (often truncated) city name.
func stripTrailingLocation(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 3 {
		return s
	}

	last := tokens[len(tokens)-1]
	if !stateCodes[last] {
		return s
	}

	return strings.Join(tokens[:len(tokens)-2], " ")
}

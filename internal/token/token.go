// Package token interprets text decoded from a scanned QR card.
//
// A card payload is free text carrying a `qid=<value>` segment, delimited by
// any of `|`, `&` or `?`. Only the three difficulty cards are commands; every
// other payload is ignored so the scanner can keep running.
package token

import "strings"

// Marker prefixes the card identifier inside a payload.
const Marker = "qid="

// Delimiters separate payload segments.
const Delimiters = "|&?"

// Difficulty is a question tier. Zero means no tier is selected.
type Difficulty int

const (
	None Difficulty = iota
	Easy
	Medium
	Hard
)

// codes maps card identifiers to tiers. Matching is exact.
var codes = map[string]Difficulty{
	"qL1": Easy,
	"qL2": Medium,
	"qL3": Hard,
}

// Valid reports whether d is one of the three selectable tiers.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

// Code returns the card identifier for d, or "" for an invalid tier.
func (d Difficulty) Code() string {
	for code, tier := range codes {
		if tier == d {
			return code
		}
	}
	return ""
}

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return "none"
}

// Payload returns the canonical card payload for d, as printed on the cards.
func (d Difficulty) Payload() string {
	return "QUIZ|" + Marker + d.Code()
}

// Parse resolves decoded text to a difficulty tier. It returns false for
// anything that is not exactly one of the known cards.
func Parse(text string) (Difficulty, bool) {
	qid, ok := ExtractQID(text)
	if !ok {
		return None, false
	}
	d, ok := codes[qid]
	if !ok {
		return None, false
	}
	return d, true
}

// ExtractQID returns the value of the first `qid=` segment in text.
func ExtractQID(text string) (string, bool) {
	if !strings.Contains(text, Marker) {
		return "", false
	}
	segments := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(Delimiters, r)
	})
	for _, seg := range segments {
		if strings.HasPrefix(seg, Marker) {
			return seg[len(Marker):], true
		}
	}
	return "", false
}

// Package tokenizer provides text normalisation and tokenisation for the
// asset index. Normalisation lower-cases input and strips everything that is
// not a letter, digit, or space; tokenisation splits on whitespace and drops
// terms below a minimum length.
package tokenizer

import (
	"strings"
	"unicode"
)

// MinTokenLength is the default minimum length of a token. Single-character
// terms carry no signal for symbol or name lookup and are discarded.
const MinTokenLength = 2

// Normalize lower-cases text, replaces every non-letter, non-digit,
// non-whitespace rune with a space, collapses whitespace runs, and trims.
// It is pure and deterministic.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize normalises text and splits it into whitespace-delimited tokens of
// at least minLen runes. A minLen of zero or less falls back to
// MinTokenLength. Empty or too-short input yields an empty slice.
func Tokenize(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = MinTokenLength
	}
	fields := strings.Fields(Normalize(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minLen {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

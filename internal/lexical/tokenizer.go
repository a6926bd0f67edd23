package lexical

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase terms on any non-letter, non-digit
// boundary. No stemming or stop-word removal is applied.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

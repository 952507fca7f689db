package document

import "unicode"

// Token is one analyzed occurrence of a term within a field, at a
// 0-based token position.
type Token struct {
	Term     []byte
	Position int
}

// Analyze splits on ASCII whitespace and lowercases, the only analyzer the
// spec's core requires. Shaped like bluge's tokenizer/token-filter pipeline
// (github.com/blugelabs/bluge/analysis/tokenizer, analysis/token) but
// collapsed to the single default chain instead of a configurable stream of
// char-filters/tokenizers/token-filters, since richer analysis is an
// explicit Non-goal.
func Analyze(text string) []Token {
	var tokens []Token
	pos := 0
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		for i < len(runes) && isASCIISpace(runes[i]) {
			i++
		}
		start := i
		for i < len(runes) && !isASCIISpace(runes[i]) {
			i++
		}
		if i > start {
			word := make([]rune, i-start)
			for j, r := range runes[start:i] {
				word[j] = unicode.ToLower(r)
			}
			tokens = append(tokens, Token{Term: []byte(string(word)), Position: pos})
			pos++
		}
	}
	return tokens
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

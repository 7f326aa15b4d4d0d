package store

import (
	"strings"
	"unicode"
)

// TokenizeText splits text into lowercase index tokens.
// Alphanumeric runs become single tokens; runs of Han characters are
// emitted as overlapping bigrams so multi-script content stays
// searchable without a language-specific segmenter. Tokens shorter
// than two characters are dropped (single Han characters survive via
// the bigram pass).
func TokenizeText(text string) []string {
	return TokenizeTextMin(text, DefaultIndexConfig().MinTokenLength)
}

// TokenizeTextMin is TokenizeText with a caller-supplied minimum token
// length. The bigram pass for Han runs is unaffected by minLen.
func TokenizeTextMin(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = 1
	}

	var tokens []string

	var current strings.Builder
	var cjk []rune

	flushCurrent := func() {
		if current.Len() >= minLen {
			tokens = append(tokens, strings.ToLower(current.String()))
		}
		current.Reset()
	}
	flushCJK := func() {
		tokens = append(tokens, cjkBigrams(cjk)...)
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushCurrent()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			current.WriteRune(r)
		default:
			flushCurrent()
			flushCJK()
		}
	}
	flushCurrent()
	flushCJK()

	return tokens
}

// cjkBigrams emits overlapping character bigrams for a run of Han
// characters. A single character run is emitted as-is.
func cjkBigrams(runs []rune) []string {
	if len(runs) == 0 {
		return nil
	}
	if len(runs) == 1 {
		return []string{string(runs[0])}
	}
	out := make([]string, 0, len(runs)-1)
	for i := 0; i+1 < len(runs); i++ {
		out = append(out, string(runs[i:i+2]))
	}
	return out
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Keyword matches a whole word or phrase. A trailing "*" in the source
// pattern turns the last word into a prefix match.
type Keyword struct {
	words  []string
	prefix bool
}

func Parse(pattern string) Keyword {
	prefix := strings.HasSuffix(pattern, "*")

	return Keyword{
		words:  Tokenize(strings.TrimSuffix(pattern, "*")),
		prefix: prefix,
	}
}

func ParseAll(patterns ...string) []Keyword {
	result := make([]Keyword, 0, len(patterns))
	for _, p := range patterns {
		result = append(result, Parse(p))
	}

	return result
}

// Match reports whether the keyword occurs in tokens produced by Tokenize.
func (k Keyword) Match(tokens []string) bool {
	n := len(k.words)
	if n == 0 {
		return false
	}

	for i := 0; i+n <= len(tokens); i++ {
		if k.matchAt(tokens[i : i+n]) {
			return true
		}
	}

	return false
}

func (k Keyword) matchAt(window []string) bool {
	last := len(k.words) - 1
	for j, word := range k.words {
		if j == last && k.prefix {
			if !strings.HasPrefix(window[j], word) {
				return false
			}
			continue
		}
		if window[j] != word {
			return false
		}
	}

	return true
}

func Any(keywords []Keyword, tokens []string) bool {
	for _, k := range keywords {
		if k.Match(tokens) {
			return true
		}
	}

	return false
}

// Tokenize lower-cases text, strips diacritics and splits on anything that is not a letter or digit.
func Tokenize(text string) []string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		folded = text
	}

	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

package match

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SimilarityThreshold is the minimum Levenshtein similarity (percent) for a
// token window to count as a fuzzy name match.
const SimilarityThreshold = 85.0

const maxWindow = 5

// MatchParagraph is the document-path matcher. It accepts a standalone word
// equal to the name, a verbatim phrase for multi-word names, and finally a
// fuzzy match of any 1-5 token window against a multi-word name.
func MatchParagraph(name, paragraph string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	lower := cases.Lower(language.Indonesian)
	nameLower := lower.String(name)
	paraLower := lower.String(paragraph)
	multiWord := len(strings.Fields(nameLower)) > 1

	words := strings.Fields(paraLower)
	for i, w := range words {
		words[i] = strings.TrimFunc(w, unicode.IsPunct)
	}

	if strings.Contains(paraLower, nameLower) {
		for _, w := range words {
			if w == nameLower {
				return true
			}
		}
		if multiWord {
			return true
		}
	}

	if !multiWord {
		return false
	}
	for i := range words {
		for j := i + 1; j <= len(words) && j <= i+maxWindow; j++ {
			phrase := strings.Join(words[i:j], " ")
			if Similarity(nameLower, phrase) > SimilarityThreshold {
				return true
			}
		}
	}
	return false
}

// Similarity returns the normalized Levenshtein similarity of two strings
// as a percentage.
func Similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return (1 - float64(d)/float64(maxLen)) * 100
}

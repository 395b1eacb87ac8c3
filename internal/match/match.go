// Package match decides whether a tracked person is mentioned in a text.
//
// News text is checked with a word-boundary regex on the primary name, then
// on each alias. A boundary hit is re-verified against a stricter pattern
// that requires whitespace, punctuation or the text edge on both sides.
// Documents use the looser fuzzy matcher in fuzzy.go.
package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var aliasSep = regexp.MustCompile(`[,;\n]+`)

// flank is the set of characters accepted around a name by the strict check.
const flank = `\s.,;:?!()"'`

// SplitAliases splits free-text aliases on commas, semicolons and newlines,
// trimming each entry and dropping empties.
func SplitAliases(raw string) []string {
	var out []string
	for _, a := range aliasSep.Split(raw, -1) {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Result reports which checks a name or alias passed.
type Result struct {
	NameBoundary  bool
	NameStrict    bool
	AliasBoundary bool
	AliasStrict   bool
	Alias         string // alias that matched, if any
}

// Found reports whether the primary name or an alias passed the
// word-boundary check.
func (r Result) Found() bool {
	return r.NameBoundary || r.AliasBoundary
}

// Strict reports whether the boundary hit also survived the strict
// punctuation-boundary check.
func (r Result) Strict() bool {
	return r.NameStrict || r.AliasStrict
}

// Check runs the boundary and strict passes for a person against text.
// Aliases are consulted only when the primary name has no boundary match.
func Check(name string, aliases []string, text string) Result {
	var r Result
	name = strings.TrimSpace(name)
	if name == "" || text == "" {
		return r
	}

	if boundary(name).MatchString(text) {
		r.NameBoundary = true
		r.NameStrict = strict(name).MatchString(text)
		return r
	}

	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if boundary(alias).MatchString(text) {
			r.AliasBoundary = true
			r.Alias = alias
			r.AliasStrict = strict(alias).MatchString(text)
			break
		}
	}
	return r
}

// Mentioned reports whether name or one of its aliases appears in text as a
// whole word.
func Mentioned(name string, aliases []string, text string) bool {
	return Check(name, aliases, text).Found()
}

// Sentences returns the sentences of text (split on '.') that contain the
// name or one of the aliases, compared case-insensitively.
func Sentences(text, name string, aliases []string) []string {
	lower := cases.Lower(language.Indonesian)
	needles := []string{}
	if n := strings.TrimSpace(name); n != "" {
		needles = append(needles, lower.String(n))
	}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			needles = append(needles, lower.String(a))
		}
	}
	if len(needles) == 0 {
		return nil
	}

	var out []string
	for _, sentence := range strings.Split(text, ".") {
		s := lower.String(sentence)
		for _, n := range needles {
			if strings.Contains(s, n) {
				out = append(out, strings.TrimSpace(sentence))
				break
			}
		}
	}
	return out
}

func boundary(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `\b`)
}

func strict(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[` + flank + `])` + regexp.QuoteMeta(s) + `([` + flank + `]|$)`)
}

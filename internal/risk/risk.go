// Package risk holds the risk category and urgency vocabulary shared by the
// classifier, the store and the dashboard.
package risk

import (
	"fmt"
	"strings"
)

// Category is the categorical risk level of an analysis.
type Category string

const (
	Rendah Category = "RENDAH"
	Sedang Category = "SEDANG"
	Tinggi Category = "TINGGI"
	Kritis Category = "KRITIS"
)

// Categories lists every category from lowest to highest risk.
var Categories = []Category{Rendah, Sedang, Tinggi, Kritis}

// Urgency is the follow-up urgency derived from a category.
type Urgency string

const (
	Monitoring Urgency = "MONITORING"
	Perhatian  Urgency = "PERHATIAN"
	Segera     Urgency = "SEGERA"
	Darurat    Urgency = "DARURAT"
)

// Urgencies lists every urgency from least to most urgent.
var Urgencies = []Urgency{Monitoring, Perhatian, Segera, Darurat}

var urgencyByCategory = map[Category]Urgency{
	Rendah: Monitoring,
	Sedang: Perhatian,
	Tinggi: Segera,
	Kritis: Darurat,
}

// CategoryForScore maps a 0-100 score onto a category:
// [0,31) RENDAH, [31,61) SEDANG, [61,86) TINGGI, [86,100] KRITIS.
func CategoryForScore(score int) Category {
	switch {
	case score >= 86:
		return Kritis
	case score >= 61:
		return Tinggi
	case score >= 31:
		return Sedang
	default:
		return Rendah
	}
}

// UrgencyFor returns the fixed urgency for a category. Unknown categories
// are treated as RENDAH.
func UrgencyFor(c Category) Urgency {
	if u, ok := urgencyByCategory[c]; ok {
		return u
	}
	return Monitoring
}

// ParseCategory normalizes free text into a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := urgencyByCategory[c]
	return c, ok
}

// ClampScore bounds a score to 0-100.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Percentage formats a score the way records store it, e.g. "75%".
func Percentage(score int) string {
	return fmt.Sprintf("%d%%", score)
}

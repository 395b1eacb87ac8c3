// Package report composes a Markdown risk digest from stored analysis
// records.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

const summaryLimit = 280

// Digest is a composed report.
type Digest struct {
	GeneratedAt time.Time
	Total       int
	TLDR        string
	Body        string
}

// Markdown returns the full document.
func (d *Digest) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Laporan Risiko Tokoh\n\n_Dibuat %s, %d analisis._\n\n", d.GeneratedAt.Format("02 January 2006 15:04"), d.Total)
	b.WriteString("## TL;DR\n\n")
	b.WriteString(d.TLDR)
	b.WriteString("\n\n---\n\n")
	b.WriteString(d.Body)
	b.WriteString("\n")
	return b.String()
}

// Compose builds the digest. Sections run from KRITIS down to RENDAH and
// list records by descending score.
func Compose(records []database.AnalysisRecord, now time.Time) *Digest {
	d := &Digest{GeneratedAt: now, Total: len(records)}
	if len(records) == 0 {
		d.TLDR = "- Belum ada hasil analisis."
		d.Body = "Tidak ada data untuk dilaporkan."
		return d
	}

	byCategory := make(map[risk.Category][]database.AnalysisRecord)
	for _, r := range records {
		cat := r.Category
		if _, ok := risk.ParseCategory(string(cat)); !ok {
			cat = risk.CategoryForScore(r.Score)
		}
		byCategory[cat] = append(byCategory[cat], r)
	}

	d.TLDR = tldr(records, byCategory)

	var sections []string
	for i := len(risk.Categories) - 1; i >= 0; i-- {
		cat := risk.Categories[i]
		list := byCategory[cat]
		if len(list) == 0 {
			continue
		}
		slices.SortStableFunc(list, func(a, b database.AnalysisRecord) int { return b.Score - a.Score })
		sections = append(sections, section(cat, list))
	}
	d.Body = strings.Join(sections, "\n\n---\n\n")
	return d
}

func tldr(records []database.AnalysisRecord, byCategory map[risk.Category][]database.AnalysisRecord) string {
	var bullets []string
	for i := len(risk.Categories) - 1; i >= 0; i-- {
		cat := risk.Categories[i]
		if n := len(byCategory[cat]); n > 0 {
			bullets = append(bullets, fmt.Sprintf("- **%s** (%s): %d analisis", cat, risk.UrgencyFor(cat), n))
		}
	}

	top := records[0]
	for _, r := range records[1:] {
		if r.Score > top.Score {
			top = r
		}
	}
	bullets = append(bullets, fmt.Sprintf("- Risiko tertinggi: **%s** dengan skor %d (%s)", top.PersonName, top.Score, top.Category))
	return strings.Join(bullets, "\n")
}

func section(cat risk.Category, list []database.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", cat)
	for _, r := range list {
		fmt.Fprintf(&b, "\n### %s", r.PersonName)
		if r.Position != "" {
			fmt.Fprintf(&b, " (%s)", r.Position)
		}
		fmt.Fprintf(&b, "\n\n- Skor: %d (%s)\n- Urgensi: %s\n", r.Score, r.Percentage, r.Urgency)
		if len(r.Factors) > 0 {
			fmt.Fprintf(&b, "- Faktor risiko: %s\n", strings.Join(r.Factors, ", "))
		}
		if r.URL != nil && *r.URL != "" {
			label := *r.URL
			if r.Source != nil && *r.Source != "" {
				label = *r.Source
			}
			fmt.Fprintf(&b, "- Sumber: [%s](%s)\n", label, *r.URL)
		} else if r.Source != nil && *r.Source != "" {
			fmt.Fprintf(&b, "- Sumber: %s\n", *r.Source)
		}
		if s := truncate(r.Summary, summaryLimit); s != "" {
			fmt.Fprintf(&b, "\n%s\n", s)
		}
		if r.Recommendation != "" {
			fmt.Fprintf(&b, "\n**Rekomendasi:** %s\n", r.Recommendation)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

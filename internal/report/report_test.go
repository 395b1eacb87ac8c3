package report

import (
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

func ptr(s string) *string { return &s }

var now = time.Date(2025, 7, 10, 9, 30, 0, 0, time.UTC)

func TestCompose(t *testing.T) {
	records := []database.AnalysisRecord{
		{PersonName: "Ani Lestari", Score: 20, Percentage: "20%", Category: risk.Rendah, Urgency: risk.Monitoring, Summary: "Imbauan menjaga ketertiban"},
		{
			PersonName: "Joko Widodo", Position: "Presiden", Score: 90, Percentage: "90%",
			Category: risk.Kritis, Urgency: risk.Darurat, Factors: []string{"Mobilisasi massa", "Provokasi"},
			Summary: "Seruan mobilisasi", Recommendation: "Lakukan dialog",
			Source: ptr("Kompas"), URL: ptr("https://news.test/demo"),
		},
		{PersonName: "Budi Santoso", Score: 88, Percentage: "88%", Category: risk.Kritis, Urgency: risk.Darurat},
	}

	d := Compose(records, now)
	out := d.Markdown()

	if !strings.Contains(d.TLDR, "**KRITIS** (DARURAT): 2 analisis") {
		t.Errorf("TL;DR missing category count:\n%s", d.TLDR)
	}
	if !strings.Contains(d.TLDR, "Risiko tertinggi: **Joko Widodo** dengan skor 90") {
		t.Errorf("TL;DR missing top risk:\n%s", d.TLDR)
	}

	kritis := strings.Index(out, "## KRITIS")
	rendah := strings.Index(out, "## RENDAH")
	if kritis < 0 || rendah < 0 || kritis > rendah {
		t.Errorf("sections out of order:\n%s", out)
	}
	if strings.Contains(out, "## SEDANG") {
		t.Error("empty categories should be omitted")
	}
	if strings.Index(out, "### Joko Widodo") > strings.Index(out, "### Budi Santoso") {
		t.Error("records should be ordered by score within a section")
	}
	if !strings.Contains(out, "- Sumber: [Kompas](https://news.test/demo)") {
		t.Errorf("missing source link:\n%s", out)
	}
	if !strings.Contains(out, "- Faktor risiko: Mobilisasi massa, Provokasi") {
		t.Error("missing risk factors")
	}
}

func TestComposeEmpty(t *testing.T) {
	d := Compose(nil, now)
	if d.Total != 0 || !strings.Contains(d.Markdown(), "Belum ada hasil analisis") {
		t.Errorf("unexpected empty digest:\n%s", d.Markdown())
	}
}

func TestComposeRepairsUnknownCategory(t *testing.T) {
	d := Compose([]database.AnalysisRecord{{PersonName: "X", Score: 70, Category: "??"}}, now)
	if !strings.Contains(d.Body, "## TINGGI") {
		t.Errorf("unknown category should fall back to the score:\n%s", d.Body)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(strings.Repeat("a", 300), 10); got != "aaaaaaaaaa..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("  pendek ", 10); got != "pendek" {
		t.Errorf("truncate = %q", got)
	}
}

package classify

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/TobiSchelling/tokohwatch/internal/llm"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

// responseKeys are the fields that mark an object as an assessment.
var responseKeys = []string{"ringkasan", "skor_risiko", "kategori"}

// ParseResponse extracts the raw assessment object from backend output,
// tolerating prose around it and markdown fences. Returns nil when no
// object carrying an assessment field can be found.
func ParseResponse(text string) map[string]any {
	raw := llm.ParseJSONResponse(text, responseKeys...)
	if raw == nil {
		return nil
	}
	for _, k := range responseKeys {
		if _, ok := raw[k]; ok {
			return raw
		}
	}
	return nil
}

// Normalize turns a raw assessment into a Record. Missing or empty fields
// get named defaults, risk factors are always a non-empty list and a
// missing or unknown category is derived from the score. Urgency is
// cleared.
func Normalize(raw map[string]any, p Person) *Record {
	score := risk.ClampScore(getInt(raw, "skor_risiko"))

	rec := &Record{
		Name:           p.Name,
		Position:       p.Position,
		Summary:        getString(raw, "ringkasan", defaultSummary),
		Score:          score,
		Percentage:     getString(raw, "persentase_kerawanan", risk.Percentage(score)),
		Factors:        getStrings(raw, "faktor_risiko"),
		Recommendation: getString(raw, "rekomendasi", defaultRecommendation),
	}

	if c, ok := risk.ParseCategory(getString(raw, "kategori", "")); ok {
		rec.Category = c
	} else {
		rec.Category = risk.CategoryForScore(score)
	}
	if len(rec.Factors) == 0 {
		rec.Factors = []string{defaultFactor}
	}
	rec.Urgency = ""
	return rec
}

func getString(m map[string]any, key, fallback string) string {
	var s string
	switch v := m[key].(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func getInt(m map[string]any, key string) int {
	switch n := m[key].(type) {
	case float64:
		return int(math.Round(n))
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(math.Round(f))
		}
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(math.Round(f))
		}
	}
	return 0
}

func getStrings(m map[string]any, key string) []string {
	var out []string
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package classify

import (
	"fmt"

	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

// Failure names why a record carries default values instead of a real
// assessment.
type Failure string

const (
	FailureNone    Failure = ""
	FailureTimeout Failure = "timeout"
	FailureHTTP    Failure = "http"
	FailureError   Failure = "error"
	FailureParse   Failure = "parse"
)

const (
	defaultSummary        = "Tidak ada ringkasan tersedia"
	defaultFactor         = "Tidak ada faktor risiko teridentifikasi"
	defaultRecommendation = "Tidak ada rekomendasi tersedia"
)

// Person is the subject of a classification.
type Person struct {
	Name     string
	Aliases  []string
	Position string
}

// Record is the canonical risk assessment of one text for one person.
// Urgency is left empty here; the store derives it from Category on save.
type Record struct {
	Name           string        `json:"nama"`
	Position       string        `json:"jabatan"`
	Summary        string        `json:"ringkasan"`
	Score          int           `json:"skor_risiko"`
	Percentage     string        `json:"persentase_kerawanan"`
	Category       risk.Category `json:"kategori"`
	Factors        []string      `json:"faktor_risiko"`
	Recommendation string        `json:"rekomendasi"`
	Urgency        risk.Urgency  `json:"urgensi"`
	NameNotFound   bool          `json:"name_not_found,omitempty"`
	Failure        Failure       `json:"failure,omitempty"`
}

// Failed reports whether the record stands in for a failed request.
func (r *Record) Failed() bool {
	return r.Failure != FailureNone
}

func (r *Record) clone() *Record {
	c := *r
	c.Factors = append([]string(nil), r.Factors...)
	return &c
}

// NotFound is the record for a person who does not appear in the text.
func NotFound(p Person) *Record {
	return &Record{
		Name:           p.Name,
		Position:       p.Position,
		Summary:        fmt.Sprintf("Tokoh '%s' tidak memiliki pernyataan atau tindakan dalam berita ini karena nama tokoh tidak ditemukan dalam konten berita.", p.Name),
		Percentage:     risk.Percentage(0),
		Category:       risk.Rendah,
		Factors:        []string{"Nama tidak ditemukan dalam berita"},
		Recommendation: "Tidak ada rekomendasi karena tokoh tidak ada dalam berita",
		Urgency:        risk.Monitoring,
		NameNotFound:   true,
	}
}

func failed(p Person, kind Failure, summary, factor, recommendation string) *Record {
	return &Record{
		Name:           p.Name,
		Position:       p.Position,
		Summary:        summary,
		Percentage:     risk.Percentage(0),
		Category:       risk.Rendah,
		Factors:        []string{factor},
		Recommendation: recommendation,
		Failure:        kind,
	}
}

func parseFailed(p Person) *Record {
	return failed(p, FailureParse,
		"Tidak dapat mengekstrak analisis yang valid dari respons API",
		"Error parsing response", "Coba lagi nanti")
}

func timedOut(p Person) *Record {
	return failed(p, FailureTimeout,
		fmt.Sprintf("API request timed out for %s", p.Name),
		"Timeout", "Coba lagi nanti")
}

func httpFailed(p Person) *Record {
	return failed(p, FailureHTTP,
		fmt.Sprintf("API request failed for %s", p.Name),
		"Error API", "Coba lagi nanti")
}

func errored(p Person, err error) *Record {
	return failed(p, FailureError,
		fmt.Sprintf("Error: %v", err),
		"Error", "Periksa koneksi")
}

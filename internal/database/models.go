package database

import "github.com/TobiSchelling/tokohwatch/internal/risk"

// Person is a tracked public figure (tokoh).
type Person struct {
	ID           int64  `json:"id"`
	Name         string `json:"nama"`
	Alias        string `json:"alias"` // free text, split with match.SplitAliases
	Gender       string `json:"jenis_kelamin"`
	MemberNumber string `json:"kta"`
	Position     string `json:"jabatan"`
	Level        string `json:"tingkat"`
}

// AnalysisRecord is a persisted risk assessment. Its identity is
// (PersonName, Text, TaskID), where Text is the fingerprint of the analyzed
// text.
type AnalysisRecord struct {
	ID             int64         `json:"id"`
	TaskID         *int64        `json:"task_id"`
	PersonName     string        `json:"nama"`
	Position       string        `json:"jabatan"`
	Text           string        `json:"paragraf"`
	Summary        string        `json:"ringkasan"`
	Score          int           `json:"skor_risiko"`
	Percentage     string        `json:"persentase_kerawanan"`
	Category       risk.Category `json:"kategori"`
	Factors        []string      `json:"faktor_risiko"`
	Recommendation string        `json:"rekomendasi"`
	Urgency        risk.Urgency  `json:"urgensi"`
	Source         *string       `json:"source"`
	URL            *string       `json:"url"`
	SearchKeyword  *string       `json:"kata_kunci"`
	AddedAt        string        `json:"tanggal_tambah"`
}

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	// TaskFailed is reserved for stored tasks whose query can never run.
	// No transition leads to it and RunTask keeps a task active after a
	// failed search.
	TaskFailed    TaskStatus = "failed"
)

// Task is a recurring search-and-analyze job.
type Task struct {
	ID           int64      `json:"id"`
	Query        string     `json:"query"`
	FromDate     string     `json:"from_date"`
	ToDate       *string    `json:"to_date"`
	IncludeToday bool       `json:"include_today"`
	PersonIDs    []int64    `json:"person_ids"`
	Status       TaskStatus `json:"status"`
	LastRunAt    *string    `json:"last_run_at"`
	LastRunID    *string    `json:"last_run_id"`
	ResultsCount int        `json:"results_count"`
	CreatedAt    string     `json:"created_at"`
}

// Stats summarizes the stored analysis records for the dashboard.
type Stats struct {
	TotalRecords    int                       `json:"total_records"`
	UniqueTexts     int                       `json:"total_berita"`
	UniquePeople    int                       `json:"total_tokoh"`
	CategoryCounts  map[risk.Category]int     `json:"kategori_count"`
	CategoryPercent map[risk.Category]float64 `json:"kategori_pct"`
	UrgencyCounts   map[risk.Urgency]int      `json:"urgensi_count"`
	AverageScore    float64                   `json:"avg_skor"`
}

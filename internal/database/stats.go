package database

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

// Stats aggregates every stored record.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{
		CategoryCounts:  make(map[risk.Category]int),
		CategoryPercent: make(map[risk.Category]float64),
		UrgencyCounts:   make(map[risk.Urgency]int),
	}
	for _, c := range risk.Categories {
		s.CategoryCounts[c] = 0
		s.CategoryPercent[c] = 0
	}
	for _, u := range risk.Urgencies {
		s.UrgencyCounts[u] = 0
	}

	var avg *float64
	err := db.conn.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT text), COUNT(DISTINCT person_name), AVG(risk_score)
		FROM analysis_records`).Scan(&s.TotalRecords, &s.UniqueTexts, &s.UniquePeople, &avg)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	if avg != nil {
		s.AverageScore = math.Round(*avg*10) / 10
	}

	if err := db.countBy("category", func(k string, n int) {
		s.CategoryCounts[risk.Category(k)] = n
	}); err != nil {
		return nil, err
	}
	if err := db.countBy("urgency", func(k string, n int) {
		s.UrgencyCounts[risk.Urgency(k)] = n
	}); err != nil {
		return nil, err
	}

	total := 0
	for _, c := range risk.Categories {
		total += s.CategoryCounts[c]
	}
	if total > 0 {
		for _, c := range risk.Categories {
			s.CategoryPercent[c] = math.Round(float64(s.CategoryCounts[c])/float64(total)*1000) / 10
		}
	}
	return s, nil
}

func (db *DB) countBy(column string, fn func(key string, n int)) error {
	query, args, err := psql.Select(column, "COUNT(*)").From("analysis_records").GroupBy(column).ToSql()
	if err != nil {
		return fmt.Errorf("building %s counts: %w", column, err)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

// ExportJSON writes every record, newest first, as an indented JSON array.
// Returns the number of records written.
func (db *DB) ExportJSON(w io.Writer) (int, error) {
	records, err := db.ListRecords(RecordFilter{})
	if err != nil {
		return 0, err
	}
	if records == nil {
		records = []AnalysisRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("encoding export: %w", err)
	}
	return len(records), nil
}

// RecomputeUrgency re-derives urgency for every record whose stored value
// disagrees with its category. Returns the number of records changed.
func (db *DB) RecomputeUrgency() (int, error) {
	records, err := db.ListRecords(RecordFilter{})
	if err != nil {
		return 0, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	updated := 0
	for i := range records {
		rec := &records[i]
		before := rec.Urgency
		ApplyUrgency(rec)
		if rec.Urgency == before {
			continue
		}
		query, args, err := psql.Update("analysis_records").
			Set("urgency", string(rec.Urgency)).
			Set("category", string(rec.Category)).
			Where("id = ?", rec.ID).
			ToSql()
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return 0, fmt.Errorf("updating record %d: %w", rec.ID, err)
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

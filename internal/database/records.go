package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

// FingerprintLength is how many leading characters of an analyzed text
// identify it. Two texts sharing this prefix are treated as the same
// statement for the same person.
const FingerprintLength = 1000

var recordColumns = []string{
	"id", "task_id", "person_name", "jabatan", "text", "summary", "risk_score",
	"risk_percentage", "category", "risk_factors", "recommendation", "urgency",
	"source", "url", "search_keyword", "added_at",
}

// Fingerprint returns the identity prefix of text.
func Fingerprint(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= FingerprintLength {
		return text
	}
	return string(runes[:FingerprintLength])
}

// ApplyUrgency sets rec.Urgency from rec.Category, replacing whatever was
// there. Every write path calls it so the two never disagree.
func ApplyUrgency(rec *AnalysisRecord) {
	if c, ok := risk.ParseCategory(string(rec.Category)); ok {
		rec.Category = c
	}
	rec.Urgency = risk.UrgencyFor(rec.Category)
}

// RecordFilter narrows ListRecords. Zero values match everything.
type RecordFilter struct {
	Person   string
	Category risk.Category
	TaskID   *int64
	Limit    uint64
}

// UpsertRecord creates the record or updates the existing one with the
// same (person, fingerprint, task). Urgency is recomputed and added_at is
// stamped on every write. Returns the record ID.
func (db *DB) UpsertRecord(rec *AnalysisRecord) (int64, error) {
	rec.Text = Fingerprint(rec.Text)
	if rec.PersonName == "" || rec.Text == "" {
		return 0, fmt.Errorf("record needs a person and text")
	}
	ApplyUrgency(rec)
	if rec.Percentage == "" {
		rec.Percentage = risk.Percentage(rec.Score)
	}
	rec.AddedAt = db.timestamp()

	factors := rec.Factors
	if factors == nil {
		factors = []string{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return 0, fmt.Errorf("encoding risk factors: %w", err)
	}

	var taskID int64
	if rec.TaskID != nil {
		taskID = *rec.TaskID
	}

	query, args, err := psql.Insert("analysis_records").
		Columns("task_id", "person_name", "jabatan", "text", "summary", "risk_score",
			"risk_percentage", "category", "risk_factors", "recommendation", "urgency",
			"source", "url", "search_keyword", "added_at").
		Values(taskID, rec.PersonName, rec.Position, rec.Text, rec.Summary, rec.Score,
			rec.Percentage, string(rec.Category), string(factorsJSON), rec.Recommendation, string(rec.Urgency),
			rec.Source, rec.URL, rec.SearchKeyword, rec.AddedAt).
		Suffix("ON CONFLICT(person_name, text, task_id) DO UPDATE SET").
		Suffix("jabatan = excluded.jabatan, summary = excluded.summary, risk_score = excluded.risk_score,").
		Suffix("risk_percentage = excluded.risk_percentage, category = excluded.category,").
		Suffix("risk_factors = excluded.risk_factors, recommendation = excluded.recommendation,").
		Suffix("urgency = excluded.urgency, source = excluded.source, url = excluded.url,").
		Suffix("search_keyword = excluded.search_keyword, added_at = excluded.added_at").
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building record upsert: %w", err)
	}

	if err := db.conn.QueryRow(query, args...).Scan(&rec.ID); err != nil {
		return 0, fmt.Errorf("upserting record for %s: %w", rec.PersonName, err)
	}
	return rec.ID, nil
}

// GetRecord returns a record by ID or ErrNotFound.
func (db *DB) GetRecord(id int64) (*AnalysisRecord, error) {
	query, args, err := psql.Select(recordColumns...).From("analysis_records").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building record query: %w", err)
	}
	rec, err := scanRecord(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRecords returns matching records, newest first.
func (db *DB) ListRecords(f RecordFilter) ([]AnalysisRecord, error) {
	b := psql.Select(recordColumns...).From("analysis_records").
		OrderBy("added_at DESC", "id DESC")
	if f.Person != "" {
		b = b.Where(sq.Eq{"person_name": f.Person})
	}
	if f.Category != "" {
		b = b.Where(sq.Eq{"category": string(f.Category)})
	}
	if f.TaskID != nil {
		b = b.Where(sq.Eq{"task_id": *f.TaskID})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building records query: %w", err)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountTaskRecords returns how many records a task has produced.
func (db *DB) CountTaskRecords(taskID int64) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM analysis_records WHERE task_id = ?", taskID).Scan(&n)
	return n, err
}

func scanRecord(s scanner) (*AnalysisRecord, error) {
	var (
		rec         AnalysisRecord
		taskID      int64
		category    string
		urgency     string
		factorsJSON string
	)
	if err := s.Scan(&rec.ID, &taskID, &rec.PersonName, &rec.Position, &rec.Text, &rec.Summary,
		&rec.Score, &rec.Percentage, &category, &factorsJSON, &rec.Recommendation, &urgency,
		&rec.Source, &rec.URL, &rec.SearchKeyword, &rec.AddedAt); err != nil {
		return nil, err
	}
	if taskID != 0 {
		rec.TaskID = &taskID
	}
	rec.Category = risk.Category(category)
	rec.Urgency = risk.Urgency(urgency)
	if err := json.Unmarshal([]byte(factorsJSON), &rec.Factors); err != nil || rec.Factors == nil {
		rec.Factors = []string{}
	}
	return &rec, nil
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var personColumns = []string{"id", "nama", "alias", "jenis_kelamin", "kta", "jabatan", "tingkat"}

// editableFields maps the field names accepted by UpdatePersonField to
// their columns.
var editableFields = map[string]string{
	"nama":          "nama",
	"alias":         "alias",
	"jenis_kelamin": "jenis_kelamin",
	"kta":           "kta",
	"jabatan":       "jabatan",
	"tingkat":       "tingkat",
}

// UpsertPerson inserts a person or updates the existing one with the same
// primary name. Returns the person's ID.
func (db *DB) UpsertPerson(p Person) (int64, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return 0, fmt.Errorf("person name is required")
	}
	now := db.timestamp()

	query, args, err := psql.Insert("people").
		Columns("nama", "alias", "jenis_kelamin", "kta", "jabatan", "tingkat", "created_at", "updated_at").
		Values(p.Name, p.Alias, p.Gender, p.MemberNumber, p.Position, p.Level, now, now).
		Suffix("ON CONFLICT(nama) DO UPDATE SET").
		Suffix("alias = excluded.alias, jenis_kelamin = excluded.jenis_kelamin, kta = excluded.kta,").
		Suffix("jabatan = excluded.jabatan, tingkat = excluded.tingkat, updated_at = excluded.updated_at").
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building person upsert: %w", err)
	}

	var id int64
	if err := db.conn.QueryRow(query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting person %s: %w", p.Name, err)
	}
	return id, nil
}

// ListPeople returns every tracked person ordered by name.
func (db *DB) ListPeople() ([]Person, error) {
	return db.queryPeople(psql.Select(personColumns...).From("people").OrderBy("nama ASC"))
}

// GetPeopleByIDs returns the people with the given IDs. Unknown IDs are
// ignored.
func (db *DB) GetPeopleByIDs(ids []int64) ([]Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return db.queryPeople(psql.Select(personColumns...).From("people").
		Where(sq.Eq{"id": ids}).OrderBy("nama ASC"))
}

// GetPerson returns a person by ID or ErrNotFound.
func (db *DB) GetPerson(id int64) (*Person, error) {
	return db.getPerson(sq.Eq{"id": id})
}

// GetPersonByName returns a person by primary name (case-insensitive) or
// ErrNotFound.
func (db *DB) GetPersonByName(name string) (*Person, error) {
	return db.getPerson(sq.Expr("nama = ? COLLATE NOCASE", strings.TrimSpace(name)))
}

// UpdatePersonField sets one editable field on a person.
func (db *DB) UpdatePersonField(id int64, field, value string) error {
	column, ok := editableFields[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}
	value = strings.TrimSpace(value)
	if column == "nama" && value == "" {
		return ErrEmptyName
	}

	query, args, err := psql.Update("people").
		Set(column, value).
		Set("updated_at", db.timestamp()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building person update: %w", err)
	}
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating person %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllPeople removes every tracked person. Analysis records are kept.
func (db *DB) DeleteAllPeople() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM people")
	if err != nil {
		return 0, fmt.Errorf("deleting people: %w", err)
	}
	return res.RowsAffected()
}

// CountPeople returns the number of tracked people.
func (db *DB) CountPeople() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM people").Scan(&n)
	return n, err
}

func (db *DB) getPerson(where sq.Sqlizer) (*Person, error) {
	query, args, err := psql.Select(personColumns...).From("people").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building person query: %w", err)
	}
	p, err := scanPerson(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) queryPeople(b sq.SelectBuilder) ([]Person, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building people query: %w", err)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*Person, error) {
	var p Person
	if err := s.Scan(&p.ID, &p.Name, &p.Alias, &p.Gender, &p.MemberNumber, &p.Position, &p.Level); err != nil {
		return nil, err
	}
	return &p, nil
}

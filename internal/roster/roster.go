// Package roster imports tracked people from CSV or YAML files.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/tokohwatch/internal/database"
)

// headerAliases maps accepted column headings onto person fields.
var headerAliases = map[string]string{
	"nama":          "nama",
	"name":          "nama",
	"alias":         "alias",
	"aliases":       "alias",
	"jenis_kelamin": "jenis_kelamin",
	"jenis kelamin": "jenis_kelamin",
	"gender":        "jenis_kelamin",
	"kta":           "kta",
	"jabatan":       "jabatan",
	"position":      "jabatan",
	"tingkat":       "tingkat",
	"level":         "tingkat",
}

// Entry is one person as written in a YAML roster.
type Entry struct {
	Name     string `yaml:"nama"`
	Alias    string `yaml:"alias"`
	Gender   string `yaml:"jenis_kelamin"`
	KTA      string `yaml:"kta"`
	Position string `yaml:"jabatan"`
	Level    string `yaml:"tingkat"`
}

// Result counts what an import did.
type Result struct {
	Imported int
	Updated  int
	Skipped  int
	Errors   int
}

// ParseCSV reads people from CSV with a header row. Rows without a name
// are dropped.
func ParseCSV(r io.Reader) ([]database.Person, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	columns := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if field, ok := headerAliases[key]; ok {
			columns[field] = i
		}
	}
	if _, ok := columns["nama"]; !ok {
		return nil, errors.New("roster has no nama column")
	}

	var people []database.Person
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		get := func(field string) string {
			i, ok := columns[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		p := database.Person{
			Name:         get("nama"),
			Alias:        get("alias"),
			Gender:       get("jenis_kelamin"),
			MemberNumber: get("kta"),
			Position:     get("jabatan"),
			Level:        get("tingkat"),
		}
		if p.Name != "" {
			people = append(people, p)
		}
	}
	return people, nil
}

// ParseYAML reads people from a YAML list of entries.
func ParseYAML(r io.Reader) ([]database.Person, error) {
	var entries []Entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing yaml roster: %w", err)
	}
	var people []database.Person
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		people = append(people, database.Person{
			Name:         strings.TrimSpace(e.Name),
			Alias:        strings.TrimSpace(e.Alias),
			Gender:       strings.TrimSpace(e.Gender),
			MemberNumber: strings.TrimSpace(e.KTA),
			Position:     strings.TrimSpace(e.Position),
			Level:        strings.TrimSpace(e.Level),
		})
	}
	return people, nil
}

// ParseFile picks the parser from the file extension.
func ParseFile(path string) ([]database.Person, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(f)
	case ".yaml", ".yml":
		return ParseYAML(f)
	default:
		return nil, fmt.Errorf("unsupported roster format %q (use .csv, .yaml or .yml)", filepath.Ext(path))
	}
}

// Import upserts people by primary name. Empty fields in the import keep
// the stored value of an existing person.
func Import(db *database.DB, people []database.Person) Result {
	var r Result
	for _, p := range people {
		if strings.TrimSpace(p.Name) == "" {
			r.Skipped++
			continue
		}

		existing, err := db.GetPersonByName(p.Name)
		switch {
		case err == nil:
			p = merge(*existing, p)
		case !errors.Is(err, database.ErrNotFound):
			log.Printf("Error looking up %s: %v", p.Name, err)
			r.Errors++
			continue
		}

		if _, err := db.UpsertPerson(p); err != nil {
			log.Printf("Error importing %s: %v", p.Name, err)
			r.Errors++
			continue
		}
		if existing != nil {
			r.Updated++
		} else {
			r.Imported++
		}
	}
	log.Printf("Roster import: %d imported, %d updated, %d skipped, %d errors",
		r.Imported, r.Updated, r.Skipped, r.Errors)
	return r
}

func merge(old, update database.Person) database.Person {
	pick := func(n, o string) string {
		if n != "" {
			return n
		}
		return o
	}
	return database.Person{
		Name:         old.Name,
		Alias:        pick(update.Alias, old.Alias),
		Gender:       pick(update.Gender, old.Gender),
		MemberNumber: pick(update.MemberNumber, old.MemberNumber),
		Position:     pick(update.Position, old.Position),
		Level:        pick(update.Level, old.Level),
	}
}

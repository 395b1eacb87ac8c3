// Package pipeline composes fetching, extraction, name matching,
// classification and persistence into the analysis entry points used by the
// CLI, the dashboard and the task scheduler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/classify"
	"github.com/TobiSchelling/tokohwatch/internal/collect"
	"github.com/TobiSchelling/tokohwatch/internal/config"
	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/extract"
	"github.com/TobiSchelling/tokohwatch/internal/fetch"
	"github.com/TobiSchelling/tokohwatch/internal/llm"
	"github.com/TobiSchelling/tokohwatch/internal/match"
	"github.com/TobiSchelling/tokohwatch/internal/progress"
)

const (
	defaultImmediateArticles = 3
	noPosition               = "Tidak ada jabatan"
)

var (
	// ErrPersonNotMentioned is matched by *MentionError.
	ErrPersonNotMentioned = errors.New("person not mentioned")
	ErrPersonNotFound     = errors.New("person not found")
	ErrNoPeople           = errors.New("no people found in the database")
)

// MentionError reports that a person does not appear in an article. Its
// message is shown to dashboard users as is.
type MentionError struct {
	Person string
	// ByClassifier is set when the matcher passed but the classifier's
	// own gate found no mention.
	ByClassifier bool
}

func (e *MentionError) Error() string {
	if e.ByClassifier {
		return fmt.Sprintf("Tokoh '%s' tidak memiliki pernyataan atau tindakan dalam berita ini karena nama tokoh tidak ditemukan dalam konten berita.", e.Person)
	}
	return fmt.Sprintf("Tidak ada pernyataan atau tindakan dari tokoh '%s' yang dianalisis karena tidak ditemukan dalam berita.", e.Person)
}

func (e *MentionError) Is(target error) bool {
	return target == ErrPersonNotMentioned
}

// PageFetcher downloads article HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Searcher finds candidate articles for a background task.
type Searcher interface {
	Search(ctx context.Context, q collect.Query) ([]collect.Article, error)
}

// Article identifies a page to analyze and its provenance.
type Article struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Keyword string `json:"search_query"`
}

// Analysis is the outcome for one person.
type Analysis struct {
	Person   database.Person  `json:"person"`
	Record   *classify.Record `json:"analysis"`
	RecordID int64            `json:"result_id,omitempty"`
	Method   string           `json:"method,omitempty"`
	// Warning is set when the analysis was computed but not stored.
	Warning string `json:"warning,omitempty"`
}

// BatchResult collects the outcomes of a multi-person run.
type BatchResult struct {
	Analyses []Analysis `json:"results"`
	Method   string     `json:"method,omitempty"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	DB                *database.DB
	Fetcher           PageFetcher
	Extractor         *extract.Extractor
	Classifier        *classify.Client
	Searcher          Searcher
	Progress          *progress.Tracker
	ImmediateArticles int
}

// Pipeline runs analyses. It is not safe for overlapping use of the same
// progress tracker.
type Pipeline struct {
	db         *database.DB
	fetcher    PageFetcher
	extractor  *extract.Extractor
	classifier *classify.Client
	searcher   Searcher
	progress   *progress.Tracker
	immediate  int
}

// New wires a pipeline from config. A nil cache gets an in-memory one.
func New(cfg *config.Config, db *database.DB, cache classify.Cache, tracker *progress.Tracker) *Pipeline {
	provider := llm.CreateProvider(cfg.Classifier, cfg.ClassifierTimeout())
	if provider == nil {
		log.Println("No classification backend configured; analyses will return error records")
	}

	return NewWithDeps(Deps{
		DB: db,
		Fetcher: fetch.New(fetch.Options{
			Timeout:     time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			SlowTimeout: time.Duration(cfg.Fetch.SlowTimeoutSeconds) * time.Second,
			SlowDomains: cfg.Fetch.SlowDomains,
			UserAgent:   cfg.Fetch.UserAgent,
		}),
		Extractor: extract.New(cfg.Extract.MinLength),
		Classifier: classify.New(provider, cache, classify.Options{
			Timeout:     cfg.ClassifierTimeout(),
			Temperature: cfg.Classifier.Temperature,
			MaxTokens:   cfg.Classifier.MaxTokens,
		}),
		Searcher:          collect.NewSearcher(cfg),
		Progress:          tracker,
		ImmediateArticles: cfg.Tasks.ImmediateArticles,
	})
}

// NewWithDeps creates a pipeline from explicit collaborators.
func NewWithDeps(d Deps) *Pipeline {
	if d.Progress == nil {
		d.Progress = progress.New()
	}
	if d.ImmediateArticles <= 0 {
		d.ImmediateArticles = defaultImmediateArticles
	}
	return &Pipeline{
		db:         d.DB,
		fetcher:    d.Fetcher,
		extractor:  d.Extractor,
		classifier: d.Classifier,
		searcher:   d.Searcher,
		progress:   d.Progress,
		immediate:  d.ImmediateArticles,
	}
}

// Progress returns the tracker updated by AnalyzeDocument.
func (p *Pipeline) Progress() *progress.Tracker {
	return p.progress
}

// ImmediateArticles is how many articles a task run processes before
// handing the rest to the scheduler.
func (p *Pipeline) ImmediateArticles() int {
	return p.immediate
}

// Search runs a news search.
func (p *Pipeline) Search(ctx context.Context, q collect.Query) ([]collect.Article, error) {
	if p.searcher == nil {
		return nil, collect.ErrNoSources
	}
	return p.searcher.Search(ctx, q)
}

// AnalyzeOne analyzes an article for a single person. A persistence
// failure is reported through Analysis.Warning, not as an error.
func (p *Pipeline) AnalyzeOne(ctx context.Context, a Article, personID int64) (*Analysis, error) {
	person, err := p.db.GetPerson(personID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrPersonNotFound, personID)
	}
	if err != nil {
		return nil, err
	}

	content, err := p.load(ctx, a)
	if err != nil {
		return nil, err
	}

	an, err := p.assess(ctx, content.Content, *person, noPosition)
	if err != nil {
		return nil, err
	}
	an.Method = content.Method

	if an.Record.NameNotFound {
		return nil, &MentionError{Person: person.Name, ByClassifier: true}
	}
	p.persist(an, content.Content, a, nil)
	return an, nil
}

// AnalyzeAll fetches and extracts the article once, then analyzes it for
// every tracked person. People not mentioned are skipped and a failure for
// one person never stops the others.
func (p *Pipeline) AnalyzeAll(ctx context.Context, a Article) (*BatchResult, error) {
	people, err := p.db.ListPeople()
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	if len(people) == 0 {
		return nil, ErrNoPeople
	}

	content, err := p.load(ctx, a)
	if err != nil {
		return nil, err
	}

	result := p.analyzePeople(ctx, content.Content, a, people, nil)
	result.Method = content.Method
	log.Printf("Analyzed %s for %d people: %d results, %d skipped, %d errors",
		a.URL, len(people), len(result.Analyses), result.Skipped, result.Errors)
	return result, nil
}

// AnalyzeDocument associates each unique paragraph with the people it
// mentions using the fuzzy document matcher, then classifies and stores
// every pair. Progress is reported through the tracker.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, paragraphs []string) (*BatchResult, error) {
	people, err := p.db.ListPeople()
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	if len(people) == 0 {
		return nil, ErrNoPeople
	}

	type pair struct {
		paragraph string
		person    database.Person
	}
	var pairs []pair
	seen := make(map[string]struct{})
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if _, ok := seen[para]; ok {
			continue
		}
		seen[para] = struct{}{}
		for _, person := range people {
			if documentMentions(person, para) {
				pairs = append(pairs, pair{para, person})
			}
		}
	}

	p.progress.Start(len(pairs))
	defer p.progress.Complete()

	result := &BatchResult{}
	for _, pr := range pairs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p.progress.Increment("Analyzing for "+pr.person.Name, preview(pr.paragraph, 50))

		rec := p.classifier.Classify(ctx, pr.paragraph, classifyPerson(pr.person, "N/A"))
		an := &Analysis{Person: pr.person, Record: rec}
		if !p.persist(an, pr.paragraph, Article{}, nil) {
			result.Errors++
			continue
		}
		result.Analyses = append(result.Analyses, *an)
	}
	log.Printf("Document analysis: %d paragraphs, %d pairs, %d errors", len(seen), len(pairs), result.Errors)
	return result, nil
}

// load fetches and extracts an article, degrading to a title-only stub when
// no strategy finds content.
func (p *Pipeline) load(ctx context.Context, a Article) (*extract.Content, error) {
	if strings.TrimSpace(a.URL) == "" {
		return nil, errors.New("URL is required")
	}
	page, err := p.fetcher.Fetch(ctx, a.URL)
	if err != nil {
		log.Printf("Failed to fetch article from %s: %v", a.URL, err)
		return nil, fmt.Errorf("failed to fetch article: %w", err)
	}

	content, err := p.extractor.Extract(page.HTML, page.FinalURL)
	if err != nil {
		log.Printf("Using title-only mode for %s", a.URL)
		return extract.TitleOnly(a.Title, a.Source, a.URL), nil
	}
	return content, nil
}

// assess gates on the name matcher and classifies.
func (p *Pipeline) assess(ctx context.Context, text string, person database.Person, position string) (*Analysis, error) {
	aliases := match.SplitAliases(person.Alias)
	if !match.Mentioned(person.Name, aliases, text) {
		log.Printf("Skipping %s: not mentioned in article", person.Name)
		return nil, &MentionError{Person: person.Name}
	}
	rec := p.classifier.Classify(ctx, text, classifyPerson(person, position))
	return &Analysis{Person: person, Record: rec}, nil
}

func (p *Pipeline) analyzePeople(ctx context.Context, text string, a Article, people []database.Person, taskID *int64) *BatchResult {
	result := &BatchResult{}
	for _, person := range people {
		an, err := p.assess(ctx, text, person, noPosition)
		if err != nil || an.Record.NameNotFound {
			result.Skipped++
			continue
		}
		if !p.persist(an, text, a, taskID) {
			result.Errors++
			continue
		}
		result.Analyses = append(result.Analyses, *an)
	}
	return result
}

// persist stores the analysis and reports whether it was saved. Records
// standing in for failed classifications are never stored.
func (p *Pipeline) persist(an *Analysis, text string, a Article, taskID *int64) bool {
	if an.Record.Failed() {
		an.Warning = fmt.Sprintf("Analisis gagal (%s); hasil tidak disimpan", an.Record.Failure)
		log.Printf("Not storing failed analysis for %s: %s", an.Person.Name, an.Record.Failure)
		return false
	}

	stored := toStored(an.Record, an.Person, text, a, taskID)
	id, err := p.db.UpsertRecord(stored)
	if err != nil {
		an.Warning = "Analisis berhasil tetapi gagal disimpan: " + err.Error()
		log.Printf("Failed to store analysis for %s (%s): %v", an.Person.Name, a.URL, err)
		return false
	}
	an.RecordID = id
	an.Record.Category = stored.Category
	an.Record.Urgency = stored.Urgency
	return true
}

func toStored(rec *classify.Record, person database.Person, text string, a Article, taskID *int64) *database.AnalysisRecord {
	return &database.AnalysisRecord{
		TaskID:         taskID,
		PersonName:     person.Name,
		Position:       person.Position,
		Text:           text,
		Summary:        rec.Summary,
		Score:          rec.Score,
		Percentage:     rec.Percentage,
		Category:       rec.Category,
		Factors:        rec.Factors,
		Recommendation: rec.Recommendation,
		Urgency:        rec.Urgency,
		Source:         optional(a.Source),
		URL:            optional(a.URL),
		SearchKeyword:  optional(a.Keyword),
	}
}

func classifyPerson(p database.Person, fallbackPosition string) classify.Person {
	position := strings.TrimSpace(p.Position)
	if position == "" {
		position = fallbackPosition
	}
	return classify.Person{
		Name:     p.Name,
		Aliases:  match.SplitAliases(p.Alias),
		Position: position,
	}
}

func documentMentions(p database.Person, paragraph string) bool {
	if match.MatchParagraph(p.Name, paragraph) {
		return true
	}
	for _, alias := range match.SplitAliases(p.Alias) {
		if match.MatchParagraph(alias, paragraph) {
			return true
		}
	}
	return false
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs splits plain text on blank lines.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

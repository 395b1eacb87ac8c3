package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/tokohwatch/internal/classify"
	"github.com/TobiSchelling/tokohwatch/internal/collect"
	"github.com/TobiSchelling/tokohwatch/internal/database"
	"github.com/TobiSchelling/tokohwatch/internal/extract"
	"github.com/TobiSchelling/tokohwatch/internal/fetch"
	"github.com/TobiSchelling/tokohwatch/internal/llm"
	"github.com/TobiSchelling/tokohwatch/internal/progress"
	"github.com/TobiSchelling/tokohwatch/internal/risk"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Complete(_ context.Context, _ llm.Request) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

// stubFetcher serves fixed HTML for every URL.
type stubFetcher struct {
	html    string
	err     error
	calls   []string
	onFetch func()
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	s.calls = append(s.calls, url)
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Page{URL: url, FinalURL: url, HTML: s.html}, nil
}

type stubSearcher struct {
	articles []collect.Article
	err      error
	queries  []collect.Query
}

func (s *stubSearcher) Search(_ context.Context, q collect.Query) ([]collect.Article, error) {
	s.queries = append(s.queries, q)
	return s.articles, s.err
}

const criticalResponse = `Berikut hasilnya:
{"ringkasan": "Seruan mobilisasi massa", "skor_risiko": 90, "persentase_kerawanan": "90%", "kategori": "KRITIS", "faktor_risiko": ["Mobilisasi massa"], "rekomendasi": "Lakukan dialog", "urgensi": "MONITORING"}`

var articleHTML = "<html><head><title>Presiden Joko Widodo Tanggapi Demo</title></head><body><article>" +
	strings.Repeat("<p>Presiden Joko Widodo menyatakan pemerintah akan mendengarkan aspirasi mahasiswa yang berdemonstrasi di depan gedung DPR, "+
		"namun meminta semua pihak menjaga ketertiban dan tidak terprovokasi oleh ajakan kekerasan yang beredar di media sosial.</p>", 5) +
	"</article></body></html>"

type fixture struct {
	db       *database.DB
	provider *mockProvider
	fetcher  *stubFetcher
	searcher *stubSearcher
	pipeline *Pipeline
	jokowi   int64
	ani      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       openTestDB(t),
		provider: &mockProvider{response: criticalResponse},
		fetcher:  &stubFetcher{html: articleHTML},
		searcher: &stubSearcher{},
	}
	var err error
	f.jokowi, err = f.db.UpsertPerson(database.Person{Name: "Joko Widodo", Alias: "Jokowi", Position: "Presiden"})
	if err != nil {
		t.Fatalf("UpsertPerson: %v", err)
	}
	f.ani, _ = f.db.UpsertPerson(database.Person{Name: "Ani Lestari", Position: "Ketua DPRD"})

	f.pipeline = NewWithDeps(Deps{
		DB:         f.db,
		Fetcher:    f.fetcher,
		Extractor:  extract.New(300),
		Classifier: classify.New(f.provider, nil, classify.Options{}),
		Searcher:   f.searcher,
		Progress:   progress.New(),
	})
	return f
}

var demo = Article{URL: "https://news.test/demo", Title: "Presiden Joko Widodo Tanggapi Demo", Source: "Kompas", Keyword: "demo"}

func TestAnalyzeOneStoresRecord(t *testing.T) {
	f := newFixture(t)

	an, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.jokowi)
	if err != nil {
		t.Fatalf("AnalyzeOne: %v", err)
	}
	if f.provider.calls != 1 {
		t.Errorf("expected 1 classification call, got %d", f.provider.calls)
	}
	if an.Warning != "" || an.RecordID == 0 {
		t.Fatalf("analysis not stored: %+v", an)
	}
	if an.Method == extract.MethodTitleOnly {
		t.Errorf("expected real extraction, got %s", an.Method)
	}
	if an.Record.Category != risk.Kritis || an.Record.Urgency != risk.Darurat {
		t.Errorf("returned category/urgency = %s/%q", an.Record.Category, an.Record.Urgency)
	}

	rec, err := f.db.GetRecord(an.RecordID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Category != risk.Kritis || rec.Urgency != risk.Darurat {
		t.Errorf("stored category/urgency = %s/%s", rec.Category, rec.Urgency)
	}
	if rec.Source == nil || *rec.Source != "Kompas" || rec.SearchKeyword == nil || *rec.SearchKeyword != "demo" {
		t.Errorf("provenance not stored: %+v", rec)
	}
	if rec.TaskID != nil {
		t.Errorf("single analysis should have no task, got %v", *rec.TaskID)
	}
}

func TestAnalyzeOneNotMentioned(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.ani)
	if !errors.Is(err, ErrPersonNotMentioned) {
		t.Fatalf("expected ErrPersonNotMentioned, got %v", err)
	}
	if !strings.Contains(err.Error(), "Ani Lestari") || !strings.Contains(err.Error(), "tidak ditemukan dalam berita") {
		t.Errorf("message = %q", err.Error())
	}
	if f.provider.calls != 0 {
		t.Errorf("absent person must not be classified, got %d calls", f.provider.calls)
	}
}

func TestAnalyzeOneUnknownPerson(t *testing.T) {
	f := newFixture(t)
	if _, err := f.pipeline.AnalyzeOne(context.Background(), demo, 999); !errors.Is(err, ErrPersonNotFound) {
		t.Errorf("expected ErrPersonNotFound, got %v", err)
	}
}

func TestAnalyzeOneFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = &fetch.StatusError{Code: 403}

	if _, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.jokowi); err == nil {
		t.Fatal("expected fetch error")
	}
	if f.provider.calls != 0 {
		t.Errorf("expected no classification, got %d calls", f.provider.calls)
	}
}

func TestAnalyzeOneTitleOnly(t *testing.T) {
	f := newFixture(t)
	f.fetcher.html = "<html><body><p>Halaman diblokir.</p></body></html>"

	an, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.jokowi)
	if err != nil {
		t.Fatalf("AnalyzeOne: %v", err)
	}
	if an.Method != extract.MethodTitleOnly {
		t.Errorf("method = %s, want %s", an.Method, extract.MethodTitleOnly)
	}
	if f.provider.calls != 1 {
		t.Errorf("title-only content should still be classified")
	}
}

func TestAnalyzeOnePersistenceFailureReturnsAnalysis(t *testing.T) {
	f := newFixture(t)
	f.fetcher.onFetch = func() { f.db.Close() }

	an, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.jokowi)
	if err != nil {
		t.Fatalf("persistence failure must not fail the request: %v", err)
	}
	if an.Warning == "" || an.RecordID != 0 {
		t.Errorf("expected a warning and no record ID: %+v", an)
	}
	if an.Record.Category != risk.Kritis {
		t.Errorf("analysis should still be returned, got %+v", an.Record)
	}
}

func TestAnalyzeOneClassifierFailureNotStored(t *testing.T) {
	f := newFixture(t)
	f.provider.err = &llm.StatusError{Code: 500, Body: "boom"}

	an, err := f.pipeline.AnalyzeOne(context.Background(), demo, f.jokowi)
	if err != nil {
		t.Fatalf("AnalyzeOne: %v", err)
	}
	if an.Record.Failure != classify.FailureHTTP || an.Warning == "" {
		t.Errorf("analysis = %+v", an)
	}
	records, _ := f.db.ListRecords(database.RecordFilter{})
	if len(records) != 0 {
		t.Errorf("failed analysis must not be stored, got %d records", len(records))
	}
}

func TestAnalyzeAllSkipsUnmentioned(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.AnalyzeAll(context.Background(), demo)
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if len(f.fetcher.calls) != 1 {
		t.Errorf("article should be fetched once, got %d", len(f.fetcher.calls))
	}
	if len(result.Analyses) != 1 || result.Skipped != 1 || result.Errors != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Analyses[0].Person.Name != "Joko Widodo" {
		t.Errorf("analyzed %s", result.Analyses[0].Person.Name)
	}
	if got := result.Analyses[0].Record.Urgency; got != risk.Darurat {
		t.Errorf("returned urgency = %q, want %s", got, risk.Darurat)
	}
}

func TestAnalyzeAllContinuesPastPersistenceFailures(t *testing.T) {
	f := newFixture(t)
	f.db.UpsertPerson(database.Person{Name: "Jokowi Junior", Alias: "Joko Widodo"})
	f.fetcher.onFetch = func() { f.db.Close() }

	result, err := f.pipeline.AnalyzeAll(context.Background(), demo)
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if result.Errors != 2 || result.Skipped != 1 {
		t.Errorf("every mentioned person should be attempted: %+v", result)
	}
	if f.provider.calls != 2 {
		t.Errorf("expected 2 classification calls, got %d", f.provider.calls)
	}
}

func TestAnalyzeAllWithoutPeople(t *testing.T) {
	f := newFixture(t)
	f.db.DeleteAllPeople()

	if _, err := f.pipeline.AnalyzeAll(context.Background(), demo); !errors.Is(err, ErrNoPeople) {
		t.Errorf("expected ErrNoPeople, got %v", err)
	}
}

func TestAnalyzeDocument(t *testing.T) {
	f := newFixture(t)

	paragraphs := []string{
		"Jokowi meminta aparat menjaga keamanan selama aksi berlangsung.",
		"Jokowi meminta aparat menjaga keamanan selama aksi berlangsung.",
		"Ketua DPRD Ani Lestari menyerukan dialog dengan mahasiswa.",
		"Cuaca cerah sepanjang hari.",
		"",
	}
	result, err := f.pipeline.AnalyzeDocument(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("AnalyzeDocument: %v", err)
	}
	if len(result.Analyses) != 2 || result.Errors != 0 {
		t.Fatalf("result = %+v", result)
	}

	state := f.pipeline.Progress().State()
	if state.Status != progress.StatusCompleted || state.Total != 2 || state.Current != 2 {
		t.Errorf("progress = %+v", state)
	}

	records, _ := f.db.ListRecords(database.RecordFilter{})
	if len(records) != 2 {
		t.Errorf("expected 2 stored records, got %d", len(records))
	}
}

func TestRunTask(t *testing.T) {
	f := newFixture(t)
	f.searcher.articles = []collect.Article{
		{URL: "https://news.test/1", Title: "Satu"},
		{URL: "https://news.test/2", Title: "Dua"},
		{URL: "https://news.test/3", Title: "Tiga"},
		{URL: "https://news.test/4", Title: "Empat"},
	}
	to := "2025-07-10"
	id, err := f.db.CreateTask(database.Task{Query: "demo", FromDate: "2025-07-01", ToDate: &to, PersonIDs: []int64{f.jokowi}})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	run, err := f.pipeline.RunTask(context.Background(), id, 3)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if run.Found != 4 || run.Analyzed != 3 || run.Deferred != 1 {
		t.Errorf("run = %+v", run)
	}
	if q := f.searcher.queries[0]; q.Keyword != "demo" || q.From != "2025-07-01" || q.To != "2025-07-10" {
		t.Errorf("query = %+v", q)
	}

	// The same body on every page collapses to one record per person.
	if run.Results != 1 {
		t.Errorf("results = %d, want 1", run.Results)
	}
	task, _ := f.db.GetTask(id)
	if task.LastRunID == nil || *task.LastRunID != run.RunID || task.ResultsCount != 1 {
		t.Errorf("task run not recorded: %+v", task)
	}
	records, _ := f.db.ListRecords(database.RecordFilter{TaskID: &id})
	if len(records) != 1 || records[0].TaskID == nil || *records[0].TaskID != id {
		t.Errorf("task records = %+v", records)
	}
}

func TestRunTaskSkipsInactive(t *testing.T) {
	f := newFixture(t)
	id, _ := f.db.CreateTask(database.Task{Query: "demo"})
	f.db.SetTaskStatus(id, database.TaskPaused)

	if _, err := f.pipeline.RunTask(context.Background(), id, 0); !errors.Is(err, ErrTaskNotActive) {
		t.Errorf("expected ErrTaskNotActive, got %v", err)
	}
	if len(f.searcher.queries) != 0 {
		t.Error("paused task must not search")
	}
}

func TestRunTaskSearchFailureKeepsTaskActive(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("newsapi down")
	id, _ := f.db.CreateTask(database.Task{Query: "demo"})

	run, err := f.pipeline.RunTask(context.Background(), id, 0)
	if err == nil || run == nil || !run.Failed {
		t.Fatalf("expected failed run, got %+v, %v", run, err)
	}
	task, _ := f.db.GetTask(id)
	if task.Status != database.TaskActive || task.LastRunAt == nil {
		t.Errorf("task = %+v", task)
	}
}

func TestSplitParagraphs(t *testing.T) {
	text := "Paragraf satu\nberlanjut.\r\n\r\nParagraf dua.\n   \n\n\nParagraf tiga."
	got := SplitParagraphs(text)
	want := []string{"Paragraf satu berlanjut.", "Paragraf dua.", "Paragraf tiga."}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}
}

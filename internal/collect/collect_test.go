package collect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/config"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Berita Test</title>
  <link>https://berita.test</link>
  <item>
    <title>Jokowi resmikan bendungan baru</title>
    <link>https://berita.test/a</link>
    <description>&lt;p&gt;Presiden &lt;b&gt;Jokowi&lt;/b&gt; meresmikan bendungan.&lt;/p&gt;</description>
    <pubDate>Wed, 09 Jul 2025 08:00:00 +0700</pubDate>
  </item>
  <item>
    <title>Cuaca Jakarta cerah</title>
    <link>https://berita.test/b</link>
    <pubDate>Wed, 09 Jul 2025 09:00:00 +0700</pubDate>
  </item>
  <item>
    <title>Kunjungan Jokowi tahun lalu</title>
    <link>https://berita.test/c</link>
    <pubDate>Mon, 01 Jan 2024 09:00:00 +0700</pubDate>
  </item>
  <item>
    <title>Agenda Jokowi pekan depan</title>
    <link>https://berita.test/d</link>
  </item>
</channel>
</rss>`

func fixedNow() time.Time {
	return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
}

func newsServer(t *testing.T, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"articles": []map[string]any{
				{
					"url": "https://news.test/x", "title": "Jokowi bertemu investor",
					"publishedAt": "2025-07-10T03:00:00Z", "source": map[string]string{"name": "Kompas"},
				},
				{"url": "https://removed.com", "title": "[Removed]", "publishedAt": "2025-07-10T03:00:00Z"},
				{
					"url": "https://berita.test/a", "title": "Jokowi resmikan bendungan baru",
					"publishedAt": "2025-07-09T01:00:00Z", "source": map[string]string{"name": "Antara"},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(newsURL string, feeds ...config.Feed) *config.Config {
	return &config.Config{
		Sources: config.Sources{
			NewsAPI: config.NewsAPIConfig{
				Enabled:         newsURL != "",
				APIKeyEnv:       "TEST_NEWSAPI_KEY",
				URL:             newsURL,
				Language:        "id",
				PageSize:        50,
				DefaultDaysBack: 3,
			},
			Feeds: feeds,
		},
	}
}

func TestSearchMergesSources(t *testing.T) {
	t.Setenv("TEST_NEWSAPI_KEY", "secret")

	var got *http.Request
	news := newsServer(t, func(r *http.Request) { got = r })
	feed := feedServer(t)

	s := NewSearcher(testConfig(news.URL, config.Feed{URL: feed.URL, Name: "Berita"}))
	s.now = fixedNow

	articles, err := s.Search(context.Background(), Query{Keyword: "Jokowi", IncludeToday: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.Header.Get("X-Api-Key") != "secret" {
		t.Errorf("api key header = %q", got.Header.Get("X-Api-Key"))
	}
	q := got.URL.Query()
	if q.Get("q") != "Jokowi" || q.Get("language") != "id" || q.Get("sortBy") != "publishedAt" {
		t.Errorf("unexpected params: %v", q)
	}
	if q.Get("from") != "2025-07-07" || q.Get("to") != "2025-07-10" {
		t.Errorf("date range = %s..%s", q.Get("from"), q.Get("to"))
	}

	// x and a from NewsAPI, d (undated) from the feed; b misses the
	// keyword and c is out of range.
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d: %+v", len(articles), articles)
	}
	if articles[0].URL != "https://news.test/x" {
		t.Errorf("newest first: got %s", articles[0].URL)
	}
	if articles[1].URL != "https://berita.test/a" || articles[1].Source != "Antara" {
		t.Errorf("duplicate should keep the first source: %+v", articles[1])
	}
	if articles[2].URL != "https://berita.test/d" {
		t.Errorf("undated article should be last: %+v", articles[2])
	}
}

func TestFeedSearchStripsDescription(t *testing.T) {
	feed := feedServer(t)
	fp := NewFeedParser([]FeedConfig{{URL: feed.URL}})

	from := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)
	articles, err := fp.Search(context.Background(), "bendungan", from, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Description != "Presiden Jokowi meresmikan bendungan." {
		t.Errorf("description = %q", articles[0].Description)
	}
}

func TestSearchFailsWhenEverySourceFails(t *testing.T) {
	t.Setenv("TEST_NEWSAPI_KEY", "secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSearcher(testConfig(srv.URL))
	if _, err := s.Search(context.Background(), Query{Keyword: "Jokowi"}); err == nil {
		t.Error("expected error when NewsAPI fails and no feeds exist")
	}
}

func TestSearchWithoutSources(t *testing.T) {
	s := NewSearcher(testConfig(""))
	_, err := s.Search(context.Background(), Query{Keyword: "Jokowi"})
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
}

func TestSearchRequiresKeyword(t *testing.T) {
	s := NewSearcher(testConfig(""))
	if _, err := s.Search(context.Background(), Query{Keyword: "  "}); err == nil {
		t.Error("expected error for empty keyword")
	}
}

func TestRange(t *testing.T) {
	s := NewSearcher(testConfig(""))
	s.now = fixedNow

	from, to, err := s.Range(Query{From: "2025-07-01", To: "2025-07-05"})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if from.Format(dateLayout) != "2025-07-01" || to.Format(dateLayout) != "2025-07-05" {
		t.Errorf("range = %s..%s", from.Format(dateLayout), to.Format(dateLayout))
	}

	_, to, _ = s.Range(Query{To: "2025-07-05", IncludeToday: true})
	if to.Format(dateLayout) != "2025-07-10" {
		t.Errorf("include today should override to, got %s", to.Format(dateLayout))
	}

	if _, _, err := s.Range(Query{From: "not a date"}); err == nil {
		t.Error("expected error for invalid from date")
	}
}

func TestMergeOrdersUndatedLast(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	merged := Merge(
		[]Article{{URL: "u1"}, {URL: "u2", PublishedAt: old}},
		[]Article{{URL: "u2", PublishedAt: recent}, {URL: "u3", PublishedAt: recent}},
	)
	if len(merged) != 3 {
		t.Fatalf("expected 3, got %d", len(merged))
	}
	want := []string{"u3", "u2", "u1"}
	for i, w := range want {
		if merged[i].URL != w {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].URL, w)
		}
	}
}

func TestExtractSourceName(t *testing.T) {
	cases := map[string]string{
		"https://www.antaranews.com/rss/terkini.xml": "Antaranews",
		"https://rss.tempo.co/nasional":              "Tempo",
	}
	for in, want := range cases {
		if got := extractSourceName(in); got != want {
			t.Errorf("extractSourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

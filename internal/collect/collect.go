// Package collect searches news sources for articles matching a keyword.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/tokohwatch/internal/config"
)

const dateLayout = "2006-01-02"

// ErrNoSources is returned when neither NewsAPI nor any feed is usable.
var ErrNoSources = errors.New("no news source configured")

// Article is one search hit.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// Query describes a news search. From and To accept any date format
// dateparse understands; IncludeToday forces the upper bound to today.
type Query struct {
	Keyword      string
	From         string
	To           string
	IncludeToday bool
}

// Searcher merges results from NewsAPI and RSS feeds.
type Searcher struct {
	news     *NewsAPIClient
	feeds    *FeedParser
	daysBack int
	now      func() time.Time
}

// NewSearcher builds a searcher from the sources section of the config.
func NewSearcher(cfg *config.Config) *Searcher {
	s := &Searcher{
		daysBack: cfg.Sources.NewsAPI.DefaultDaysBack,
		now:      time.Now,
	}
	if s.daysBack <= 0 {
		s.daysBack = 3
	}
	if cfg.Sources.NewsAPI.Enabled {
		s.news = NewNewsAPIClient(cfg.Sources.NewsAPI)
	}
	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		s.feeds = NewFeedParser(feeds)
	}
	return s
}

// Range resolves the query's date bounds. An empty To yields a zero time.
func (s *Searcher) Range(q Query) (from, to time.Time, err error) {
	now := s.now()
	if strings.TrimSpace(q.From) == "" {
		from = now.AddDate(0, 0, -s.daysBack)
	} else if from, err = dateparse.ParseLocal(q.From); err != nil {
		return from, to, fmt.Errorf("invalid from date %q: %w", q.From, err)
	}

	switch {
	case q.IncludeToday:
		to = now
	case strings.TrimSpace(q.To) != "":
		if to, err = dateparse.ParseLocal(q.To); err != nil {
			return from, to, fmt.Errorf("invalid to date %q: %w", q.To, err)
		}
	}
	return from, to, nil
}

// Search queries every configured source and returns the merged results,
// deduplicated by URL and newest first. It fails only when no source
// could be queried.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Article, error) {
	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" {
		return nil, errors.New("search keyword is required")
	}
	from, to, err := s.Range(q)
	if err != nil {
		return nil, err
	}

	var (
		results [][]Article
		errs    []error
		tried   int
	)

	if s.news != nil && s.news.IsConfigured() {
		tried++
		toStr := ""
		if !to.IsZero() {
			toStr = to.Format(dateLayout)
		}
		articles, err := s.news.Search(ctx, keyword, from.Format(dateLayout), toStr)
		if err != nil {
			log.Printf("NewsAPI search failed: %v", err)
			errs = append(errs, err)
		} else {
			results = append(results, articles)
		}
	}

	if s.feeds != nil {
		tried++
		articles, err := s.feeds.Search(ctx, keyword, from, to)
		if err != nil {
			errs = append(errs, err)
		} else {
			results = append(results, articles)
		}
	}

	if tried == 0 {
		return nil, ErrNoSources
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("all news sources failed: %w", errors.Join(errs...))
	}
	merged := Merge(results...)
	log.Printf("Search %q: %d articles", keyword, len(merged))
	return merged, nil
}

// Merge deduplicates by URL, keeping the first occurrence, and sorts newest
// first. Undated articles go last.
func Merge(lists ...[]Article) []Article {
	seen := make(map[string]struct{})
	var out []Article
	for _, list := range lists {
		for _, a := range list {
			if _, ok := seen[a.URL]; ok {
				continue
			}
			seen[a.URL] = struct{}{}
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b Article) int {
		switch {
		case a.PublishedAt.IsZero() && b.PublishedAt.IsZero():
			return 0
		case a.PublishedAt.IsZero():
			return 1
		case b.PublishedAt.IsZero():
			return -1
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

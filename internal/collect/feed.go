package collect

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser searches RSS/Atom feeds for items mentioning a query.
type FeedParser struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds, parser: gofeed.NewParser()}
}

// Search parses every feed and keeps items whose title or description
// contains query and whose date falls in [from, to]. A zero to leaves the
// upper bound open. A failing feed is logged and skipped; the error is
// returned only when every feed failed.
func (fp *FeedParser) Search(ctx context.Context, query string, from, to time.Time) ([]Article, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	var (
		all     []Article
		lastErr error
		failed  int
	)

	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := fp.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			failed++
			lastErr = err
			continue
		}

		n := 0
		for _, item := range feed.Items {
			a := parseItem(item, name)
			if a == nil || !withinRange(a.PublishedAt, from, to) {
				continue
			}
			text := strings.ToLower(a.Title + " " + a.Description)
			if needle != "" && !strings.Contains(text, needle) {
				continue
			}
			all = append(all, *a)
			n++
		}
		log.Printf("Matched %d entries from %s", n, name)
	}

	if failed > 0 && failed == len(fp.feeds) {
		return nil, lastErr
	}
	return all, nil
}

func parseItem(item *gofeed.Item, source string) *Article {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return &Article{
		URL:         itemURL,
		Title:       title,
		Description: stripHTML(item.Description),
		Source:      source,
		PublishedAt: published,
	}
}

// withinRange compares calendar days. Undated items get the benefit of
// the doubt.
func withinRange(published, from, to time.Time) bool {
	if published.IsZero() {
		return true
	}
	day := published.Format("2006-01-02")
	if !from.IsZero() && day < from.Format("2006-01-02") {
		return false
	}
	if !to.IsZero() && day > to.Format("2006-01-02") {
		return false
	}
	return true
}

func stripHTML(text string) string {
	if text == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "rss.", "feeds.", "feed."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

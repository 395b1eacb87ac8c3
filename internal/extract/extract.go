// Package extract turns raw article HTML into plain text.
//
// Extraction runs an ordered chain of strategies and stops at the first one
// whose output clears that strategy's length threshold. General-purpose
// extractors run first, followed by selector, site-specific and structural
// fallbacks. When every strategy comes up short the caller can degrade to a
// title-only stub with TitleOnly.
package extract

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const excerptLength = 200

// ErrNoContent is returned when no strategy produced acceptable text.
var ErrNoContent = errors.New("no extractable content")

// Method identifiers reported in Content.Method.
const (
	MethodReadability = "readability"
	MethodImageAware  = "image-aware"
	MethodMetadata    = "metadata"
	MethodBaseline    = "readability-baseline"
	MethodSelector    = "selector"
	MethodSite        = "site-specific"
	MethodParagraphs  = "paragraphs"
	MethodDensest     = "densest-block"
	MethodBody        = "body"
	MethodTitleOnly   = "title-only"
)

// Content is the result of a successful extraction.
type Content struct {
	Title   string
	Content string
	Excerpt string
	Method  string
}

// Document is the input shared by all strategies.
type Document struct {
	HTML string
	URL  *url.URL
}

// Query parses a fresh DOM. Strategies that mutate the tree must use their
// own copy so later strategies see the original markup.
func (d *Document) Query() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
}

// Host returns the lowercased host of the source URL, or "".
func (d *Document) Host() string {
	if d.URL == nil {
		return ""
	}
	return strings.ToLower(d.URL.Hostname())
}

// Strategy is one step in the extraction chain.
type Strategy interface {
	Name() string
	Extract(doc *Document) (*Content, bool)
}

// Extractor runs strategies in order.
type Extractor struct {
	strategies []Strategy
}

// New returns an Extractor with the default strategy chain. minLength is the
// plain-text threshold for the general and site-specific strategies.
func New(minLength int) *Extractor {
	return NewWithStrategies(DefaultStrategies(minLength)...)
}

// NewWithStrategies returns an Extractor running exactly the given strategies.
func NewWithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// DefaultStrategies returns the full chain in priority order.
func DefaultStrategies(minLength int) []Strategy {
	if minLength <= 0 {
		minLength = 300
	}
	return []Strategy{
		readabilityStrategy{minLength: minLength},
		imageAwareStrategy{minLength: minLength},
		metadataStrategy{minLength: minLength},
		baselineStrategy{minLength: minLength},
		selectorStrategy{minLength: 500},
		siteStrategy{minLength: minLength},
		paragraphStrategy{minParagraph: 30, minCount: 3, minTotal: 500},
		densestStrategy{minLength: 200},
		bodyStrategy{minLength: minLength},
	}
}

// Extract runs the chain against rawHTML fetched from sourceURL.
func (e *Extractor) Extract(rawHTML, sourceURL string) (*Content, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ErrNoContent
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		u = &url.URL{}
	}
	doc := &Document{HTML: rawHTML, URL: u}

	for i, s := range e.strategies {
		c, ok := s.Extract(doc)
		if !ok || c == nil {
			continue
		}
		c.Method = s.Name()
		if c.Title == "" {
			c.Title = documentTitle(doc)
		}
		if c.Excerpt == "" {
			c.Excerpt = excerpt(c.Content)
		}
		if i > 0 {
			log.Printf("Fallback extraction: %s succeeded for %s (%d chars)", s.Name(), sourceURL, textLen(c.Content))
		}
		return c, nil
	}

	log.Printf("All content extraction strategies failed for %s", sourceURL)
	return nil, ErrNoContent
}

// TitleOnly synthesizes a short pseudo-article for pages whose content could
// not be extracted, so classification can still run against the headline.
func TitleOnly(title, source, pageURL string) *Content {
	if source == "" {
		source = "Unknown"
	}
	text := fmt.Sprintf("%s.\n\nSumber: %s\nURL: %s", strings.TrimSpace(title), source, pageURL)
	return &Content{
		Title:   title,
		Content: text,
		Excerpt: title,
		Method:  MethodTitleOnly,
	}
}

func documentTitle(doc *Document) string {
	q, err := doc.Query()
	if err != nil {
		return ""
	}
	if og, ok := q.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return normalizeSpace(q.Find("title").First().Text())
}

func excerpt(text string) string {
	text = normalizeSpace(text)
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)[:excerptLength]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > excerptLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tidy collapses whitespace inside lines and separates non-empty lines with
// blank lines.
func tidy(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = normalizeSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n\n")
}

package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// contentSelectors are tried in order. A leading "." matches any element
// whose class attribute contains the name, "#" matches an id exactly, and
// anything else is a tag name.
var contentSelectors = []string{
	"article",
	".article",
	".post-content",
	".entry-content",
	".content",
	".article-content",
	"#article-content",
	".news-content",
	".article-body",
	".article__content",
	".story-content",
	".main-content",
	// regional publishers
	".read__content",
	".detail__body-text",
	".txt-article",
	"#article_con",
	".detail-text",
	".detail_text",
	".detail-desc",
	".detail-konten",
	"#isi",
	"#contentx",
	".itp_bodycontent",
	".article-content-body",
	".single-content",
	".post-body",
	".isi-berita",
	".body-berita",
}

func cssFor(selector string) string {
	switch {
	case strings.HasPrefix(selector, "."):
		return `[class*="` + selector[1:] + `"]`
	case strings.HasPrefix(selector, "#"):
		return `[id="` + selector[1:] + `"]`
	default:
		return selector
	}
}

type selectorStrategy struct {
	minLength int
}

func (selectorStrategy) Name() string { return MethodSelector }

func (s selectorStrategy) Extract(doc *Document) (*Content, bool) {
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	for _, selector := range contentSelectors {
		el := q.Find(cssFor(selector)).First()
		if el.Length() == 0 {
			continue
		}
		text := cleanText(el.Clone())
		if textLen(text) > s.minLength {
			return &Content{Content: text}, true
		}
	}
	return nil, false
}

type siteStrategy struct {
	minLength int
}

func (siteStrategy) Name() string { return MethodSite }

func (s siteStrategy) Extract(doc *Document) (*Content, bool) {
	site, ok := siteFor(doc.Host())
	if !ok {
		return nil, false
	}
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	text := site.extract(q)
	if textLen(text) < s.minLength {
		return nil, false
	}
	return &Content{Content: text}, true
}

// paragraphStrategy concatenates every substantial <p> on the page.
type paragraphStrategy struct {
	minParagraph int
	minCount     int
	minTotal     int
}

func (paragraphStrategy) Name() string { return MethodParagraphs }

func (s paragraphStrategy) Extract(doc *Document) (*Content, bool) {
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	q.Find(noiseTags).Remove()

	var parts []string
	total := 0
	q.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := normalizeSpace(p.Text())
		if n := textLen(t); n > s.minParagraph {
			parts = append(parts, t)
			total += n
		}
	})
	if len(parts) < s.minCount || total <= s.minTotal {
		return nil, false
	}
	return &Content{Content: strings.Join(parts, "\n\n")}, true
}

// densestStrategy picks the block element with the most direct text, for
// pages that put the body in bare text nodes separated by <br>.
type densestStrategy struct {
	minLength int
}

func (densestStrategy) Name() string { return MethodDensest }

func (s densestStrategy) Extract(doc *Document) (*Content, bool) {
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	q.Find(noiseTags).Remove()

	best := ""
	q.Find("div, section, article, main, td").Each(func(_ int, el *goquery.Selection) {
		if t := directText(el); textLen(t) > textLen(best) {
			best = t
		}
	})
	if textLen(best) <= s.minLength {
		return nil, false
	}
	return &Content{Content: best}, true
}

// directText returns the text nodes that are immediate children of el,
// keeping <br> as line breaks.
func directText(el *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range el.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				sb.WriteString(c.Data)
			case c.Type == html.ElementNode && c.Data == "br":
				sb.WriteString("\n")
			}
		}
	}
	return tidy(sb.String())
}

type bodyStrategy struct {
	minLength int
}

func (bodyStrategy) Name() string { return MethodBody }

func (s bodyStrategy) Extract(doc *Document) (*Content, bool) {
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	body := q.Find("body").First()
	if body.Length() == 0 {
		return nil, false
	}
	text := cleanText(body)
	if textLen(text) < s.minLength {
		return nil, false
	}
	return &Content{Content: text}, true
}

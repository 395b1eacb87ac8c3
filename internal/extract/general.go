package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// readerable reports whether the page looks like an article to readability.
// Pages that fail this check are left to the fallback strategies.
func readerable(doc *Document) bool {
	return readability.Check(strings.NewReader(doc.HTML))
}

type readabilityStrategy struct {
	minLength int
}

func (readabilityStrategy) Name() string { return MethodReadability }

func (s readabilityStrategy) Extract(doc *Document) (*Content, bool) {
	if !readerable(doc) {
		return nil, false
	}
	article, err := readability.FromReader(strings.NewReader(doc.HTML), doc.URL)
	if err != nil {
		return nil, false
	}
	text := tidy(article.TextContent)
	if textLen(text) < s.minLength {
		return nil, false
	}
	return &Content{
		Title:   strings.TrimSpace(article.Title),
		Content: text,
		Excerpt: normalizeSpace(article.Excerpt),
	}, true
}

// baselineStrategy runs the readability parser with JSON-LD disabled and a
// lower character threshold, which recovers short articles the default
// configuration rejects.
type baselineStrategy struct {
	minLength int
}

func (baselineStrategy) Name() string { return MethodBaseline }

func (s baselineStrategy) Extract(doc *Document) (*Content, bool) {
	if !readerable(doc) {
		return nil, false
	}
	parser := readability.NewParser()
	parser.DisableJSONLD = true
	parser.CharThresholds = 250
	article, err := parser.Parse(strings.NewReader(doc.HTML), doc.URL)
	if err != nil {
		return nil, false
	}
	text := tidy(article.TextContent)
	if textLen(text) < s.minLength {
		return nil, false
	}
	return &Content{Title: strings.TrimSpace(article.Title), Content: text}, true
}

// imageAwareStrategy scores containers that hold both figures and
// paragraphs. News pages that interleave photos with text often split the
// body across siblings that readability discards.
type imageAwareStrategy struct {
	minLength int
}

func (imageAwareStrategy) Name() string { return MethodImageAware }

func (s imageAwareStrategy) Extract(doc *Document) (*Content, bool) {
	q, err := doc.Query()
	if err != nil {
		return nil, false
	}
	q.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	var best *goquery.Selection
	bestScore := 0
	q.Find("article, main, section, div").Each(func(_ int, c *goquery.Selection) {
		images := c.Find("img, figure").Length()
		if images == 0 {
			return
		}
		score := 0
		c.Find("p").Each(func(_ int, p *goquery.Selection) {
			if n := textLen(normalizeSpace(p.Text())); n > 30 {
				score += n
			}
		})
		if score == 0 {
			return
		}
		score += 50 * images
		if score > bestScore {
			best, bestScore = c, score
		}
	})
	if best == nil {
		return nil, false
	}

	var parts []string
	best.Find("p, figcaption").Each(func(_ int, el *goquery.Selection) {
		if t := normalizeSpace(el.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, "\n\n")
	if textLen(text) < s.minLength {
		return nil, false
	}
	return &Content{Content: text}, true
}

// metadataStrategy reads structured article data: JSON-LD articleBody,
// itemprop=articleBody markup and the Open Graph / meta description.
type metadataStrategy struct {
	minLength int
}

func (metadataStrategy) Name() string { return MethodMetadata }

func (s metadataStrategy) Extract(doc *Document) (*Content, bool) {
	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, false
	}

	meta := extractMetadata(root)
	body := meta.articleBody
	if body == "" {
		if n := findItemprop(root, "articleBody"); n != nil {
			body = extractText(n)
		}
	}
	body = tidy(body)
	if textLen(body) < s.minLength {
		return nil, false
	}
	return &Content{Title: meta.title, Content: body, Excerpt: meta.description}, true
}

type pageMetadata struct {
	title       string
	description string
	articleBody string
}

func extractMetadata(n *html.Node) pageMetadata {
	var m pageMetadata
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var name, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "name", "property":
						name = strings.ToLower(a.Val)
					case "content":
						content = strings.TrimSpace(a.Val)
					}
				}
				switch name {
				case "og:title":
					m.title = content
				case "description", "og:description":
					if m.description == "" {
						m.description = content
					}
				}
			case "script":
				if attr(n, "type") == "application/ld+json" && n.FirstChild != nil && m.articleBody == "" {
					var v any
					if json.Unmarshal([]byte(n.FirstChild.Data), &v) == nil {
						m.articleBody = findArticleBody(v)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return m
}

// findArticleBody searches decoded JSON-LD, including @graph arrays.
func findArticleBody(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := t["articleBody"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		for _, child := range t {
			if s := findArticleBody(child); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range t {
			if s := findArticleBody(child); s != "" {
				return s
			}
		}
	}
	return ""
}

func findItemprop(n *html.Node, prop string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "itemprop") == prop {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findItemprop(c, prop); found != nil {
			return found
		}
	}
	return nil
}

// extractText collects text from a node tree, skipping script and style
// and putting block elements on their own lines.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

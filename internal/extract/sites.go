package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// site describes where a known publisher keeps its article body.
type site struct {
	domain string
	body   []string // tried in order, first non-empty wins
	drop   []string // removed from the body before reading text
	custom func(q *goquery.Document) string
}

var sites = []site{
	{domain: "kompas.com", body: []string{".read__content"}, drop: []string{".inner-link-baca-juga", ".ads-on-body"}},
	{domain: "detik.com", body: []string{".detail__body-text", ".itp_bodycontent"}, drop: []string{".parallaxindetail", ".linksisip", ".detail__body-tag", ".staticdetail_container"}},
	{domain: "tribunnews.com", body: []string{".side-article.txt-article", "#article_con"}, drop: []string{".baca", ".ads_ctr"}},
	{domain: "cnnindonesia.com", body: []string{".detail-text", ".detail-wrap"}, drop: []string{".linksisip", ".para_caption"}},
	{domain: "cnbcindonesia.com", body: []string{".detail_text"}, drop: []string{".sisip_embed_sosmed"}},
	{domain: "liputan6.com", body: []string{".article-content-body__item-content"}, drop: []string{".baca-juga-collections"}},
	{domain: "tempo.co", body: []string{"#isi", ".detail-konten", ".detail-in"}},
	{domain: "antaranews.com", body: []string{".post-content", ".wrap__article-detail-content"}, drop: []string{".baca-juga", ".text-muted"}},
	{domain: "okezone.com", body: []string{"#contentx", ".read"}, drop: []string{".baca"}},
	{domain: "sindonews.com", body: []string{".detail-desc", "#content"}},
	{domain: "republika.co.id", body: []string{".article-content", ".artikel"}, drop: []string{".baca-juga"}},
	{domain: "suara.com", body: []string{".detail-content", "article.detail-content"}},
	{domain: "jpnn.com", body: []string{".page-content"}},
	{domain: "kumparan.com", custom: kumparanBody},
}

func siteFor(host string) (site, bool) {
	for _, s := range sites {
		if host == s.domain || strings.HasSuffix(host, "."+s.domain) {
			return s, true
		}
	}
	return site{}, false
}

func (s site) extract(q *goquery.Document) string {
	if s.custom != nil {
		return s.custom(q)
	}
	for _, sel := range s.body {
		el := q.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		for _, d := range s.drop {
			el.Find(d).Remove()
		}
		if text := cleanText(el); text != "" {
			return text
		}
	}
	return ""
}

// kumparanBody reads the story blocks kumparan renders as spans inside
// data-qa-id tagged containers.
func kumparanBody(q *goquery.Document) string {
	var parts []string
	q.Find(`[data-qa-id="story-paragraph"]`).Each(func(_ int, el *goquery.Selection) {
		if t := normalizeSpace(el.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

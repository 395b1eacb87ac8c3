package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var noiseTags = "script, style, noscript, iframe, nav, header, footer, form, aside, button, svg"

// noiseMarkers are class or id substrings that identify page chrome.
var noiseMarkers = []string{
	"comment", "sidebar", "advert", "iklan", "ads-", "-ads", "adsbygoogle", "ad-slot",
	"social", "share", "menu", "related", "baca-juga", "bacajuga", "banner",
	"promo", "newsletter", "popular", "terpopuler",
}

// clean strips noise from sel in place.
func clean(sel *goquery.Selection) {
	sel.Find(noiseTags).Remove()
	sel.Find("*").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return isNoise(el)
	}).Remove()
}

func isNoise(el *goquery.Selection) bool {
	marker := strings.ToLower(el.AttrOr("class", "") + " " + el.AttrOr("id", ""))
	if strings.TrimSpace(marker) == "" {
		return false
	}
	for _, m := range noiseMarkers {
		if strings.Contains(marker, m) {
			return true
		}
	}
	return false
}

// cleanText cleans sel and returns the text of its paragraph and heading
// nodes. Containers without paragraph markup fall back to their full text.
func cleanText(sel *goquery.Selection) string {
	clean(sel)

	var parts []string
	sel.Find("p, h1, h2, h3, h4, h5, h6").Each(func(_ int, el *goquery.Selection) {
		if t := normalizeSpace(el.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return tidy(sel.Text())
}

package collector

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tranmanhhung/sn111/internal/browser"
	"github.com/tranmanhhung/sn111/internal/review"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	intRe        = regexp.MustCompile(`\d+`)
	fidRe        = regexp.MustCompile(`0x[0-9a-f]+:0x[0-9a-f]+`)
	ludocidRe    = regexp.MustCompile(`ludocid%3D(\d+)|ludocid=(\d+)`)
)

// ExtractReviews parses every review card out of a rendered page snapshot.
// Parsing is permissive: cards missing fields come back partial and the
// optimizer decides admission. Cards with no identifying content at all are
// skipped.
func ExtractReviews(html string, p *browser.Profile) []review.Review {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []review.Review
	doc.Find(p.Review.Container).Each(func(_ int, card *goquery.Selection) {
		item := review.Review{
			ID:            card.AttrOr(p.Review.IDAttr, ""),
			Author:        cleanText(card.Find(p.Review.Author).First().Text()),
			Rating:        extractRating(card, p),
			Text:          cleanText(card.Find(p.Review.Text).First().Text()),
			Date:          cleanText(card.Find(p.Review.Date).First().Text()),
			HelpfulCount:  extractCount(card.Find(p.Review.Helpful).First()),
			PhotoCount:    card.Find(p.Review.Photos).Length(),
			OwnerResponse: cleanText(card.Find(p.Review.OwnerResponse).First().Text()),
		}
		if item.ID == "" && item.Author == "" && item.Text == "" {
			return
		}
		items = append(items, item)
	})
	return items
}

// FindPlaceID mines a search results snapshot for a place identifier: tagged
// attributes first, then FID or ludocid patterns in the first result link,
// then anywhere in the document.
func FindPlaceID(html string, p *browser.Profile) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, attr := range p.Search.PlaceIDAttrs {
		if v, ok := doc.Find("[" + attr + "]").First().Attr(attr); ok && v != "" {
			return v
		}
	}

	if href, ok := doc.Find(p.Search.ResultLink).First().Attr("href"); ok {
		if id := placeIDFromURL(href); id != "" {
			return id
		}
	}
	return placeIDFromURL(html)
}

// placeIDFromURL pulls a place identifier out of a URL or raw markup.
func placeIDFromURL(s string) string {
	if m := fidRe.FindString(s); m != "" {
		return m
	}
	if m := ludocidRe.FindStringSubmatch(s); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return g
			}
		}
	}
	return ""
}

func extractRating(card *goquery.Selection, p *browser.Profile) int {
	node := card.Find(p.Review.Rating).First()
	if node.Length() == 0 {
		return 0
	}
	label := node.AttrOr(p.Review.RatingAttr, "")
	if label == "" {
		label = node.Text()
	}
	m := numberRe.FindString(label)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	r := int(math.Round(f))
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}
	return r
}

func extractCount(node *goquery.Selection) int {
	if node.Length() == 0 {
		return 0
	}
	text := node.AttrOr("aria-label", "")
	if text == "" {
		text = node.Text()
	}
	m := intRe.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/tranmanhhung/sn111/internal/review"
)

// maxTextRunes caps free text after whitespace collapse.
const maxTextRunes = 1000

// normalize coerces every field into response shape. Items that come out
// without an author are dropped rather than served half-formed; the drop
// count is logged, not reported per item.
func (o *Optimizer) normalize(items []review.Review) []review.Review {
	out := items[:0]
	dropped := 0
	for _, it := range items {
		r, ok := normalizeReview(it)
		if !ok {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		o.log.Debug("malformed items dropped", map[string]interface{}{
			"dropped": dropped,
		})
	}
	return out
}

// normalizeReview returns the cleaned review and whether it is servable.
func normalizeReview(r review.Review) (review.Review, bool) {
	r.Author = cleanText(r.Author)
	r.Text = firstRunes(cleanText(r.Text), maxTextRunes)
	r.OwnerResponse = firstRunes(cleanText(r.OwnerResponse), maxTextRunes)
	if !r.PostedAt.IsZero() {
		r.Date = r.PostedAt.Format(review.CanonicalDateLayout)
	}
	if r.Rating < 0 {
		r.Rating = 0
	}
	if r.Rating > 5 {
		r.Rating = 5
	}
	if r.HelpfulCount < 0 {
		r.HelpfulCount = 0
	}
	if r.PhotoCount < 0 {
		r.PhotoCount = 0
	}
	if r.Author == "" {
		return r, false
	}
	if r.ID == "" {
		r.ID = syntheticID(r)
	}
	return r, true
}

// syntheticID derives a stable id from fields that survive recollection, so
// the same review synthesizes the same id on the next pass.
func syntheticID(r review.Review) string {
	sum := sha256.Sum256([]byte(r.Author + "|" + r.Date + "|" + strconv.Itoa(r.Rating)))
	return "syn-" + hex.EncodeToString(sum[:8])
}

// cleanText collapses whitespace runs to single spaces, trims the ends, and
// drops anything outside a conservative printable set. Control characters
// and decorative symbols picked up from page markup do not belong in the
// response.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if !keepRune(r) {
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func keepRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r) {
		return true
	}
	switch r {
	case '$', '+', '=', '<', '>', '|', '&', '~', '^', '`':
		return true
	}
	return false
}

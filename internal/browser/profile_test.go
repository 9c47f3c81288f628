package browser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultProfileDecodes(t *testing.T) {
	p, err := DefaultProfile()
	if err != nil {
		t.Fatalf("DefaultProfile: %v", err)
	}
	if p.Review.Container == "" {
		t.Error("review container selector empty")
	}
	if p.Review.IDAttr == "" {
		t.Error("review id attribute empty")
	}
	if len(p.Search.PlaceIDAttrs) == 0 {
		t.Error("no place id attributes")
	}
	if _, ok := p.SortTokens["newest"]; !ok {
		t.Error("missing newest sort token")
	}
}

func TestSearchURL(t *testing.T) {
	p, err := DefaultProfile()
	if err != nil {
		t.Fatal(err)
	}
	u := p.SearchURL("coffee shop in Austin, TX", "en")
	if !strings.Contains(u, "coffee%20shop") {
		t.Errorf("query not escaped: %s", u)
	}
	if !strings.Contains(u, "hl=en") {
		t.Errorf("locale not substituted: %s", u)
	}
	if strings.Contains(u, "{") {
		t.Errorf("unresolved placeholder: %s", u)
	}
}

func TestReviewsURL(t *testing.T) {
	p, err := DefaultProfile()
	if err != nil {
		t.Fatal(err)
	}

	u := p.ReviewsURL("0x89c259af336b3341:0xa4969e07ce3108de", "en", "newest")
	if !strings.Contains(u, "placeid=") {
		t.Errorf("place id not substituted: %s", u)
	}
	if !strings.Contains(u, "sort=newestFirst") {
		t.Errorf("sort token missing: %s", u)
	}

	// Unknown sorts fall back to the page default order.
	u = p.ReviewsURL("abc", "en", "sideways")
	if strings.Contains(u, "sort=") {
		t.Errorf("unknown sort emitted a token: %s", u)
	}
}

func TestLoadProfileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selectors.yaml")
	content := []byte(`
urls:
  search: "https://example.com/s/{query}"
  reviews: "https://example.com/r/{placeId}"
review:
  container: "div.review"
  idAttr: "data-id"
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Review.Container != "div.review" {
		t.Errorf("container = %q", p.Review.Container)
	}
}

func TestLoadProfileRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selectors.yaml")
	if err := os.WriteFile(path, []byte("review:\n  idAttr: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Error("incomplete profile accepted")
	}
}

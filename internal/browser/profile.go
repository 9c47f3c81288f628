package browser

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var embeddedProfile []byte

// Profile is the DOM selector set for the pages we render. It ships embedded
// and can be replaced from a file when the markup drifts.
type Profile struct {
	URLs       URLTemplates      `yaml:"urls"`
	SortTokens map[string]string `yaml:"sortTokens"`
	Search     SearchSelectors   `yaml:"search"`
	Place      PlaceSelectors    `yaml:"place"`
	Review     ReviewSelectors   `yaml:"review"`
}

// URLTemplates are the page entry points with {query}, {locale}, {placeId}
// placeholders.
type URLTemplates struct {
	Search  string `yaml:"search"`
	Reviews string `yaml:"reviews"`
}

// SearchSelectors locate the place search results.
type SearchSelectors struct {
	// Results is the affordance whose visibility means results rendered.
	Results    string `yaml:"results"`
	ResultLink string `yaml:"resultLink"`
	// PlaceIDAttrs are mined in order for a place identifier.
	PlaceIDAttrs []string `yaml:"placeIdAttrs"`
}

// PlaceSelectors locate the review pane controls.
type PlaceSelectors struct {
	ReviewsTab   string `yaml:"reviewsTab"`
	ScrollRegion string `yaml:"scrollRegion"`
	SortButton   string `yaml:"sortButton"`
	SortMenuItem string `yaml:"sortMenuItem"`
}

// ReviewSelectors locate the fields of one review card.
type ReviewSelectors struct {
	Container     string `yaml:"container"`
	IDAttr        string `yaml:"idAttr"`
	Author        string `yaml:"author"`
	Rating        string `yaml:"rating"`
	RatingAttr    string `yaml:"ratingAttr"`
	Date          string `yaml:"date"`
	Text          string `yaml:"text"`
	MoreButton    string `yaml:"moreButton"`
	Helpful       string `yaml:"helpful"`
	Photos        string `yaml:"photos"`
	OwnerResponse string `yaml:"ownerResponse"`
}

// DefaultProfile returns the embedded selector profile.
func DefaultProfile() (*Profile, error) {
	return decodeProfile(embeddedProfile)
}

// LoadProfile reads a selector profile from a file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector profile: %w", err)
	}
	return decodeProfile(data)
}

func decodeProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode selector profile: %w", err)
	}
	if p.Review.Container == "" {
		return nil, fmt.Errorf("selector profile missing review.container")
	}
	if p.URLs.Search == "" || p.URLs.Reviews == "" {
		return nil, fmt.Errorf("selector profile missing url templates")
	}
	return &p, nil
}

// SearchURL renders the search entry point for a query.
func (p *Profile) SearchURL(query, locale string) string {
	u := strings.ReplaceAll(p.URLs.Search, "{query}", url.PathEscape(query))
	return strings.ReplaceAll(u, "{locale}", url.QueryEscape(locale))
}

// ReviewsURL renders the review pane entry point for a place. A recognized
// sort is appended as a sort token; unknown sorts are dropped so the page
// falls back to its default order.
func (p *Profile) ReviewsURL(placeID, locale, sort string) string {
	u := strings.ReplaceAll(p.URLs.Reviews, "{placeId}", url.QueryEscape(placeID))
	u = strings.ReplaceAll(u, "{locale}", url.QueryEscape(locale))
	if token, ok := p.SortTokens[sort]; ok && token != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "sort=" + url.QueryEscape(token)
	}
	return u
}

// Package predictor enumerates the query combinations a validator is likely
// to ask about, so the cache can be warmed before the question arrives.
//
// The combination space is the cross product of a place-type vocabulary and a
// location vocabulary, both shipped embedded in the binary. Ordering is
// deterministic: priority locations first, vocabulary order preserved within
// each group.
package predictor

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

//go:embed vocabulary.toml
var embeddedVocabulary []byte

// Combination is one predicted query.
type Combination struct {
	PlaceType string `json:"placeType"`
	Location  string `json:"location"`
	Query     string `json:"query"`
	// Hash is a stable digest of Query, used to track prefetch attempts
	// across runs.
	Hash     string `json:"hash"`
	Priority bool   `json:"priority"`
}

// Stats summarizes the combination space.
type Stats struct {
	Combinations int `json:"combinations"`
	PlaceTypes   int `json:"placeTypes"`
	Locations    int `json:"locations"`
	Priority     int `json:"priority"`
}

// Vocabulary is the decoded form of vocabulary.toml.
type Vocabulary struct {
	PlaceTypes []string   `toml:"placeTypes"`
	Locations  []Location `toml:"locations"`
}

// Location is one vocabulary entry.
type Location struct {
	City     string `toml:"city"`
	State    string `toml:"state"`
	Priority bool   `toml:"priority"`
}

// Name renders the location as it appears in queries.
func (l Location) Name() string {
	if l.State == "" {
		return l.City
	}
	return l.City + ", " + l.State
}

// Predictor holds the precomputed combination space.
type Predictor struct {
	combos    []Combination
	stats     Stats
	byType    map[string][]int
	byLoc     map[string][]int
	hashIndex map[string]int
}

// New builds a predictor from the embedded vocabulary.
func New() (*Predictor, error) {
	return fromTOML(embeddedVocabulary)
}

// NewFromFile builds a predictor from an external vocabulary file, used when
// operators ship their own query space.
func NewFromFile(path string) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return fromTOML(data)
}

// NewFromVocabulary builds a predictor from an in-memory vocabulary.
func NewFromVocabulary(v Vocabulary) *Predictor {
	return build(v)
}

func fromTOML(data []byte) (*Predictor, error) {
	var v Vocabulary
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if len(v.PlaceTypes) == 0 || len(v.Locations) == 0 {
		return nil, fmt.Errorf("vocabulary needs at least one place type and one location")
	}
	return build(v), nil
}

func build(v Vocabulary) *Predictor {
	p := &Predictor{
		byType:    make(map[string][]int),
		byLoc:     make(map[string][]int),
		hashIndex: make(map[string]int),
	}

	seen := make(map[string]bool)
	placeTypes := 0
	typeSeen := make(map[string]bool)
	for _, pt := range v.PlaceTypes {
		if pt == "" || typeSeen[pt] {
			continue
		}
		typeSeen[pt] = true
		placeTypes++
		for _, loc := range v.Locations {
			if loc.City == "" {
				continue
			}
			query := pt + " in " + loc.Name()
			if seen[query] {
				continue
			}
			seen[query] = true
			p.combos = append(p.combos, Combination{
				PlaceType: pt,
				Location:  loc.Name(),
				Query:     query,
				Hash:      HashQuery(query),
				Priority:  loc.Priority,
			})
		}
	}

	// Priority combinations lead; vocabulary order holds within each group.
	sort.SliceStable(p.combos, func(i, j int) bool {
		return p.combos[i].Priority && !p.combos[j].Priority
	})

	locSeen := make(map[string]bool)
	priorityLocs := 0
	for _, loc := range v.Locations {
		name := loc.Name()
		if loc.City == "" || locSeen[name] {
			continue
		}
		locSeen[name] = true
		if loc.Priority {
			priorityLocs++
		}
	}

	priorityCombos := 0
	for i, c := range p.combos {
		p.byType[c.PlaceType] = append(p.byType[c.PlaceType], i)
		p.byLoc[c.Location] = append(p.byLoc[c.Location], i)
		p.hashIndex[c.Hash] = i
		if c.Priority {
			priorityCombos++
		}
	}

	p.stats = Stats{
		Combinations: len(p.combos),
		PlaceTypes:   placeTypes,
		Locations:    len(locSeen),
		Priority:     priorityCombos,
	}
	return p
}

// Combinations returns the full ordered combination space. The slice is a
// copy; callers may reorder it.
func (p *Predictor) Combinations() []Combination {
	out := make([]Combination, len(p.combos))
	copy(out, p.combos)
	return out
}

// Top returns the first n combinations in priority order.
func (p *Predictor) Top(n int) []Combination {
	if n <= 0 {
		return nil
	}
	if n > len(p.combos) {
		n = len(p.combos)
	}
	out := make([]Combination, n)
	copy(out, p.combos[:n])
	return out
}

// ForPlaceType returns every combination for the given place type, in
// priority order.
func (p *Predictor) ForPlaceType(placeType string) []Combination {
	return p.pick(p.byType[placeType])
}

// ForLocation returns every combination for the given location name, in
// priority order.
func (p *Predictor) ForLocation(location string) []Combination {
	return p.pick(p.byLoc[location])
}

// ByHash returns the combination with the given query hash.
func (p *Predictor) ByHash(hash string) (Combination, bool) {
	i, ok := p.hashIndex[hash]
	if !ok {
		return Combination{}, false
	}
	return p.combos[i], true
}

// Stats reports the size of the combination space.
func (p *Predictor) Stats() Stats {
	return p.stats
}

func (p *Predictor) pick(indexes []int) []Combination {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]Combination, len(indexes))
	for i, idx := range indexes {
		out[i] = p.combos[idx]
	}
	return out
}

// HashQuery digests a query string for use as a stable tracking key. The
// digest is the first 16 bytes of the sha256 sum, hex encoded.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:16])
}

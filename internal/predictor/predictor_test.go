package predictor

import (
	"testing"
)

func testVocabulary() Vocabulary {
	return Vocabulary{
		PlaceTypes: []string{"restaurant", "hotel"},
		Locations: []Location{
			{City: "Austin", State: "TX", Priority: false},
			{City: "Boston", State: "MA", Priority: true},
			{City: "Denver", State: "CO", Priority: false},
		},
	}
}

func TestEmbeddedVocabularyLoads(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stats := p.Stats()
	if stats.Combinations == 0 {
		t.Fatal("embedded vocabulary produced no combinations")
	}
	if stats.Combinations != stats.PlaceTypes*stats.Locations {
		t.Errorf("combinations = %d, want %d x %d", stats.Combinations, stats.PlaceTypes, stats.Locations)
	}
	if stats.Priority == 0 {
		t.Error("embedded vocabulary has no priority combinations")
	}
}

func TestPriorityOrdering(t *testing.T) {
	p := NewFromVocabulary(testVocabulary())
	combos := p.Combinations()
	if len(combos) != 6 {
		t.Fatalf("got %d combinations, want 6", len(combos))
	}

	// All priority combinations precede all non-priority ones.
	sawNonPriority := false
	for _, c := range combos {
		if !c.Priority {
			sawNonPriority = true
		} else if sawNonPriority {
			t.Fatalf("priority combination %q after non-priority", c.Query)
		}
	}

	// Vocabulary order holds within each group.
	if combos[0].Query != "restaurant in Boston, MA" {
		t.Errorf("first = %q, want restaurant in Boston, MA", combos[0].Query)
	}
	if combos[1].Query != "hotel in Boston, MA" {
		t.Errorf("second = %q, want hotel in Boston, MA", combos[1].Query)
	}
	if combos[2].Query != "restaurant in Austin, TX" {
		t.Errorf("third = %q, want restaurant in Austin, TX", combos[2].Query)
	}
}

func TestOrderingIsDeterministic(t *testing.T) {
	a := NewFromVocabulary(testVocabulary()).Combinations()
	b := NewFromVocabulary(testVocabulary()).Combinations()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("position %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestTop(t *testing.T) {
	p := NewFromVocabulary(testVocabulary())

	top := p.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d", len(top))
	}
	for _, c := range top {
		if !c.Priority {
			t.Errorf("Top(2) returned non-priority %q", c.Query)
		}
	}

	if got := p.Top(100); len(got) != 6 {
		t.Errorf("Top(100) = %d combinations, want all 6", len(got))
	}
	if got := p.Top(0); got != nil {
		t.Errorf("Top(0) = %v, want nil", got)
	}
}

func TestFilters(t *testing.T) {
	p := NewFromVocabulary(testVocabulary())

	hotels := p.ForPlaceType("hotel")
	if len(hotels) != 3 {
		t.Fatalf("ForPlaceType(hotel) = %d, want 3", len(hotels))
	}
	for _, c := range hotels {
		if c.PlaceType != "hotel" {
			t.Errorf("unexpected place type %q", c.PlaceType)
		}
	}

	austin := p.ForLocation("Austin, TX")
	if len(austin) != 2 {
		t.Fatalf("ForLocation(Austin, TX) = %d, want 2", len(austin))
	}

	if got := p.ForPlaceType("zoo"); got != nil {
		t.Errorf("unknown place type = %v, want nil", got)
	}
}

func TestHashQuery(t *testing.T) {
	h1 := HashQuery("restaurant in Austin, TX")
	h2 := HashQuery("restaurant in Austin, TX")
	h3 := HashQuery("hotel in Austin, TX")

	if h1 != h2 {
		t.Error("hash not stable across calls")
	}
	if h1 == h3 {
		t.Error("distinct queries share a hash")
	}
	if len(h1) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(h1))
	}
}

func TestByHash(t *testing.T) {
	p := NewFromVocabulary(testVocabulary())
	want := p.Combinations()[0]

	got, ok := p.ByHash(want.Hash)
	if !ok {
		t.Fatal("ByHash missed a known combination")
	}
	if got.Query != want.Query {
		t.Errorf("ByHash = %q, want %q", got.Query, want.Query)
	}

	if _, ok := p.ByHash("deadbeef"); ok {
		t.Error("ByHash matched an unknown hash")
	}
}

func TestDuplicatesDropped(t *testing.T) {
	v := Vocabulary{
		PlaceTypes: []string{"cafe", "cafe"},
		Locations: []Location{
			{City: "Reno", State: "NV"},
			{City: "Reno", State: "NV"},
		},
	}
	p := NewFromVocabulary(v)
	if got := p.Stats().Combinations; got != 1 {
		t.Errorf("combinations = %d, want 1 after dedup", got)
	}
}

package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
)

func testStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	cfg := config.DefaultConfig().Cache
	cfg.CompressionThresholdBytes = 256

	s, err := Open(filepath.Join(t.TempDir(), "test.db"), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })
	return s, &now
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	newest := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)
	payload := []byte(`[{"id":"r1"}]`)
	if err := s.Set(ctx, "reviews:p1:en:newest", payload, 1, newest, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	rec, ok, err := s.Get(ctx, "reviews:p1:en:newest")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("entry missing")
	}
	if !bytes.Equal(rec.Payload, payload) {
		t.Errorf("payload = %q", rec.Payload)
	}
	if rec.ItemCount != 1 {
		t.Errorf("item count = %d", rec.ItemCount)
	}
	if !rec.NewestItem.Equal(newest) {
		t.Errorf("newest item = %v, want %v", rec.NewestItem, newest)
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	s, _ := testStore(t)
	_, ok, err := s.Get(context.Background(), "reviews:absent:en:newest")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unknown key hit")
	}
}

func TestExpiredIsMissButStaleReadable(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 1, time.Time{}, time.Minute); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(2 * time.Minute)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expired entry served by strict read")
	}
	rec, ok, err := s.GetStale(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expired entry not available to stale read within retention")
	}
	if string(rec.Payload) != "v" {
		t.Errorf("payload = %q", rec.Payload)
	}
}

func TestLazyEvictionBeyondRetention(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 1, time.Time{}, time.Minute); err != nil {
		t.Fatal(err)
	}

	// Past expiry and past the retention horizon.
	*now = now.Add(25 * time.Hour)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("ancient entry served")
	}
	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("entries = %d, want 0 after lazy eviction", n)
	}

	if _, ok, _ := s.GetStale(ctx, "k"); ok {
		t.Error("stale read served beyond retention")
	}
}

func TestCompression(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	payload := []byte(strings.Repeat(`{"id":"r1","text":"the same review text again"},`, 200))
	if err := s.Set(ctx, "big", payload, 200, time.Time{}, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := s.Get(ctx, "big")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(rec.Payload, payload) {
		t.Error("compressed payload did not round trip")
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.SizeBytes >= int64(len(payload)) {
		t.Errorf("stored %d bytes for a %d byte compressible payload", st.SizeBytes, len(payload))
	}
}

func TestSmallPayloadStoredPlain(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	payload := []byte(`[{"id":"tiny"}]`)
	if err := s.Set(ctx, "small", payload, 1, time.Time{}, time.Hour); err != nil {
		t.Fatal(err)
	}
	rec, ok, _ := s.Get(ctx, "small")
	if !ok || !bytes.Equal(rec.Payload, payload) {
		t.Error("small payload did not round trip")
	}
}

func TestGetNewestByPrefix(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "reviews:p1:en:newest", []byte("older"), 1, time.Time{}, time.Minute); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(10 * time.Minute)
	if err := s.Set(ctx, "reviews:p1:fr:newest", []byte("newer"), 1, time.Time{}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "reviews:p2:en:newest", []byte("other place"), 1, time.Time{}, time.Hour); err != nil {
		t.Fatal(err)
	}

	// Both p1 rows are expired by now; the fallback read still serves the
	// newest of them.
	*now = now.Add(5 * time.Minute)
	rec, ok, err := s.GetNewestByPrefix(ctx, "reviews:p1:")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no row for place prefix")
	}
	if string(rec.Payload) != "newer" {
		t.Errorf("payload = %q, want the newest row", rec.Payload)
	}

	if _, ok, _ := s.GetNewestByPrefix(ctx, "reviews:p3:"); ok {
		t.Error("prefix with no rows hit")
	}
}

func TestPurge(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "old", []byte("x"), 1, time.Time{}, time.Minute); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(25 * time.Hour)
	if err := s.Set(ctx, "fresh", []byte("y"), 1, time.Time{}, time.Hour); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, ok, _ := s.Get(ctx, "fresh"); !ok {
		t.Error("fresh entry purged")
	}
	n, _ := s.Len(ctx)
	if n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestStats(t *testing.T) {
	s, now := testStore(t)
	ctx := context.Background()

	s.Set(ctx, "a", []byte("x"), 1, time.Time{}, time.Minute)
	s.Set(ctx, "b", []byte("y"), 1, time.Time{}, time.Hour)
	*now = now.Add(10 * time.Minute)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 2 {
		t.Errorf("entries = %d, want 2", st.Entries)
	}
	if st.Expired != 1 {
		t.Errorf("expired = %d, want 1", st.Expired)
	}
}

func TestInMemoryStore(t *testing.T) {
	cfg := config.DefaultConfig().Cache
	s, err := Open("", cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open in-memory: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), 1, time.Time{}, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Error("in-memory store lost the entry")
	}
}

func TestOverwriteReplacesRow(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("first"), 1, time.Time{}, time.Hour)
	s.Set(ctx, "k", []byte("second"), 2, time.Time{}, time.Hour)

	rec, ok, _ := s.Get(ctx, "k")
	if !ok {
		t.Fatal("entry missing")
	}
	if string(rec.Payload) != "second" || rec.ItemCount != 2 {
		t.Errorf("got %q count %d, want the replacement", rec.Payload, rec.ItemCount)
	}
	n, _ := s.Len(ctx)
	if n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

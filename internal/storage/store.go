// Package storage persists cached review payloads in SQLite with per-key
// TTLs. Payload and metadata share one row, so a write is atomic by
// construction. Expired rows are not removed eagerly: strict reads miss on
// them, but they stay readable through the stale paths until Purge runs,
// giving degraded responses something to serve.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
)

const (
	encodingJSON = "json"
	encodingZstd = "json+zstd"
)

// Record is one stored entry with its payload already decompressed.
type Record struct {
	Key        string
	Payload    []byte
	ItemCount  int
	NewestItem time.Time
	WrittenAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record's TTL has lapsed at the given moment.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store is the SQLite-backed key-value store.
type Store struct {
	conn *sql.DB
	cfg  config.CacheConfig
	log  *logging.Logger
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	now  func() time.Time
}

// memSeq distinguishes in-memory databases; a fixed shared-cache DSN would
// alias every store opened in the process onto one table.
var memSeq atomic.Int64

// Open opens or creates the database. An empty path selects a private
// in-memory database, used by tests and the one-shot CLI commands.
func Open(path string, cfg config.CacheConfig, log *logging.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:sn111mem%d?mode=memory&cache=shared", memSeq.Add(1))
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == "" {
		// A shared in-memory database disappears when its last connection
		// closes; a single connection keeps it alive and consistent.
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init decompressor: %w", err)
	}

	log.Info("store opened", map[string]interface{}{
		"path": dsn,
	})
	return &Store{
		conn: conn,
		cfg:  cfg,
		log:  log,
		enc:  enc,
		dec:  dec,
		now:  time.Now,
	}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS review_cache (
	key         TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	encoding    TEXT NOT NULL DEFAULT 'json',
	item_count  INTEGER NOT NULL DEFAULT 0,
	newest_item TEXT,
	written_at  TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_cache_expires ON review_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_review_cache_written ON review_cache(written_at);
`

// WithClock overrides the store's clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Set writes one entry. Payloads at or above the configured threshold are
// stored zstd-compressed.
func (s *Store) Set(ctx context.Context, key string, payload []byte, itemCount int, newestItem time.Time, ttl time.Duration) error {
	encoding := encodingJSON
	stored := payload
	if s.cfg.CompressionThresholdBytes > 0 && len(payload) >= s.cfg.CompressionThresholdBytes {
		stored = s.enc.EncodeAll(payload, nil)
		encoding = encodingZstd
	}

	now := s.now()
	var newest sql.NullString
	if !newestItem.IsZero() {
		newest = sql.NullString{String: newestItem.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO review_cache (key, payload, encoding, item_count, newest_item, written_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, key, stored, encoding, itemCount, newest,
		now.UTC().Format(time.RFC3339),
		now.Add(ttl).UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

// Get returns an unexpired entry. An expired row is a miss; when it is also
// past the retention horizon it is deleted on the way out.
func (s *Store) Get(ctx context.Context, key string) (*Record, bool, error) {
	rec, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	now := s.now()
	if rec.Expired(now) {
		if rec.WrittenAt.Before(now.Add(-s.cfg.RetentionHorizon())) {
			if _, err := s.conn.ExecContext(ctx, "DELETE FROM review_cache WHERE key = ?", key); err != nil {
				s.log.Warn("lazy eviction failed", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		}
		return nil, false, nil
	}
	return rec, true, nil
}

// GetStale returns an entry regardless of expiry, as long as it was written
// within the retention horizon.
func (s *Store) GetStale(ctx context.Context, key string) (*Record, bool, error) {
	rec, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if rec.WrittenAt.Before(s.now().Add(-s.cfg.RetentionHorizon())) {
		return nil, false, nil
	}
	return rec, true, nil
}

// GetNewestByPrefix returns the most recently written entry whose key starts
// with prefix, expired or not, within the retention horizon. This is the
// read behind emergency fallbacks, where any copy beats none.
func (s *Store) GetNewestByPrefix(ctx context.Context, prefix string) (*Record, bool, error) {
	horizon := s.now().Add(-s.cfg.RetentionHorizon()).UTC().Format(time.RFC3339)
	row := s.conn.QueryRowContext(ctx, `
		SELECT key, payload, encoding, item_count, newest_item, written_at, expires_at
		FROM review_cache
		WHERE key LIKE ? ESCAPE '\' AND written_at >= ?
		ORDER BY written_at DESC
		LIMIT 1
	`, escapeLike(prefix)+"%", horizon)
	return s.scan(row)
}

// Purge removes rows that are expired and were written before the horizon.
func (s *Store) Purge(ctx context.Context, horizon time.Duration) (int64, error) {
	now := s.now()
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM review_cache WHERE expires_at < ? AND written_at < ?
	`, now.UTC().Format(time.RFC3339), now.Add(-horizon).UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("store purged", map[string]interface{}{
			"removed": n,
		})
	}
	return n, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// StoreStats describes the table for diagnostics.
type StoreStats struct {
	Entries   int   `json:"entries"`
	Expired   int   `json:"expired"`
	SizeBytes int64 `json:"sizeBytes"`
}

// Stats summarizes the table.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	var st StoreStats
	now := s.now().UTC().Format(time.RFC3339)
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(LENGTH(payload)), 0)
		FROM review_cache
	`, now).Scan(&st.Entries, &st.Expired, &st.SizeBytes)
	if err != nil {
		return StoreStats{}, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.conn.Close()
}

func (s *Store) load(ctx context.Context, key string) (*Record, bool, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT key, payload, encoding, item_count, newest_item, written_at, expires_at
		FROM review_cache
		WHERE key = ?
	`, key)
	return s.scan(row)
}

func (s *Store) scan(row *sql.Row) (*Record, bool, error) {
	var (
		rec       Record
		encoding  string
		newest    sql.NullString
		writtenAt string
		expiresAt string
	)
	err := row.Scan(&rec.Key, &rec.Payload, &encoding, &rec.ItemCount, &newest, &writtenAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read entry: %w", err)
	}

	if encoding == encodingZstd {
		decoded, err := s.dec.DecodeAll(rec.Payload, nil)
		if err != nil {
			return nil, false, fmt.Errorf("decompress entry %s: %w", rec.Key, err)
		}
		rec.Payload = decoded
	}

	if rec.WrittenAt, err = time.Parse(time.RFC3339, writtenAt); err != nil {
		return nil, false, fmt.Errorf("invalid written_at for %s: %w", rec.Key, err)
	}
	if rec.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, false, fmt.Errorf("invalid expires_at for %s: %w", rec.Key, err)
	}
	if newest.Valid {
		if rec.NewestItem, err = time.Parse(time.RFC3339, newest.String); err != nil {
			return nil, false, fmt.Errorf("invalid newest_item for %s: %w", rec.Key, err)
		}
	}
	return &rec, true, nil
}

// escapeLike neutralizes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/tranmanhhung/sn111/internal/cache"
	"github.com/tranmanhhung/sn111/internal/errors"
	"github.com/tranmanhhung/sn111/internal/miner"
	"github.com/tranmanhhung/sn111/internal/predictor"
	"github.com/tranmanhhung/sn111/internal/version"
)

// maxAdminPrefetchPlaces caps one admin prefetch request.
const maxAdminPrefetchPlaces = 1000

// handleReviews serves GET /api/reviews, the primary mining endpoint.
// Degraded results are HTTP 200; only full pipeline exhaustion maps to
// an error status.
func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := parseReviewParams(r)
	if err != nil {
		WriteMinerError(w, err)
		return
	}

	res := s.svc.HandleReviewRequest(r.Context(), miner.Request{
		PlaceID: params.PlaceID,
		Locale:  params.Locale,
		Sort:    params.Sort,
		Timeout: params.Timeout,
	})

	s.metrics.ObserveServe(res.Source, res.CollectionTimeMs)

	status := http.StatusOK
	if res.Status == miner.StatusError {
		status = MapErrorToStatus(res.Code)
	}
	WriteJSON(w, status, res)
}

// ResolveResponse is the payload of the resolve endpoint.
type ResolveResponse struct {
	Query   string `json:"query"`
	PlaceID string `json:"placeId"`
}

// handleResolve serves GET /api/resolve, mapping a free-text query to a
// place id.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		BadRequest(w, "query is required")
		return
	}

	placeID, err := s.svc.Resolve(r.Context(), query, r.URL.Query().Get("locale"))
	if err != nil {
		WriteMinerError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ResolveResponse{Query: query, PlaceID: placeID})
}

// PoolStats reports session pool capacity.
type PoolStats struct {
	Size      int `json:"size"`
	Available int `json:"available"`
}

// MemoryStats reports process memory usage.
type MemoryStats struct {
	AllocMB      uint64 `json:"allocMb"`
	TotalAllocMB uint64 `json:"totalAllocMb"`
	SysMB        uint64 `json:"sysMb"`
	NumGC        uint32 `json:"numGc"`
	NumGoroutine int    `json:"numGoroutine"`
}

// StatsResponse aggregates operational counters across the subsystems.
type StatsResponse struct {
	Cache         cache.Stats          `json:"cache"`
	Predictor     *predictor.Stats     `json:"predictor,omitempty"`
	Prefetch      *miner.PrefetchStats `json:"prefetch,omitempty"`
	Pool          *PoolStats           `json:"pool,omitempty"`
	UptimeSeconds float64              `json:"uptimeSeconds"`
	Memory        MemoryStats          `json:"memory"`
}

// handleStats serves GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatsResponse{
		Cache:         s.svc.Cache().Stats(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Memory: MemoryStats{
			AllocMB:      memStats.Alloc / 1024 / 1024,
			TotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			SysMB:        memStats.Sys / 1024 / 1024,
			NumGC:        memStats.NumGC,
			NumGoroutine: runtime.NumGoroutine(),
		},
	}

	if s.predictor != nil {
		ps := s.predictor.Stats()
		resp.Predictor = &ps
	}
	if s.prefetcher != nil {
		fs := s.prefetcher.Stats()
		resp.Prefetch = &fs
	}
	if s.pool != nil {
		resp.Pool = &PoolStats{Size: s.pool.Size(), Available: s.pool.Available()}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// AdminPrefetchRequest is the body of the admin prefetch endpoint.
type AdminPrefetchRequest struct {
	PlaceIDs []string `json:"placeIds"`
}

// AdminPrefetchResponse reports what the warm pass did.
type AdminPrefetchResponse struct {
	Requested int `json:"requested"`
	Refreshed int `json:"refreshed"`
}

// handleAdminPrefetch serves POST /admin/prefetch: warm the cache for an
// explicit list of place ids.
func (s *Server) handleAdminPrefetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AdminPrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}
	if len(req.PlaceIDs) == 0 {
		BadRequest(w, "placeIds is required")
		return
	}
	if len(req.PlaceIDs) > maxAdminPrefetchPlaces {
		BadRequest(w, "too many placeIds")
		return
	}

	refreshed := s.svc.Warm(r.Context(), req.PlaceIDs)

	s.log.Info("admin prefetch finished", map[string]interface{}{
		"requested": len(req.PlaceIDs),
		"refreshed": refreshed,
		"requestId": GetRequestID(r.Context()),
	})

	WriteJSON(w, http.StatusOK, AdminPrefetchResponse{
		Requested: len(req.PlaceIDs),
		Refreshed: refreshed,
	})
}

// AdminPurgeResponse reports how many expired entries were removed.
type AdminPurgeResponse struct {
	Removed int64 `json:"removed"`
}

// handleAdminPurge serves POST /admin/cache/purge: drop entries past the
// retention horizon.
func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "store not configured", errors.StoreUnavailable)
		return
	}

	removed, err := s.store.Purge(r.Context(), s.cfg.Cache.RetentionHorizon())
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "purge failed", errors.StoreUnavailable)
		return
	}

	s.log.Info("admin purge finished", map[string]interface{}{
		"removed":   removed,
		"requestId": GetRequestID(r.Context()),
	})

	WriteJSON(w, http.StatusOK, AdminPurgeResponse{Removed: removed})
}

// versionString reports the running build for health responses.
func versionString() string {
	return version.Version
}

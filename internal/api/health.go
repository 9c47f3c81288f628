package api

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadyResponse is the readiness payload. Backends maps each dependency
// to whether it is currently usable.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Backends  map[string]bool   `json:"backends"`
	Details   map[string]string `json:"details,omitempty"`
}

// handleHealth serves GET /health. It reports liveness only; a healthy
// process may still be unready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   versionString(),
	})
}

// handleReady serves GET /ready. Ready means the session pool holds at
// least one session and the store answers queries.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backends := map[string]bool{}
	details := map[string]string{}

	poolReady := s.pool != nil && s.pool.Size() >= 1
	backends["pool"] = poolReady
	if !poolReady {
		details["pool"] = "no browser sessions available"
	}

	storeReady := false
	if s.store != nil {
		if _, err := s.store.Len(r.Context()); err == nil {
			storeReady = true
		} else {
			details["store"] = err.Error()
		}
	} else {
		details["store"] = "store not configured"
	}
	backends["store"] = storeReady

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Backends:  backends,
	}
	status := http.StatusOK
	if !poolReady || !storeReady {
		resp.Status = "degraded"
		resp.Details = details
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, status, resp)
}

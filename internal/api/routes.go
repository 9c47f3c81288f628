package api

// registerRoutes registers all API routes.
func (s *Server) registerRoutes() {
	// Health and readiness checks
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ready", s.handleReady)

	// Mining endpoints
	s.router.HandleFunc("/api/reviews", s.handleReviews) // GET ?placeId=...&locale=...&sort=...&timeout=...
	s.router.HandleFunc("/api/resolve", s.handleResolve) // GET ?query=...

	// Diagnostics
	s.router.HandleFunc("/stats", s.handleStats)
	s.router.HandleFunc("/metrics", s.handleMetrics)

	// Admin operations, token guarded
	s.router.HandleFunc("/admin/prefetch", s.requireAdmin(s.handleAdminPrefetch))
	s.router.HandleFunc("/admin/cache/purge", s.requireAdmin(s.handleAdminPurge))
}

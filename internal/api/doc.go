// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET /health and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /search/john-smith for a single timed search.
//   - GET /performance/search for the streamed repeated-search run.
//   - GET /db-test and /db-stats for connectivity checks during development.
package api

// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - POST/GET /api/analyze-website to start an analysis and poll its log.
//   - POST /api/search-website and GET /websites/{domain}.json for results.
//   - GET /api/analyses for the run index.
//   - GET /healthz, /readyz and /metrics for health checks and Prometheus.
package api

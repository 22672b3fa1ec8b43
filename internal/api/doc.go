// Package api hosts the HTTP trigger for crawls. Routes:
//   - POST /v1/crawl runs one crawl and returns its report.
//   - GET /healthz reports liveness, running crawls and browser pool occupancy.
//   - GET /metrics for Prometheus scraping.
package api

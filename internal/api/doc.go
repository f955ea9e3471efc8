// Package api hosts the operator HTTP server. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/crawlers and POST /v1/crawlers/{name}/halt for live engine
//     status and operator halts.
//   - GET /v1/runs and /v1/runs/{run_id} for persisted run progress via the
//     store.RunRepository interface.
//   - GET /v1/platform/rate-limit for the Riot API's latest rate-limit headers.
package api

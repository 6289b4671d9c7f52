// Package server exposes the graph service over HTTP using Gin behind a
// ServeMux, served over HTTP/1.1 and h2c.
//
// Success bodies use the {"data": ...} envelope and failures the
// {"error": {code, message, retryable, details}} envelope with the status of
// the AppError. Failed runs report the run id and partial state in details.
//
// # Middleware
//
// Applied around the root handler (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and context propagation
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body limits
//   - RequestLogger: request logging with duration
//
// Applied on the Gin engine: Tracing, Metrics and per-client RateLimit.
//
// # Endpoints
//
// Graph API (Handlers.Register) plus the system endpoints registered by
// RegisterDefaultEndpoints: /health, /alive, /ready, /info, /version and
// /metrics.
package server

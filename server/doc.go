// Package server provides the HTTP server of whisper-server: Gin routes on
// a root ServeMux, served over HTTP/1.1 and h2c.
//
// # Middleware
//
// The server-level chain (server/middleware), outermost first:
//
//   - RequestID: request ID generation and propagation
//   - Tracing: one server span per request
//   - RequestLogger: request logging with status, size and duration
//   - Recovery: panic recovery into a 500 error envelope
//   - TrustedHosts: Host header allow-list
//   - CORS: cross-origin headers and preflight
//   - BodySizeLimit: request body cap
//
// Metrics runs inside Gin so series are labelled by route template.
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /alive, /ready, /info and
// /metrics.
package server

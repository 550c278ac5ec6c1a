// Package component defines the lifecycle contract shared by the parts of
// the server that own resources: the HTTP server, the engine cache, and the
// tracer provider.
//
// A Registry starts components in registration order, stops them in
// reverse, and aggregates their health for the /health endpoint.
package component

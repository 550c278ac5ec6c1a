// Package bootstrap runs a service through its lifecycle: start registered
// components in order, run hooks and configure callbacks, print a startup
// summary, wait for a shutdown signal, then stop everything in reverse
// order within a graceful timeout.
package bootstrap

// Package validation wraps go-playground/validator and converts failures
// into AppErrors whose details list every failed field.
//
// Besides the built-in tags it registers "language", which accepts an empty
// value, "auto", or an ISO 639 code with an optional region.
package validation

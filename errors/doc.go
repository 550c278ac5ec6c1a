// Package errors defines the error type shared by the transcription core and
// the HTTP layer. Each AppError carries a machine-readable code, the status to
// respond with, and an optional cause that is logged but never serialized.
//
// Request errors (missing or malformed audio, size bounds, unsupported model)
// map to 400. Processing errors (scratch writes, engine loading, inference)
// map to 500 with a generic message.
package errors

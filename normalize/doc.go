// Package normalize turns client audio into the 16 kHz mono WAV the
// engines expect.
//
// Normalization is best effort. Every implementation reports failure with a
// false result instead of an error, and callers fall back to the original
// file.
package normalize

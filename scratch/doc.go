// Package scratch manages the transient files that hold one request's
// audio while it is normalized and transcribed.
package scratch

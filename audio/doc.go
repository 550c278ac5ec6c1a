// Package audio inspects client audio payloads.
//
// Sniff guesses a container format from leading bytes using a fixed
// signature table; it never fails and falls back to mp3. A Gatekeeper
// decodes and size-checks a base64 payload before anything is written to
// disk, and hands back the decoded Clip so callers never decode twice.
package audio

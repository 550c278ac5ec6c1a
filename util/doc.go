// Package util holds small helpers shared across packages: size parsing,
// secret masking, and generic map and string utilities.
package util

package util

import (
	"strconv"
	"strings"
)

const (
	KB int64 = 1024
	MB       = 1024 * KB
	GB       = 1024 * MB
)

// ParseSize parses a human-readable size string ("10MB", "512KB", "2GB",
// "1024") into bytes. Returns defaultBytes if the string cannot be parsed.
func ParseSize(s string, defaultBytes int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBytes
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		size   int64
	}{{"GB", GB}, {"MB", MB}, {"KB", KB}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.size
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil || val < 0 {
		return defaultBytes
	}
	return val * multiplier
}

// MegabytesToBytes converts a whole number of megabytes to bytes.
func MegabytesToBytes(mb int) int64 {
	return int64(mb) * MB
}

// MaskSecret hides all but the first visiblePrefix characters of s.
func MaskSecret(s string, visiblePrefix int) string {
	if len(s) <= visiblePrefix {
		return "***"
	}
	return s[:visiblePrefix] + "***"
}

package middleware

import (
	"net/http"

	"github.com/kbukum/whisper-server/util"
)

// DefaultMaxBodySize fits a 10MB clip after base64 expansion plus the JSON
// around it.
const DefaultMaxBodySize = 32 * 1024 * 1024

// BodySizeLimit caps request bodies at maxSize ("32MB", "512KB"). Reads
// past the cap fail with *http.MaxBytesError, which handlers report as 413.
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, DefaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > size {
				w.Header().Set("Connection", "close")
			}
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}

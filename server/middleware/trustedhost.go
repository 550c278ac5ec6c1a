package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/kbukum/whisper-server/errors"
)

// TrustedHosts rejects requests whose Host header is not in allowed with a
// 400 INVALID_HOST envelope. Entries match exactly, ignoring case and port;
// "*" allows everything and "*.example.com" allows any subdomain.
func TrustedHosts(allowed []string) Middleware {
	patterns := make([]string, 0, len(allowed))
	for _, a := range allowed {
		patterns = append(patterns, strings.ToLower(strings.TrimSpace(a)))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(r.Host, patterns) {
				writeError(w, errors.InvalidHost(r.Host))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(hostport string, patterns []string) bool {
	host := strings.ToLower(hostport)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "*."):
			if strings.HasSuffix(host, p[1:]) {
				return true
			}
		case p == host:
			return true
		}
	}
	return false
}

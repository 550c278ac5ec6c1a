package httpclient

import "net/http"

// Request describes an outbound request.
type Request struct {
	Method string
	// Path is joined to the base URL unless it is an absolute URL.
	Path    string
	Headers map[string]string
	// Body is an io.Reader, []byte, string, *MultipartBody, or any value
	// that is JSON encoded.
	Body any
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

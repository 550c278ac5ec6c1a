// Package httpclient is the client engine backends use to reach HTTP
// sidecars. It resolves paths against a base URL, encodes JSON and
// multipart bodies, and turns non-2xx responses into classified errors.
//
//	c := httpclient.New(httpclient.Config{BaseURL: "http://localhost:8387"})
//	resp, err := c.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
//	if httpclient.IsRetryable(err) {
//	    // try again later
//	}
package httpclient

// Package testutil runs a server.Server behind httptest with the full
// middleware chain, so tests exercise host checks, body limits and error
// envelopes the way a real client sees them.
//
//	srv := testutil.Start(t, servertest.NewComponent(nil))
//	srv.GinEngine().GET("/hello", handler)
//	resp, _ := http.Get(srv.BaseURL() + "/hello")
package testutil

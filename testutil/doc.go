// Package testutil holds helpers shared by package tests: audio fixtures
// that pass format sniffing and a lifecycle helper that ties a component to
// a test's cleanup.
//
//	func TestTranscribe(t *testing.T) {
//	    srv := testutil.Start(t, servertest.NewComponent(register))
//	    body := testutil.Base64MP3(4096)
//	    ...
//	}
package testutil

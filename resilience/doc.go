// Package resilience provides the two fault-tolerance patterns the server
// relies on:
//
//   - Bulkhead bounds concurrent inference calls into one cached engine.
//   - Retry polls engine backends with exponential backoff while they load.
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4, MaxWait: time.Minute})
//	text, err := resilience.ExecuteWithResult(ctx, bh, func() (string, error) {
//	    return eng.Transcribe(ctx, path, params)
//	})
package resilience

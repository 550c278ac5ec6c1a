package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// occupy takes every slot of b until the returned func is called.
func occupy(t *testing.T, b *Bulkhead) (release func()) {
	t.Helper()
	done := make(chan struct{})
	var started sync.WaitGroup
	for i := 0; i < b.MaxConcurrent(); i++ {
		started.Add(1)
		go func() {
			_ = b.Execute(context.Background(), func() error {
				started.Done()
				<-done
				return nil
			})
		}()
	}
	started.Wait()
	return func() { close(done) }
}

func TestBulkhead_BoundsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "whisper-1", MaxConcurrent: 2, MaxWait: time.Second})

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	var rejected atomic.Value
	b := NewBulkhead(BulkheadConfig{
		Name:          "whisper-1",
		MaxConcurrent: 1,
		OnReject:      func(name string, err error) { rejected.Store(name) },
	})
	release := occupy(t, b)
	defer release()

	err := b.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if rejected.Load() != "whisper-1" {
		t.Errorf("expected OnReject with bulkhead name, got %v", rejected.Load())
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	release := occupy(t, b)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	start := time.Now()
	if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected queued call to succeed, got %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("expected the call to wait for the slot")
	}
}

func TestBulkhead_TimesOutWaiting(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	release := occupy(t, b)
	defer release()

	err := b.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestBulkhead_RespectsContext(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Minute})
	release := occupy(t, b)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := b.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline, got %v", err)
	}
	if called {
		t.Error("fn must not run without a slot")
	}
}

func TestBulkhead_AvailableAndInUse(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 3})
	if b.Available() != 3 || b.InUse() != 0 {
		t.Fatalf("unexpected initial state: available=%d inUse=%d", b.Available(), b.InUse())
	}
	release := occupy(t, b)
	if b.Available() != 0 || b.InUse() != 3 {
		t.Errorf("expected full bulkhead, available=%d inUse=%d", b.Available(), b.InUse())
	}
	release()
}

func TestBulkhead_MinimumWidth(t *testing.T) {
	if got := NewBulkhead(BulkheadConfig{MaxConcurrent: 0}).MaxConcurrent(); got != 1 {
		t.Errorf("expected width 1, got %d", got)
	}
}

func TestExecuteWithResult(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	text, err := ExecuteWithResult(context.Background(), b, func() (string, error) {
		return "hello", nil
	})
	if err != nil || text != "hello" {
		t.Errorf("got %q, %v", text, err)
	}
}

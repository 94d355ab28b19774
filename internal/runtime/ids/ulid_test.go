package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewCorrelationIDSequentialOrdering(t *testing.T) {
	const total = 100
	ids := make([]string, total)
	for i := range ids {
		ids[i] = NewCorrelationID()
	}

	for i, id := range ids {
		if len(id) != 26 {
			t.Fatalf("expected ULID length 26, got %d", len(id))
		}
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("expected valid ULID at %d, got %v", i, err)
		}
	}

	for i := 1; i < total; i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("expected correlation ids to be strictly increasing, %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestNewCorrelationIDConcurrentUniqueness(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range perGoroutine {
				id := NewCorrelationID()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("duplicate correlation id generated: %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestCorrelationTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewCorrelationID()

	ts, err := CorrelationTime(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("timestamp %v outside expected window", ts)
	}

	if _, err := CorrelationTime("not-a-ulid"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

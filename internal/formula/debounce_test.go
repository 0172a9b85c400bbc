package formula

import (
	"sync"
	"testing"
	"time"
)

func TestCompileQueueLatestRequestWins(t *testing.T) {
	var mu sync.Mutex
	var delivered []CompilationResult
	done := make(chan struct{}, 8)

	q := NewCompileQueue(50*time.Millisecond, func(res CompilationResult) {
		mu.Lock()
		delivered = append(delivered, res)
		mu.Unlock()
		done <- struct{}{}
	})

	// Rapid-fire edits: two broken drafts, then the final version.
	q.Submit(`function calculateScore(ctx) { return 1 +; }`)
	q.Submit(`function calculateScore(ctx) { return 2 +; }`)
	q.Submit(`function calculateScore(ctx) { return 3; }`)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no compile result delivered")
	}
	// Allow any stray deliveries to surface.
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 {
		t.Fatalf("expected exactly 1 delivered result, got %d", len(delivered))
	}
	if !delivered[0].OK {
		t.Errorf("expected the final draft to compile, got %s", delivered[0].Error)
	}
}

func TestCompileQueueDiscardStaleResult(t *testing.T) {
	results := make(chan CompilationResult, 8)
	q := NewCompileQueue(20*time.Millisecond, func(res CompilationResult) {
		results <- res
	})

	q.Submit(`function calculateScore(ctx) { return 1; }`)
	// Wait out the quiet period so the first compile is delivered, then
	// submit again.
	select {
	case res := <-results:
		if !res.OK {
			t.Fatalf("first compile failed: %s", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first result not delivered")
	}

	q.Submit(`function calculateScore(ctx) { return 2; }`)
	select {
	case res := <-results:
		if !res.OK {
			t.Fatalf("second compile failed: %s", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second result not delivered")
	}
}

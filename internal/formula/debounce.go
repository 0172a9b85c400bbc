package formula

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultDebounce is the quiet period before an edited source is compiled.
const DefaultDebounce = 300 * time.Millisecond

// CompileQueue serializes rapid successive compile requests from a formula
// editor. Submissions within the quiet period supersede each other, and a
// generation counter guarantees latest-request-wins even when an older
// compile is still in flight: stale results are discarded, never delivered.
type CompileQueue struct {
	mu        sync.Mutex
	debounced func(func())
	gen       uint64
	deliver   func(CompilationResult)
}

// NewCompileQueue creates a queue delivering results to the given callback.
// The callback runs on the queue's goroutine; wait <= 0 uses
// DefaultDebounce.
func NewCompileQueue(wait time.Duration, deliver func(CompilationResult)) *CompileQueue {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &CompileQueue{
		debounced: debounce.New(wait),
		deliver:   deliver,
	}
}

// Submit schedules source for compilation after the quiet period. A newer
// Submit cancels this one's delivery.
func (q *CompileQueue) Submit(source string) {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.mu.Unlock()

	q.debounced(func() {
		result := Compile(source)

		q.mu.Lock()
		stale := gen != q.gen
		q.mu.Unlock()
		if stale {
			return
		}
		q.deliver(result)
	})
}

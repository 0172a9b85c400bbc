package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds one formula invocation's wall clock.
const DefaultTimeout = 1 * time.Second

const maxLogEntries = 500

// LogEntry is a single debug message captured from inside the sandbox.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Options configures one sandbox invocation.
type Options struct {
	// Timeout is the wall-clock budget; DefaultTimeout when zero.
	Timeout time.Duration
	// Debug captures log()/console.log output from inside the sandbox.
	// Strictly observational and materially slower; never changes the score.
	Debug bool
}

// ExecResult is the outcome of one sandbox invocation.
type ExecResult struct {
	Score    float64         `json:"score"`
	Duration time.Duration   `json:"duration"`
	Err      *ExecutionError `json:"error,omitempty"`
	Logs     []LogEntry      `json:"logs,omitempty"`
}

// Execute runs a compiled formula against a board snapshot.
//
// Every invocation gets a fresh goja runtime, so no variables, caches or
// other state survive between runs — back-to-back executions of different
// conditions (or repeated test runs) are fully isolated. Exceptions, budget
// overruns and non-finite results are converted into ExecutionError; this
// function never panics on formula misbehavior.
func Execute(program *goja.Program, snap *Snapshot, opts Options) ExecResult {
	if program == nil {
		return ExecResult{Err: &ExecutionError{Message: "formula has no compiled artifact"}}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rt := goja.New()
	if err := blockGlobals(rt); err != nil {
		return ExecResult{Err: &ExecutionError{Message: err.Error()}}
	}
	var logs *logBuffer
	if opts.Debug {
		logs = installLogCapture(rt)
	} else {
		installLogNoop(rt)
	}

	start := time.Now()
	score, execErr := runInterruptible(rt, timeout, func() (float64, error) {
		if _, err := rt.RunProgram(program); err != nil {
			return 0, fmt.Errorf("formula initialization: %w", err)
		}

		fn := rt.Get(EntryFunction)
		if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
			return 0, fmt.Errorf("%s() is not defined", EntryFunction)
		}
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return 0, fmt.Errorf("%s is not a function", EntryFunction)
		}

		ctx := buildContext(rt, snap)
		result, err := callable(goja.Undefined(), ctx)
		if err != nil {
			return 0, fmt.Errorf("%s() error: %w", EntryFunction, err)
		}
		return result.ToFloat(), nil
	})
	duration := time.Since(start)

	res := ExecResult{Duration: duration}
	if logs != nil {
		res.Logs = logs.entries()
	}
	if execErr != nil {
		res.Err = execErr
		return res
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		res.Err = &ExecutionError{Message: fmt.Sprintf("%s() returned a non-finite result", EntryFunction)}
		return res
	}
	res.Score = score
	return res
}

// runInterruptible executes fn with a watchdog that interrupts the runtime
// once the budget elapses.
func runInterruptible(rt *goja.Runtime, timeout time.Duration, fn func() (float64, error)) (float64, *ExecutionError) {
	type outcome struct {
		score float64
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		score, err := fn()
		done <- outcome{score, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return 0, toExecutionError(out.err)
		}
		return out.score, nil
	case <-time.After(timeout):
		rt.Interrupt("formula execution timeout")
		// Give the interrupted goroutine a moment to unwind.
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
		}
		return 0, &ExecutionError{
			Message:  fmt.Sprintf("formula exceeded its %s execution budget", timeout),
			TimedOut: true,
		}
	}
}

func toExecutionError(err error) *ExecutionError {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ExecutionError{Message: "formula execution interrupted", TimedOut: true}
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &ExecutionError{Message: exception.Error()}
	}
	return &ExecutionError{Message: err.Error()}
}

// constructorScrub severs the prototype route to the Function constructor.
// A walk like ([]).constructor.constructor resolves through
// Function.prototype and reaches dynamic evaluation without naming any
// banned global; undefining the link makes the walk dead-end at runtime
// even when the source dodged the static deny-list with computed names.
const constructorScrub = `(function () {
	"use strict";
	var fp = Object.getPrototypeOf(function () {});
	Object.defineProperty(fp, "constructor", { value: undefined });
})();`

// blockGlobals nulls out capability-escaping globals at runtime and severs
// the constructor route to dynamic evaluation. The static deny-list already
// rejects sources naming these; this is the second layer for anything
// reached indirectly.
func blockGlobals(rt *goja.Runtime) error {
	for _, name := range []string{
		"eval", "Function", "require", "fetch", "XMLHttpRequest",
		"WebSocket", "setTimeout", "setInterval", "setImmediate",
		"globalThis", "localStorage", "sessionStorage", "indexedDB",
	} {
		rt.Set(name, goja.Undefined())
	}
	if _, err := rt.RunString(constructorScrub); err != nil {
		return fmt.Errorf("sandbox hardening failed: %w", err)
	}
	return nil
}

type logBuffer struct {
	mu   sync.Mutex
	logs []LogEntry
}

func (b *logBuffer) append(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.logs) >= maxLogEntries {
		b.logs = b.logs[1:]
	}
	b.logs = append(b.logs, LogEntry{Time: time.Now(), Message: msg})
}

func (b *logBuffer) entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.logs))
	copy(out, b.logs)
	return out
}

// installLogCapture registers log() and console.log, appending to a
// bounded buffer.
func installLogCapture(rt *goja.Runtime) *logBuffer {
	buf := &logBuffer{}
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		buf.append(strings.Join(parts, " "))
		return goja.Undefined()
	}
	rt.Set("log", logFn)
	console := rt.NewObject()
	console.Set("log", rt.Get("log"))
	rt.Set("console", console)
	return buf
}

// installLogNoop keeps log()/console.log callable outside debug mode so
// formulas that log don't fail, without paying for capture.
func installLogNoop(rt *goja.Runtime) {
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	rt.Set("log", noop)
	console := rt.NewObject()
	console.Set("log", rt.Get("log"))
	rt.Set("console", console)
}

// Package harness is the built-in soft-assertion test harness handed to
// hot-reloaded scripts. Failed assertions are recorded rather than thrown,
// so one iteration can report several of them.
package harness

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Recorder collects soft failures. The run loop resets it before each
// invocation and diffs successive snapshots to report only new failures.
type Recorder struct {
	mu       sync.Mutex
	failures []string
	logf     func(string)
	steps    []string
	pending  []pendingStep
}

// pendingStep is an async step whose promise had not settled when the step
// callback returned.
type pendingStep struct {
	path    string
	promise *goja.Promise
}

// NewRecorder creates a recorder. logf receives test.log() output and may be nil.
func NewRecorder(logf func(string)) *Recorder {
	return &Recorder{logf: logf}
}

// Failures returns a copy of every failure recorded so far.
func (r *Recorder) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.failures))
	copy(out, r.failures)
	return out
}

// Reset drops all recorded failures and forgets unsettled async steps.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = nil
	r.pending = nil
}

// Settle records the outcome of async steps that were still pending when
// their callback returned. The run loop calls it once the invocation and
// its job queue have finished: a rejected step becomes a failure, and a
// step that is still pending is reported as never settling.
func (r *Recorder) Settle() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, step := range pending {
		switch step.promise.State() {
		case goja.PromiseStateRejected:
			r.recordAt(step.path, rejection(step.promise))
		case goja.PromiseStatePending:
			r.recordAt(step.path, "step returned a promise that did not settle")
		}
	}
}

func (r *Recorder) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, withPath(r.steps, msg))
}

func (r *Recorder) recordAt(path, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path != "" {
		msg = path + ": " + msg
	}
	r.failures = append(r.failures, msg)
}

func withPath(steps []string, msg string) string {
	if len(steps) == 0 {
		return msg
	}
	return strings.Join(steps, " > ") + ": " + msg
}

func rejection(p *goja.Promise) string {
	reason := p.Result()
	if reason == nil || goja.IsUndefined(reason) {
		return "promise rejected"
	}
	return reason.String()
}

// Test returns the test-declaration handle exposed to scripts as `test`.
func (r *Recorder) Test() *TestHandle {
	return &TestHandle{r: r}
}

// Expect is the assertion helper exposed to scripts as `expect`.
func (r *Recorder) Expect(actual interface{}) *Assertion {
	return newAssertion(r, actual)
}

// Bindings returns the values injected into scripts as `test` and `expect`.
func (r *Recorder) Bindings() (interface{}, interface{}) {
	return r.Test(), r.Expect
}

// TestHandle is the `test` object seen by scripts.
type TestHandle struct {
	r *Recorder
}

// Log prints its arguments space-separated through the recorder's logf.
func (t *TestHandle) Log(args ...interface{}) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	if t.r.logf != nil {
		t.r.logf(strings.Join(parts, " "))
	}
}

// Fail records a failure directly.
func (t *TestHandle) Fail(message string) {
	t.r.record(message)
}

// Step runs fn as a named step. An error thrown by fn becomes a failure
// prefixed with the step path and does not propagate. When fn is async,
// an already rejected promise is recorded at once and a pending one is
// checked by Settle after the invocation.
func (t *TestHandle) Step(name string, fn func() (interface{}, error)) {
	t.r.mu.Lock()
	t.r.steps = append(t.r.steps, name)
	path := strings.Join(t.r.steps, " > ")
	t.r.mu.Unlock()

	defer func() {
		t.r.mu.Lock()
		t.r.steps = t.r.steps[:len(t.r.steps)-1]
		t.r.mu.Unlock()
	}()

	if fn == nil {
		return
	}
	result, err := fn()
	if err != nil {
		t.r.record(err.Error())
		return
	}

	p, ok := result.(*goja.Promise)
	if !ok {
		return
	}
	switch p.State() {
	case goja.PromiseStateRejected:
		t.r.record(rejection(p))
	case goja.PromiseStatePending:
		t.r.mu.Lock()
		t.r.pending = append(t.r.pending, pendingStep{path: path, promise: p})
		t.r.mu.Unlock()
	}
}

// Package runloop drives a hot-reload session: it rebuilds the bundle when
// its sources change, invokes the entry point, reports new failures and
// sleeps, until the session is halted or times out.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/pkg/bundler"
	"github.com/l3aro/hotbundle/pkg/cache"
	"github.com/l3aro/hotbundle/pkg/dirty"
	"github.com/l3aro/hotbundle/pkg/engine"
	"github.com/l3aro/hotbundle/pkg/harness"
	"github.com/l3aro/hotbundle/pkg/jsvalue"
)

// DefaultInterval is the pause between iterations.
const DefaultInterval = time.Second

// Bundler produces a fresh bundle from the current sources.
type Bundler interface {
	Precompile(ctx context.Context) (*bundler.Result, error)
}

// Harness is the test harness whose failures the loop reports.
type Harness interface {
	// Failures returns every failure recorded so far, in order.
	Failures() []string
	// Bindings returns the values injected as `test` and `expect`.
	Bindings() (test interface{}, expect interface{})
}

// resetter is implemented by harnesses whose failures are per invocation.
type resetter interface {
	Reset()
}

// settler is implemented by harnesses that resolve async steps once the
// invocation has finished.
type settler interface {
	Settle()
}

// Reporter receives tagged diagnostics.
type Reporter interface {
	Emit(tag, message string)
}

// Options configures a Session.
type Options struct {
	Bundler     Bundler
	Sandbox     engine.Sandbox
	Harness     Harness
	Diagnostics Reporter
	Logger      log.Logger

	// Tracker skips the registration pass when no bundled file changed.
	// Nil always rebuilds.
	Tracker *dirty.Tracker

	Fixtures map[string]interface{}
	Interval time.Duration
	// Timeout bounds the whole session. Zero means no limit.
	Timeout time.Duration
}

// Status is a point-in-time view of a session.
type Status struct {
	Running     bool   `json:"running"`
	TestRunning bool   `json:"test_running"`
	Iteration   int    `json:"iteration"`
	Files       int    `json:"files"`
	HasEntry    bool   `json:"has_entry"`
	LastError   string `json:"last_error,omitempty"`
	// Cache is the sandbox's program cache counters, when it has one.
	Cache *cache.Stats `json:"cache,omitempty"`
}

// cacheStatser is implemented by sandboxes that cache compiled programs.
type cacheStatser interface {
	CacheStats() cache.Stats
}

// Session is the state of one hot-reload session. Its control methods are
// safe to call from any goroutine, including from inside the running script.
type Session struct {
	opts Options

	mu            sync.Mutex
	running       bool
	testRunning   bool
	stopToken     interface{}
	hasStopToken  bool
	lastBundle    string
	hasBundle     bool
	entry         engine.EntryPoint
	errorSnapshot []string
	lastCompile   string
	iteration     int
	files         int

	wake chan struct{}
}

// New creates a stopped session.
func New(opts Options) (*Session, error) {
	if opts.Bundler == nil {
		return nil, errors.New("runloop: bundler is required")
	}
	if opts.Sandbox == nil {
		return nil, errors.New("runloop: sandbox is required")
	}
	if opts.Harness == nil {
		opts.Harness = harness.NewRecorder(nil)
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = log.NewDiagnostics(os.Stdout, nil)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Fixtures == nil {
		opts.Fixtures = map[string]interface{}{}
	}

	return &Session{
		opts:        opts,
		testRunning: true,
		wake:        make(chan struct{}, 1),
	}, nil
}

// DoStart moves the session to Running. It is a no-op when already running.
// The stored stop token is kept.
func (s *Session) DoStart() {
	s.mu.Lock()
	changed := !s.running
	s.running = true
	s.mu.Unlock()

	if changed {
		s.opts.Logger.Debug("session started")
		s.notify()
	}
}

// DoStop stops the session unless token equals the last stop token, in
// which case the signal is a repeat and nothing happens. Numeric tokens
// compare by value, so a script's doStop(3) and a control request carrying
// the JSON number 3 are the same token.
func (s *Session) DoStop(token interface{}) {
	token = jsvalue.Normalize(token)

	s.mu.Lock()
	if s.hasStopToken && reflect.DeepEqual(s.stopToken, token) {
		s.mu.Unlock()
		return
	}
	s.stopToken = token
	s.hasStopToken = true
	s.running = false
	s.mu.Unlock()

	s.opts.Logger.Debug("session stopped", "token", token)
}

// DoStopTest ends the whole session at the next check point.
func (s *Session) DoStopTest() {
	s.mu.Lock()
	s.testRunning = false
	s.mu.Unlock()

	s.opts.Logger.Debug("session halted")
	s.notify()
}

// IsRunning reports whether iterations are being executed.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsTestRunning reports whether the session has not been halted.
func (s *Session) IsTestRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testRunning
}

// Iteration returns the number of invocations so far.
func (s *Session) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	status := Status{
		Running:     s.running,
		TestRunning: s.testRunning,
		Iteration:   s.iteration,
		Files:       s.files,
		HasEntry:    s.entry != nil,
		LastError:   s.lastCompile,
	}
	s.mu.Unlock()

	if cs, ok := s.opts.Sandbox.(cacheStatser); ok {
		stats := cs.CacheStats()
		status.Cache = &stats
	}
	return status
}

// Start starts the session and runs it.
func (s *Session) Start(ctx context.Context) error {
	s.DoStart()
	return s.Run(ctx)
}

// Run drives iterations until DoStopTest is called or the timeout elapses,
// both of which return nil. Cancellation of ctx returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	for {
		if runCtx.Err() != nil || !s.IsTestRunning() {
			break
		}

		if s.IsRunning() {
			s.Step(runCtx)
		}

		s.sleep(runCtx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if runCtx.Err() != nil {
		s.opts.Logger.Info("session timed out", "timeout", s.opts.Timeout)
	}
	return nil
}

// Step runs one iteration without sleeping: refresh, invoke, report.
func (s *Session) Step(ctx context.Context) {
	s.refresh(ctx)
	s.invoke(ctx)
	s.reportFailures()
}

func (s *Session) sleep(ctx context.Context) {
	timer := time.NewTimer(s.opts.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-s.wake:
	}
}

func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// refresh rebuilds and recompiles the bundle when its sources changed.
func (s *Session) refresh(ctx context.Context) {
	s.mu.Lock()
	haveEntry := s.entry != nil
	s.mu.Unlock()

	var changed []string
	if haveEntry && s.opts.Tracker != nil {
		if !s.opts.Tracker.Changed() {
			return
		}
		changed = s.opts.Tracker.ChangedFiles()
	}

	result, err := s.opts.Bundler.Precompile(ctx)
	if err != nil {
		s.compilationFailed(err.Error())
		return
	}

	if s.opts.Tracker != nil {
		if err := s.opts.Tracker.Track(result.Files); err != nil {
			s.opts.Logger.Warn("tracking bundle files failed", "error", err)
		}
	}

	s.mu.Lock()
	s.files = len(result.Files)
	if s.hasBundle && s.lastBundle == result.Code {
		s.mu.Unlock()
		return
	}
	s.lastBundle = result.Code
	s.hasBundle = true
	s.mu.Unlock()

	for _, edge := range result.RemovedEdges {
		s.opts.Logger.Info("circular import ignored", "from", result.Rel(edge.From), "to", result.Rel(edge.To))
	}

	entry, err := s.opts.Sandbox.Compile(result.Code)
	if err != nil {
		s.compilationFailed(describeCompileError(err, result))
		return
	}

	s.mu.Lock()
	s.entry = entry
	s.lastCompile = ""
	s.mu.Unlock()

	rel := make([]string, len(changed))
	for i, path := range changed {
		rel[i] = result.Rel(path)
	}
	s.opts.Logger.Info("bundle rebuilt", "files", len(result.Files), "changed", rel)
}

func (s *Session) compilationFailed(msg string) {
	s.mu.Lock()
	repeat := s.lastCompile == msg
	s.lastCompile = msg
	s.mu.Unlock()

	if !repeat {
		s.opts.Diagnostics.Emit(log.TagCompilationError, msg)
	}
}

func (s *Session) invoke(ctx context.Context) {
	s.mu.Lock()
	entry := s.entry
	if entry == nil {
		s.mu.Unlock()
		return
	}
	s.iteration++
	iteration := s.iteration
	s.mu.Unlock()

	if r, ok := s.opts.Harness.(resetter); ok {
		r.Reset()
	}

	test, expect := s.opts.Harness.Bindings()
	inv := engine.Invocation{
		Test:       test,
		Expect:     expect,
		Fixtures:   s.opts.Fixtures,
		Iteration:  iteration,
		Controller: &controllerHandle{s: s},
	}

	if err := entry.Invoke(ctx, inv); err != nil {
		s.opts.Diagnostics.Emit(log.TagCodeError, err.Error())
	}
	if st, ok := s.opts.Harness.(settler); ok {
		st.Settle()
	}
}

// reportFailures prints the failures that were not in the previous
// snapshot. Failures are compared as a multiset, so a message that now
// occurs twice where it occurred once is reported once.
func (s *Session) reportFailures() {
	current := s.opts.Harness.Failures()

	s.mu.Lock()
	seen := make(map[string]int, len(s.errorSnapshot))
	for _, msg := range s.errorSnapshot {
		seen[msg]++
	}
	s.errorSnapshot = current
	s.mu.Unlock()

	for i, msg := range current {
		if seen[msg] > 0 {
			seen[msg]--
			continue
		}
		s.opts.Diagnostics.Emit(log.FailureTag(i+1), msg)
	}
}

// describeCompileError rewrites a bundle location into the source file the
// line came from.
func describeCompileError(err error, result *bundler.Result) string {
	var cerr *engine.CompileError
	if !errors.As(err, &cerr) || cerr.File != engine.BundleFileName || cerr.Line == 0 {
		return err.Error()
	}
	path, line, ok := result.Locate(cerr.Line)
	if !ok {
		return err.Error()
	}
	return fmt.Sprintf("%s:%d:%d: %s", result.Rel(path), line, cerr.Column, cerr.Message)
}

// controllerHandle is the `controller` object seen by scripts.
type controllerHandle struct {
	s *Session
}

func (c *controllerHandle) DoStart() { c.s.DoStart() }
func (c *controllerHandle) DoStop(token interface{}) { c.s.DoStop(token) }
func (c *controllerHandle) DoStopTest() { c.s.DoStopTest() }
func (c *controllerHandle) IsRunning() bool { return c.s.IsRunning() }
func (c *controllerHandle) IsTestRunning() bool { return c.s.IsTestRunning() }
func (c *controllerHandle) Iteration() int { return c.s.Iteration() }

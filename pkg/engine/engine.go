// Package engine compiles a flat bundle into a callable entry point.
//
// The capability boundary is the Sandbox interface: one method that turns
// bundle text into an EntryPoint. GojaSandbox is the in-process
// implementation, using esbuild to strip TypeScript and goja to evaluate.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dop251/goja"

	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/pkg/cache"
)

const (
	// DefaultEntryPoint is the top-level binding the bundle must define.
	DefaultEntryPoint = "hotReload"

	entrySlot = "__hotbundle_entry__"
)

// Invocation is the context handed to the entry point on every call.
type Invocation struct {
	Test       interface{}
	Expect     interface{}
	Fixtures   map[string]interface{}
	Iteration  int
	Controller interface{}
}

// EntryPoint is a compiled, callable entry point.
type EntryPoint interface {
	Invoke(ctx context.Context, inv Invocation) error
}

// Sandbox compiles bundle text into an EntryPoint.
type Sandbox interface {
	Compile(bundle string) (EntryPoint, error)
}

// GojaSandbox evaluates bundles in a fresh goja runtime per compilation.
type GojaSandbox struct {
	entryName   string
	programs    cache.Cache
	logger      log.Logger
	console     io.Writer
	evaluations atomic.Int64
}

// Option configures a GojaSandbox.
type Option func(*GojaSandbox)

// WithEntryPoint sets the name of the entry point binding.
func WithEntryPoint(name string) Option {
	return func(s *GojaSandbox) {
		if name != "" {
			s.entryName = name
		}
	}
}

// WithCache sets the compiled program cache.
func WithCache(c cache.Cache) Option {
	return func(s *GojaSandbox) {
		s.programs = c
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *GojaSandbox) {
		s.logger = l
	}
}

// WithConsole sends console output from scripts to w. Without it, console
// lines go to the logger.
func WithConsole(w io.Writer) Option {
	return func(s *GojaSandbox) {
		s.console = w
	}
}

// NewGojaSandbox creates a sandbox with a 32-entry program cache.
func NewGojaSandbox(opts ...Option) *GojaSandbox {
	s := &GojaSandbox{
		entryName: DefaultEntryPoint,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.programs == nil {
		s.programs = cache.New(cache.Options{MaxSize: 32})
	}
	return s
}

// Evaluations returns how many times a bundle has been evaluated.
func (s *GojaSandbox) Evaluations() int64 {
	return s.evaluations.Load()
}

// CacheStats returns the program cache counters.
func (s *GojaSandbox) CacheStats() cache.Stats {
	return s.programs.Stats()
}

// Compile transpiles and evaluates bundle, returning the function bound to
// the entry point name.
func (s *GojaSandbox) Compile(bundle string) (EntryPoint, error) {
	prg, err := s.program(bundle)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	installConsole(vm, s.writeConsole)

	s.evaluations.Add(1)
	value, err := vm.RunProgram(prg)
	if err != nil {
		return nil, &CompileError{Message: "evaluating bundle: " + firstLine(exceptionMessage(err))}
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, &CompileError{Message: fmt.Sprintf("entry point %q is not a function", s.entryName)}
	}

	return &gojaEntry{vm: vm, fn: fn}, nil
}

// program returns the compiled program for bundle, transpiling on a cache miss.
func (s *GojaSandbox) program(bundle string) (*goja.Program, error) {
	key := cache.HashKey(s.entryName + "\x00" + bundle)
	if cached, ok := s.programs.Get(key); ok {
		s.logger.Debug("program cache hit", "key", key[:12])
		return cached.(*goja.Program), nil
	}

	code := bundle + fmt.Sprintf("\n;globalThis.%s = %s;\n", entrySlot, s.entryName)
	js, err := Transpile(code)
	if err != nil {
		return nil, err
	}

	prg, err := goja.Compile(BundleFileName, js, false)
	if err != nil {
		return nil, &CompileError{Message: firstLine(err.Error())}
	}

	s.programs.Set(key, prg)
	return prg, nil
}

type gojaEntry struct {
	vm *goja.Runtime
	fn goja.Callable
}

// Invoke calls the entry point with a context object built from inv. A
// returned promise must settle before Invoke returns. Cancelling ctx
// interrupts the running script.
func (e *gojaEntry) Invoke(ctx context.Context, inv Invocation) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(ctx.Err())
	})
	defer stop()
	defer e.vm.ClearInterrupt()

	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	result, err := e.fn(goja.Undefined(), e.contextObject(inv))
	if err != nil {
		return runtimeError(err)
	}

	return settle(result)
}

func (e *gojaEntry) contextObject(inv Invocation) goja.Value {
	obj := e.vm.NewObject()
	_ = obj.Set("test", inv.Test)
	_ = obj.Set("expect", inv.Expect)
	_ = obj.Set("fixtures", inv.Fixtures)
	_ = obj.Set("iteration", inv.Iteration)
	_ = obj.Set("controller", inv.Controller)
	return obj
}

func settle(result goja.Value) error {
	if result == nil {
		return nil
	}
	p, ok := result.Export().(*goja.Promise)
	if !ok {
		return nil
	}

	switch p.State() {
	case goja.PromiseStateRejected:
		reason := p.Result()
		msg := "promise rejected"
		if reason != nil {
			msg = reason.String()
		}
		return &RuntimeError{Message: msg, Stack: stackOf(reason)}
	case goja.PromiseStatePending:
		return &RuntimeError{Message: "entry point returned a promise that did not settle"}
	}
	return nil
}

func runtimeError(err error) error {
	switch ex := err.(type) {
	case *goja.Exception:
		return &RuntimeError{Message: firstLine(ex.Value().String()), Stack: ex.String()}
	case *goja.InterruptedError:
		return &RuntimeError{Message: "interrupted: " + ex.String()}
	default:
		return &RuntimeError{Message: firstLine(err.Error())}
	}
}

func exceptionMessage(err error) string {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Value().String()
	}
	return err.Error()
}

func stackOf(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return ""
	}
	if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
		return stack.String()
	}
	return ""
}

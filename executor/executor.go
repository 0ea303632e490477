package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codemate/console"

	"github.com/dop251/goja"
)

var (
	ErrUnknownExport = errors.New("no such export")
	ErrInterrupted   = errors.New("execution interrupted")
)

// contextNames are the parameters every run's function body sees, in the
// order their values are bound.
var contextNames = []string{
	"console", "setTimeout", "clearTimeout", "setInterval", "clearInterval",
	"module", "exports", "require",
}

// Executor runs JavaScript source strings against a console it owns. One run
// is in flight at a time; a second concurrent Execute fails fast because the
// console is already intercepted.
type Executor struct {
	console *console.Console
	opts    Options
}

func New(c *console.Console, opts Options) *Executor {
	if c == nil {
		c = console.New(nil)
	}
	return &Executor{console: c, opts: opts}
}

func (e *Executor) Options() Options {
	return e.opts
}

// Execute compiles code as a function body, runs it, and reports what it did.
// It never panics and never returns a Go error; every failure lands in the
// result.
func (e *Executor) Execute(ctx context.Context, code string, opts ...RunOption) (result *ExecutionResult) {
	start := time.Now()
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	result = &ExecutionResult{}
	capture, err := e.console.Intercept()
	if err != nil {
		result.Errors = []string{err.Error()}
		result.ExecutionTime = time.Since(start)
		return result
	}
	defer capture.Release()

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("internal error: %v", rec)
			capture.Record(console.KindError, msg)
			result.Success = false
			result.Errors = []string{msg}
			result.ExportedValues = nil
		}
		result.Logs = capture.Lines()
		result.ExecutionTime = time.Since(start)
	}()

	vm := goja.New()
	if rc.bindings != nil && rc.bindings.vm != nil {
		vm = rc.bindings.vm
	}
	r := &run{
		vm:      vm,
		capture: capture,
		opts:    e.opts,
		timers:  newTimerQueue(),
		shims:   make(map[string]goja.Value),
	}
	r.execute(ctx, code, rc.bindings, result)
	return result
}

type run struct {
	vm      *goja.Runtime
	capture *console.Capture
	opts    Options
	timers  *timerQueue
	module  *goja.Object
	shims   map[string]goja.Value

	headerLen int
}

func (r *run) execute(ctx context.Context, code string, bindings *Exports, result *ExecutionResult) {
	names, values := bindingParams(bindings)
	params := append(append([]string{}, contextNames...), names...)

	// The body starts on the header line so reported line numbers match.
	header := "(function(" + strings.Join(params, ", ") + ") {"
	r.headerLen = len(header)
	src := header + code + "\n})"
	prog, err := goja.Compile("sandbox.js", src, false)
	if err != nil {
		r.fail(result, err.Error(), "")
		return
	}

	stop := r.watch(ctx)
	defer stop()

	wrapper, err := r.vm.RunProgram(prog)
	if err != nil {
		r.failWith(result, err)
		return
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		r.fail(result, "compiled source is not callable", "")
		return
	}

	ret, err := fn(goja.Undefined(), append(r.contextValues(), values...)...)
	if err != nil {
		r.failWith(result, err)
		return
	}
	if ret != nil && !goja.IsUndefined(ret) {
		r.capture.Record(console.KindResult, renderValue(r.vm, ret))
		result.ReturnValue = plainValue(r.vm, ret)
	}

	if err := r.drainTimers(); err != nil {
		r.failWith(result, err)
		return
	}

	result.ExportedValues = r.collectExports()
	result.Success = true
}

// watch interrupts the runtime when ctx or the configured timeout ends. The
// returned func must run before the runtime is reused.
func (r *run) watch(ctx context.Context) func() {
	cancel := func() {}
	if r.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		cancel()
		r.vm.ClearInterrupt()
	}
}

func (r *run) contextValues() []goja.Value {
	vm := r.vm
	r.module = vm.NewObject()
	exports := vm.NewObject()
	_ = r.module.Set("exports", exports)

	return []goja.Value{
		r.consoleObject(),
		vm.ToValue(r.schedule(false)),
		vm.ToValue(r.cancelTimer),
		vm.ToValue(r.schedule(true)),
		vm.ToValue(r.cancelTimer),
		r.module,
		exports,
		vm.ToValue(r.require),
	}
}

func (r *run) consoleObject() *goja.Object {
	obj := r.vm.NewObject()
	methods := []struct {
		name string
		kind console.Kind
	}{
		{"log", console.KindLog},
		{"error", console.KindError},
		{"warn", console.KindWarn},
		{"info", console.KindInfo},
	}
	for _, m := range methods {
		kind := m.kind
		_ = obj.Set(m.name, func(call goja.FunctionCall) goja.Value {
			r.capture.Emit(kind, render(r.vm, call.Arguments))
			return goja.Undefined()
		})
	}
	return obj
}

func (r *run) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()

	if cached, ok := r.shims[name]; ok {
		return cached
	}
	if shim, ok := GetModuleShim(name); ok {
		v, err := r.vm.RunProgram(shim.Program)
		if err != nil {
			panic(err)
		}
		r.shims[name] = v
		return v
	}

	for _, self := range r.opts.SelfModulePaths {
		if name == self || strings.TrimSuffix(name, ".js") == self {
			return r.module.Get("exports")
		}
	}

	r.capture.Record(console.KindWarn, fmt.Sprintf("Mock require: '%s' is not available in this environment", name))
	return r.vm.NewObject()
}

func (r *run) collectExports() *Exports {
	exports := newExports(r.vm)
	v := r.module.Get("exports")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return exports
	}

	obj := v.ToObject(r.vm)
	for _, key := range obj.Keys() {
		exports.set(key, obj.Get(key))
	}
	if exports.Len() == 0 {
		return exports
	}

	r.capture.Record(console.KindExports, strings.Join(exports.Names(), ", "))
	for _, name := range exports.Names() {
		value, _ := exports.Value(name)
		rendered := "[Function]"
		if _, callable := goja.AssertFunction(value); !callable {
			rendered = renderValue(r.vm, value)
		}
		r.capture.Record(console.KindExport, name+": "+rendered)
	}
	return exports
}

func (r *run) failWith(result *ExecutionResult, err error) {
	msg, stack := describeError(err)
	r.fail(result, msg, stack)
}

func (r *run) fail(result *ExecutionResult, msg, stack string) {
	msg, stack = r.relocate(msg), r.relocate(stack)
	r.capture.Record(console.KindError, msg)
	if stack != "" {
		r.capture.Record(console.KindStack, stack)
	}
	result.Success = false
	result.Errors = []string{msg}
	result.ExportedValues = nil
}

// firstLinePosition matches positions on the wrapper's header line, in both
// the parser's "Line 1:C" and the runtime's "sandbox.js:1:C" forms.
var firstLinePosition = regexp.MustCompile(`(\bLine 1:|sandbox\.js:1:)(\d+)`)

// relocate shifts line 1 columns back by the header length so they point
// into the user's source.
func (r *run) relocate(s string) string {
	if r.headerLen == 0 || s == "" {
		return s
	}
	return firstLinePosition.ReplaceAllStringFunc(s, func(m string) string {
		parts := firstLinePosition.FindStringSubmatch(m)
		col, err := strconv.Atoi(parts[2])
		if err != nil {
			return m
		}
		return parts[1] + strconv.Itoa(max(col-r.headerLen, 1))
	})
}

func bindingParams(bindings *Exports) ([]string, []goja.Value) {
	if bindings.Len() == 0 {
		return nil, nil
	}
	var names []string
	var values []goja.Value
	for _, name := range bindings.Names() {
		if !IsIdentifier(name) || IsContextName(name) {
			continue
		}
		v, _ := bindings.Value(name)
		names = append(names, name)
		values = append(values, v)
	}
	return names, values
}

// IsContextName reports whether name is already bound by the run context.
func IsContextName(name string) bool {
	for _, n := range contextNames {
		if n == name {
			return true
		}
	}
	return false
}

// describeError splits a run failure into a message and a cleaned stack.
func describeError(err error) (string, string) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Sprintf("%s: %v", ErrInterrupted, interrupted.Value()), ""
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return exceptionMessage(exc), cleanStack(exc)
	}
	return err.Error(), ""
}

func exceptionMessage(exc *goja.Exception) string {
	val := exc.Value()
	if val == nil {
		return exc.Error()
	}
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return val.String()
}

// cleanStack drops the header line of the trace and trims every frame.
func cleanStack(exc *goja.Exception) string {
	full := exc.String()
	if val := exc.Value(); val != nil {
		full = strings.TrimPrefix(full, val.String())
	}
	var frames []string
	for _, line := range strings.Split(full, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			frames = append(frames, line)
		}
	}
	return strings.Join(frames, "\n")
}

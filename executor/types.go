package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dop251/goja"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ExecutionResult is what one run of a source string produced.
type ExecutionResult struct {
	Logs           []string
	Success        bool
	Errors         []string
	ExportedValues *Exports
	ReturnValue    any
	ExecutionTime  time.Duration
}

// FirstError returns the first recorded error, or fallback.
func (r *ExecutionResult) FirstError(fallback string) string {
	if r == nil || len(r.Errors) == 0 || r.Errors[0] == "" {
		return fallback
	}
	return r.Errors[0]
}

// Exports are the bindings a run left on module.exports, in insertion order.
// They stay attached to the runtime that created them.
type Exports struct {
	vm     *goja.Runtime
	values *orderedmap.OrderedMap[string, goja.Value]
}

func newExports(vm *goja.Runtime) *Exports {
	return &Exports{vm: vm, values: orderedmap.New[string, goja.Value]()}
}

func (x *Exports) set(name string, value goja.Value) {
	x.values.Set(name, value)
}

func (x *Exports) Len() int {
	if x == nil {
		return 0
	}
	return x.values.Len()
}

func (x *Exports) Names() []string {
	if x == nil {
		return nil
	}
	names := make([]string, 0, x.values.Len())
	for pair := x.values.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (x *Exports) Value(name string) (goja.Value, bool) {
	if x == nil {
		return nil, false
	}
	return x.values.Get(name)
}

// Filter returns the bindings whose names keep accepts, still attached to
// the same runtime.
func (x *Exports) Filter(keep func(name string) bool) *Exports {
	if x == nil {
		return nil
	}
	out := newExports(x.vm)
	for pair := x.values.Oldest(); pair != nil; pair = pair.Next() {
		if keep(pair.Key) {
			out.set(pair.Key, pair.Value)
		}
	}
	return out
}

func (x *Exports) IsFunction(name string) bool {
	v, ok := x.Value(name)
	if !ok {
		return false
	}
	_, callable := goja.AssertFunction(v)
	return callable
}

// Source renders a binding back to source text: functions through their own
// text, everything else through JSON.stringify.
func (x *Exports) Source(name string) (string, error) {
	v, ok := x.Value(name)
	if !ok {
		return "", ErrUnknownExport
	}
	if _, callable := goja.AssertFunction(v); callable {
		return v.String(), nil
	}
	s, err := stringify(x.vm, v, false)
	if err != nil {
		return "", err
	}
	return s, nil
}

// Snapshot exports plain Go values, with functions shown as "[Function]".
func (x *Exports) Snapshot() *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	if x == nil {
		return out
	}
	for pair := x.values.Oldest(); pair != nil; pair = pair.Next() {
		if _, callable := goja.AssertFunction(pair.Value); callable {
			out.Set(pair.Key, "[Function]")
			continue
		}
		out.Set(pair.Key, plainValue(x.vm, pair.Value))
	}
	return out
}

// plainValue goes through JSON so nested functions and cycles never reach
// encoding/json.
func plainValue(vm *goja.Runtime, v goja.Value) any {
	s, err := stringify(vm, v, false)
	if err != nil || s == "undefined" {
		return v.String()
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}

func (x *Exports) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.Snapshot())
}

// RunOption tweaks a single Execute call.
type RunOption func(*runConfig)

type runConfig struct {
	bindings *Exports
}

// WithBindings runs the source in the runtime that produced bindings and
// passes each binding in as a named parameter.
func WithBindings(bindings *Exports) RunOption {
	return func(rc *runConfig) {
		rc.bindings = bindings
	}
}

// Task is a unit of work run on a pool worker's own Executor.
type Task func(ctx context.Context, e *Executor)

// Job represents a queued task
type Job struct {
	Ctx  context.Context
	Task Task
	Done chan error
}

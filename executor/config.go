package executor

import (
	"time"

	"github.com/dop251/goja"
)

// Options configures an Executor.
type Options struct {
	// Timeout bounds a whole run including timer draining. Zero disables it.
	Timeout time.Duration
	// TimerWindow is how much virtual time pending timers get after the body
	// returns. Zero discards them.
	TimerWindow time.Duration
	// SelfModulePaths resolve to the running module's own exports.
	SelfModulePaths []string
}

func DefaultOptions() Options {
	return Options{
		Timeout:         5 * time.Second,
		TimerWindow:     100 * time.Millisecond,
		SelfModulePaths: []string{"./calculator"},
	}
}

// ModuleShim is a whitelisted stand-in for a library the sandbox code may
// require.
type ModuleShim struct {
	Program *goja.Program
}

// moduleShims holds the libraries require() knows about
var moduleShims = map[string]ModuleShim{
	"lodash": {
		Program: goja.MustCompile("lodash", collectionShim, false),
	},
	"underscore": {
		Program: goja.MustCompile("underscore", collectionShim, false),
	},
}

const collectionShim = `(function () {
  return {
    map: function (arr, fn) { return arr.map(fn); },
    filter: function (arr, fn) { return arr.filter(fn); },
    reduce: function (arr, fn, init) { return arguments.length > 2 ? arr.reduce(fn, init) : arr.reduce(fn); },
    find: function (arr, fn) { return arr.find(fn); },
    sum: function (arr) { return arr.reduce(function (a, b) { return a + b; }, 0); },
    uniq: function (arr) { return arr.filter(function (v, i) { return arr.indexOf(v) === i; }); }
  };
})()`

// GetModuleShim retrieves the shim registered under name
func GetModuleShim(name string) (ModuleShim, bool) {
	shim, ok := moduleShims[name]
	return shim, ok
}

package validator

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"codemate/console"
	"codemate/executor"

	"github.com/dop251/goja"
)

//go:embed harness.js
var harness string

const (
	ImplementationErrorName = "Implementation Code Error"
	SuiteErrorName          = "Test Suite Error"

	unknownImplementationError = "Unknown error in implementation code"
	unknownSuiteError          = "Unknown error in test suite"
)

// Mode decides how the implementation's exports reach the test program.
type Mode string

const (
	// ModeSource re-declares every export from its source text.
	ModeSource Mode = "source"
	// ModeLive hands the exported values themselves to the test program, so
	// closures over module state keep working.
	ModeLive Mode = "live"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSource:
		return ModeSource, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown binding mode %q", s)
	}
}

// Runner is the part of the executor the validator needs.
type Runner interface {
	Execute(ctx context.Context, code string, opts ...executor.RunOption) *executor.ExecutionResult
}

type FailingTest struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// TestResult is the outcome of one validation run. Total is always
// Passing + Failing.
type TestResult struct {
	Passing       int           `json:"passing"`
	Failing       int           `json:"failing"`
	Total         int           `json:"total"`
	Logs          []string      `json:"logs"`
	FailingTests  []FailingTest `json:"failingTests"`
	ExecutionTime string        `json:"executionTime,omitempty"`
}

type Validator struct {
	runner Runner
	mode   Mode
}

type Option func(*Validator)

func WithMode(mode Mode) Option {
	return func(v *Validator) {
		v.mode = mode
	}
}

func New(runner Runner, opts ...Option) *Validator {
	v := &Validator{runner: runner, mode: ModeSource}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the implementation, then the tests against its exports, and
// folds both runs into one TestResult.
func (v *Validator) Validate(ctx context.Context, implementationCode, testCode string) TestResult {
	start := time.Now()

	impl := v.runner.Execute(ctx, implementationCode)
	if !impl.Success {
		return finish(TestResult{
			Failing: 1,
			Logs:    impl.Logs,
			FailingTests: []FailingTest{{
				Name:  ImplementationErrorName,
				Error: impl.FirstError(unknownImplementationError),
			}},
		}, start)
	}

	program, warnings := v.compose(impl.ExportedValues, testCode)
	var opts []executor.RunOption
	if v.mode == ModeLive {
		opts = append(opts, executor.WithBindings(impl.ExportedValues.Filter(bindable)))
	}
	run := v.runner.Execute(ctx, program, opts...)

	result := parseRun(run)
	logs := append([]string{}, impl.Logs...)
	for _, w := range warnings {
		logs = append(logs, console.Format(console.KindWarn, w))
	}
	result.Logs = append(logs, run.Logs...)
	return finish(result, start)
}

// Compose builds the single program that runs the tests: export
// declarations, the self-require shim, the assertion harness, the user's
// tests and the summary.
func (v *Validator) Compose(exports *executor.Exports, testCode string) string {
	program, _ := v.compose(exports, testCode)
	return program
}

// compose also reports the exports that could not be declared. Those are
// left out of module.exports so the rest of the suite still runs.
func (v *Validator) compose(exports *executor.Exports, testCode string) (string, []string) {
	var b strings.Builder

	var names, warnings []string
	for _, name := range exports.Names() {
		if !bindable(name) {
			continue
		}
		if v.mode == ModeLive {
			names = append(names, name)
			continue
		}
		src, err := exports.Source(name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Export '%s' is not available to the tests: %v", name, err))
			continue
		}
		if exports.IsFunction(name) {
			src = functionExpression(name, src)
		}
		fmt.Fprintf(&b, "const %s = %s;\n", name, src)
		names = append(names, name)
	}

	fmt.Fprintf(&b, "module.exports = { %s };\n", strings.Join(names, ", "))
	b.WriteString(harness)
	b.WriteString("\ntry {\n")
	b.WriteString(testCode)
	b.WriteString("\n} catch (e) {\n  console.error('[ERROR] Error in test suite: ' + __message(e));\n}\n")
	b.WriteString(summary)
	return b.String(), warnings
}

const summary = `const __passed = __tests.filter(function (t) { return t.passed; }).length;
const __summary = { total: __tests.length, passed: __passed, failed: __tests.length - __passed };
console.log('[SUMMARY] Total tests: ' + __summary.total + ', Passed: ' + __summary.passed + ', Failed: ' + __summary.failed);
return { tests: __tests, summary: __summary };
`

// functionExpression turns a function's source text into an expression.
// Method shorthand such as "add(a, b) { ... }" is not one on its own, so it
// is rewrapped in an object literal.
func functionExpression(name, src string) string {
	candidates := []string{
		src,
		fmt.Sprintf("({ %s }).%s", src, name),
		fmt.Sprintf("({ %s%s }).%s", name, src, name),
	}
	for _, c := range candidates {
		if _, err := goja.Compile("", "("+c+")", false); err == nil {
			return c
		}
	}
	return src
}

// harnessNames are declared by harness.js and cannot be redeclared.
var harnessNames = map[string]bool{"describe": true, "test": true, "it": true, "expect": true}

func bindable(name string) bool {
	return executor.IsIdentifier(name) &&
		!executor.IsContextName(name) &&
		!harnessNames[name] &&
		!strings.HasPrefix(name, "__")
}

func finish(r TestResult, start time.Time) TestResult {
	r.Total = r.Passing + r.Failing
	if r.Logs == nil {
		r.Logs = []string{}
	}
	if r.FailingTests == nil {
		r.FailingTests = []FailingTest{}
	}
	r.ExecutionTime = fmt.Sprintf("%dms", time.Since(start).Milliseconds())
	return r
}

package validator

import (
	"context"
	"strings"
	"testing"

	"codemate/console"
	"codemate/executor"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calculator = `/**
 * Adds two numbers.
 */
function add(a, b) {
  return a + b;
}

const divide = (a, b) => a / b;

const helpers = {
  half(n) { return n / 2; }
};

module.exports = { add, divide, half: helpers.half, PI: 3.14 };`

func newValidator(opts ...Option) *Validator {
	return New(executor.New(console.New(nil), executor.DefaultOptions()), opts...)
}

func TestValidatePassing(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), calculator, `
const { add } = require('./calculator');
test('adds', () => {
  expect(add(2, 3)).toBe(5);
});`)

	assert.Equal(t, 1, result.Passing)
	assert.Equal(t, 0, result.Failing)
	assert.Equal(t, 1, result.Total)
	assert.Empty(t, result.FailingTests)
	assert.Contains(t, result.Logs, "[EXPORTS] add, divide, half, PI")
	assert.Contains(t, result.Logs, "[LOG] [SUMMARY] Total tests: 1, Passed: 1, Failed: 0")
}

func TestValidateFailuresDoNotStopSiblings(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), calculator, `
describe('calculator', () => {
  test('adds wrong', () => {
    expect(add(1, 1)).toBe(3);
  });
  it('divides', () => {
    expect(divide(5, 2)).toBeCloseTo(2.5);
  });
  test('half shorthand', () => {
    expect(half(8)).toEqual(4);
  });
});`)

	assert.Equal(t, 2, result.Passing)
	assert.Equal(t, 1, result.Failing)
	assert.Equal(t, 3, result.Total)
	assert.Empty(t, cmp.Diff([]FailingTest{{Name: "adds wrong", Error: "Expected 2 to be 3"}}, result.FailingTests))
}

func TestValidateImplementationError(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), "function broken( {", "test('x', () => {});")

	assert.Equal(t, 0, result.Passing)
	assert.Equal(t, 1, result.Failing)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.FailingTests, 1)
	assert.Equal(t, ImplementationErrorName, result.FailingTests[0].Name)
	assert.NotEmpty(t, result.FailingTests[0].Error)
}

func TestValidateNoTests(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), calculator, "// nothing yet")

	assert.Equal(t, TestResult{Logs: result.Logs, FailingTests: []FailingTest{}, ExecutionTime: result.ExecutionTime}, result)
	assert.Zero(t, result.Total)
}

func TestValidateTestSyntaxError(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), calculator, "test('x', () => {")

	assert.Equal(t, 1, result.Failing)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.FailingTests, 1)
	assert.Equal(t, SuiteErrorName, result.FailingTests[0].Name)
}

func TestValidateTopLevelSuiteError(t *testing.T) {
	v := newValidator()

	result := v.Validate(context.Background(), calculator, "missingFunction();")

	assert.Equal(t, 1, result.Failing)
	require.Len(t, result.FailingTests, 1)
	assert.Equal(t, SuiteErrorName, result.FailingTests[0].Name)
	assert.Contains(t, result.FailingTests[0].Error, "missingFunction")
}

func TestValidateFloatingPointDrift(t *testing.T) {
	v := newValidator()
	impl := "const addTenths = (a, b) => a + b;\nmodule.exports = { addTenths };"

	exact := v.Validate(context.Background(), impl, "test('sum', () => { expect(addTenths(0.1, 0.2)).toBe(0.3); });")
	approx := v.Validate(context.Background(), impl, "test('sum', () => { expect(addTenths(0.1, 0.2)).toBeCloseTo(0.3); });")

	assert.Equal(t, 1, exact.Failing)
	assert.Equal(t, 1, approx.Passing)
}

func TestValidateNaN(t *testing.T) {
	v := newValidator()
	impl := "const parse = s => Number(s);\nmodule.exports = { parse };"

	result := v.Validate(context.Background(), impl, `
test('nan is nan', () => { expect(parse('x')).toBe(NaN); });
test('number is not nan', () => { expect(parse('4')).toBe(NaN); });
test('toBeNaN', () => { expect(parse('x')).toBeNaN(); });
test('not.toBeNaN', () => { expect(parse('4')).not.toBeNaN(); });
test('nested nan', () => { expect({ v: [parse('x')] }).toEqual({ v: [NaN] }); });
test('not nan toBe', () => { expect(parse('x')).not.toBe(NaN); });`)

	assert.Equal(t, 4, result.Passing)
	assert.Equal(t, 2, result.Failing)
	names := []string{result.FailingTests[0].Name, result.FailingTests[1].Name}
	assert.Equal(t, []string{"number is not nan", "not nan toBe"}, names)
}

func TestValidateMatchers(t *testing.T) {
	v := newValidator()
	impl := `function check(n) { if (n < 0) throw new Error('negative input'); return n; }
module.exports = { check, list: [1, 2, 3], obj: { b: 2, a: 1 } };`

	result := v.Validate(context.Background(), impl, `
const { list, obj } = require('./calculator');
test('equal ignores key order', () => { expect(obj).toEqual({ a: 1, b: 2 }); });
test('not equal', () => { expect(obj).not.toEqual({ a: 2 }); });
test('contains', () => { expect(list).toContain(2); });
test('string contains', () => { expect('hello').toContain('ell'); });
test('truthy falsy', () => { expect(1).toBeTruthy(); expect(0).toBeFalsy(); });
test('throws', () => { expect(() => check(-1)).toThrow(); });
test('throws message', () => { expect(() => check(-1)).toThrow('negative'); });
test('does not throw', () => { expect(() => check(1)).toThrow(); });
test('not toBe', () => { expect(check(2)).not.toBe(3); });`)

	assert.Equal(t, 8, result.Passing)
	assert.Equal(t, 1, result.Failing)
	require.Len(t, result.FailingTests, 1)
	assert.Equal(t, "does not throw", result.FailingTests[0].Name)
	assert.Equal(t, "Expected function to throw", result.FailingTests[0].Error)
}

func TestValidateClosuresNeedLiveMode(t *testing.T) {
	impl := `let count = 0;
function next() { count += 1; return count; }
module.exports = { next };`
	tests := "test('counts', () => { expect(next()).toBe(1); expect(next()).toBe(2); });"

	source := newValidator().Validate(context.Background(), impl, tests)
	live := newValidator(WithMode(ModeLive)).Validate(context.Background(), impl, tests)

	assert.Equal(t, 1, source.Failing, "source text cannot carry the captured counter")
	assert.Equal(t, 1, live.Passing)
	assert.Equal(t, 0, live.Failing)
}

func TestValidateSkipsUnserializableExport(t *testing.T) {
	impl := `const cfg = {};
cfg.self = cfg;
function add(a, b) { return a + b; }
module.exports = { add, cfg };`

	result := newValidator().Validate(context.Background(), impl, "test('adds', () => { expect(add(2, 3)).toBe(5); });")

	assert.Equal(t, 1, result.Passing)
	assert.Equal(t, 0, result.Failing)
	assert.Empty(t, result.FailingTests)
	found := false
	for _, line := range result.Logs {
		if strings.HasPrefix(line, "[WARN] Export 'cfg' is not available to the tests") {
			found = true
		}
	}
	assert.True(t, found, "logs: %v", result.Logs)
}

func TestComposeLeavesOutUndeclaredExports(t *testing.T) {
	e := executor.New(console.New(nil), executor.DefaultOptions())
	impl := e.Execute(context.Background(), "const cfg = {}; cfg.self = cfg; module.exports = { cfg, n: 1 };")
	require.True(t, impl.Success)

	program, warnings := newValidator().compose(impl.ExportedValues, "")

	assert.Contains(t, program, "module.exports = { n };")
	assert.NotContains(t, program, "const cfg")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "'cfg'")
}

func TestValidateLiveModeHarnessNames(t *testing.T) {
	impl := `function add(a, b) { return a + b; }
const it = 'shadow';
module.exports = { add, it, __tests: [] };`

	result := newValidator(WithMode(ModeLive)).Validate(context.Background(), impl,
		"it('adds', () => { expect(add(2, 3)).toBe(5); });")

	assert.Equal(t, 1, result.Passing)
	assert.Equal(t, 0, result.Failing)
	assert.Empty(t, result.FailingTests)
}

func TestFallbackToReturnedTests(t *testing.T) {
	run := &executor.ExecutionResult{
		Success: true,
		ReturnValue: map[string]any{
			"tests": []any{
				map[string]any{"name": "a", "passed": true, "error": nil},
				map[string]any{"name": "b", "passed": false, "error": "nope"},
			},
		},
	}

	result := parseRun(run)

	assert.Equal(t, 1, result.Passing)
	assert.Equal(t, 1, result.Failing)
	assert.Equal(t, []FailingTest{{Name: "b", Error: "nope"}}, result.FailingTests)
}

func TestScanLogsMultilineError(t *testing.T) {
	result, found := scanLogs([]string{
		"[LOG] [TEST] Running: multi",
		"[ERROR] [TEST] Failed: multi - line one\nline two",
	})

	require.True(t, found)
	assert.Equal(t, []FailingTest{{Name: "multi", Error: "line one\nline two"}}, result.FailingTests)
}

func TestComposeSourceMode(t *testing.T) {
	e := executor.New(console.New(nil), executor.DefaultOptions())
	impl := e.Execute(context.Background(), calculator)
	require.True(t, impl.Success)

	program := newValidator().Compose(impl.ExportedValues, "// tests")

	assert.Contains(t, program, "const add = function add(a, b) {")
	assert.Contains(t, program, "const divide = (a, b) => a / b;")
	assert.Contains(t, program, "const half = ({ half")
	assert.Contains(t, program, "const PI = 3.14;")
	assert.Contains(t, program, "module.exports = { add, divide, half, PI };")
	assert.True(t, strings.HasSuffix(program, "return { tests: __tests, summary: __summary };\n"))
}

func TestComposeSkipsUnbindableNames(t *testing.T) {
	e := executor.New(console.New(nil), executor.DefaultOptions())
	impl := e.Execute(context.Background(), "module.exports = { 'my-key': 1, test: 2, ok: 3 };")
	require.True(t, impl.Success)

	program := newValidator().Compose(impl.ExportedValues, "")

	assert.Contains(t, program, "module.exports = { ok };")
	assert.NotContains(t, program, "my-key")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("LIVE")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSource, m)

	_, err = ParseMode("weird")
	assert.Error(t, err)
}

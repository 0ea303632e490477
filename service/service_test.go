package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codemate/diff"
	"codemate/executor"
	"codemate/internal"
	"codemate/model"
	"codemate/validator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const calculator = `function add(a, b) { return a + b; }
function sub(a, b) { return a + b; }
module.exports = { add, sub };`

const calculatorTests = `describe('calculator', () => {
  test('adds', () => { expect(add(1, 2)).toBe(3); });
  test('subtracts', () => { expect(sub(5, 2)).toBe(3); });
});`

const fixedCalculator = `function add(a, b) { return a + b; }
function sub(a, b) { return a - b; }
module.exports = { add, sub };`

type scriptedCompleter struct {
	replies []string
	err     error
	calls   int
}

func (c *scriptedCompleter) Complete(context.Context, internal.CompletionRequest) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.replies[(c.calls-1)%len(c.replies)], nil
}

func newPool(t *testing.T) *executor.WorkerPool {
	t.Helper()
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	pool, err := executor.NewWorkerPool(executor.PoolConfig{
		MaxWorkers: 2,
		JobCount:   4,
		Options:    executor.DefaultOptions(),
		Logger:     log,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

func newService(t *testing.T, opts ...Option) *CodeService {
	return NewCodeService(newPool(t), Config{MaxCodeLength: 10000}, opts...)
}

func TestExecute(t *testing.T) {
	s := newService(t)

	resp, err := s.Execute(context.Background(), model.ExecutionRequest{
		Code: "console.log('hi'); module.exports = { n: 2 };",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Success", resp.StatusMessage)
	assert.Equal(t, []string{"[LOG] hi", "[EXPORTS] n", "[EXPORT] n: 2"}, resp.Logs)
	require.NotNil(t, resp.ExportedValues)
	n, ok := resp.ExportedValues.Get("n")
	require.True(t, ok)
	assert.EqualValues(t, 2, n)
}

func TestExecuteEncodedRuntimeError(t *testing.T) {
	s := newService(t)

	resp, err := s.Execute(context.Background(), model.ExecutionRequest{
		Code:    base64.StdEncoding.EncodeToString([]byte("null.x;")),
		Encoded: true,
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "Runtime Error", resp.StatusMessage)
	assert.NotEmpty(t, resp.Error)
}

func TestExecuteRejectsBadInput(t *testing.T) {
	s := newService(t)

	resp, err := s.Execute(context.Background(), model.ExecutionRequest{Code: "!!", Encoded: true})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Invalid Request", resp.StatusMessage)

	_, err = s.Execute(context.Background(), model.ExecutionRequest{Code: "  "})
	var serr *internal.SanitizationError
	assert.ErrorAs(t, err, &serr)
}

type closedPool struct{}

func (closedPool) Do(context.Context, executor.Task) error { return executor.ErrPoolClosed }

func TestExecutePoolUnavailable(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{})

	resp, err := s.Execute(context.Background(), model.ExecutionRequest{Code: "1"})
	assert.ErrorIs(t, err, executor.ErrPoolClosed)
	assert.Equal(t, "Execution Unavailable", resp.StatusMessage)
}

func TestValidate(t *testing.T) {
	s := newService(t)

	resp, err := s.Validate(context.Background(), model.ValidationRequest{
		Implementation: calculator,
		Tests:          calculatorTests,
	})
	require.NoError(t, err)

	assert.Equal(t, "Tests Failed", resp.StatusMessage)
	assert.Equal(t, 1, resp.Passing)
	assert.Equal(t, 1, resp.Failing)
	assert.Equal(t, []validator.FailingTest{{Name: "subtracts", Error: "Expected 7 to be 3"}}, resp.FailingTests)
}

func TestValidateModeOverride(t *testing.T) {
	s := newService(t)

	resp, err := s.Validate(context.Background(), model.ValidationRequest{
		Implementation: fixedCalculator,
		Tests:          calculatorTests,
		Mode:           "live",
	})
	require.NoError(t, err)
	assert.Equal(t, "All Tests Passed", resp.StatusMessage)
	assert.Equal(t, 2, resp.Total)

	_, err = s.Validate(context.Background(), model.ValidationRequest{
		Implementation: fixedCalculator,
		Tests:          calculatorTests,
		Mode:           "sideways",
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDiff(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{MaxCodeLength: 10000})

	resp, err := s.Diff(context.Background(), model.DiffRequest{OriginalCode: calculator, NewCode: fixedCalculator})
	require.NoError(t, err)

	assert.Equal(t, "Changed", resp.StatusMessage)
	assert.Equal(t, 1, resp.Report.Count(diff.StatusModified))
	assert.Contains(t, resp.Plain, "@@ Modified function: sub")

	resp, err = s.Diff(context.Background(), model.DiffRequest{OriginalCode: calculator, NewCode: calculator})
	require.NoError(t, err)
	assert.Equal(t, "No Changes", resp.StatusMessage)
}

func TestExtractTests(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{})

	resp, err := s.ExtractTests(context.Background(), model.ExtractRequest{Tests: calculatorTests})
	require.NoError(t, err)

	require.Len(t, resp.TestCases, 2)
	assert.Equal(t, "adds", resp.TestCases[0].Name)
	assert.Equal(t, "subtracts", resp.TestCases[1].Name)
}

func TestAddTestCase(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{MaxCodeLength: 1000})

	resp, err := s.AddTestCase(context.Background(), model.AddTestCaseRequest{
		Tests:    calculatorTests,
		TestCase: "test('halves', () => { expect(half(5)).toBe(2.5); });",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Tests, "  test('halves', () => { expect(half(5)).toBeCloseTo(2.5); });\n});")
	require.Len(t, resp.TestCases, 3)
	assert.Equal(t, "halves", resp.TestCases[2].Name)
	assert.Equal(t, "Success", resp.StatusMessage)
}

func TestAddTestCaseToEmptyFile(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{})

	resp, err := s.AddTestCase(context.Background(), model.AddTestCaseRequest{TestCase: "it('works', () => {});"})
	require.NoError(t, err)
	assert.Equal(t, "it('works', () => {});\n", resp.Tests)
	require.Len(t, resp.TestCases, 1)

	_, err = s.AddTestCase(context.Background(), model.AddTestCaseRequest{Tests: calculatorTests, TestCase: "  "})
	var sanitizeErr *internal.SanitizationError
	assert.ErrorAs(t, err, &sanitizeErr)
}

func TestGenerateDisabled(t *testing.T) {
	s := NewCodeService(closedPool{}, Config{})

	_, err := s.GenerateTests(context.Background(), model.GenerateTestsRequest{Feature: "add"})
	assert.ErrorIs(t, err, ErrGenerationDisabled)

	_, err = s.GenerateImplementation(context.Background(), model.GenerateImplementationRequest{Tests: calculatorTests})
	assert.ErrorIs(t, err, ErrGenerationDisabled)

	_, err = s.AutoFix(context.Background(), model.AutoFixRequest{Implementation: calculator, Tests: calculatorTests})
	assert.ErrorIs(t, err, ErrGenerationDisabled)
}

func TestGenerateTests(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"```js\n" + calculatorTests + "\n```"}}
	s := NewCodeService(closedPool{}, Config{}, WithAssistant(internal.NewAssistant(completer)))

	resp, err := s.GenerateTests(context.Background(), model.GenerateTestsRequest{Feature: "a calculator"})
	require.NoError(t, err)
	assert.Equal(t, calculatorTests, resp.Code)
}

func TestGenerateImplementationUpstreamError(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("quota")}
	s := NewCodeService(closedPool{}, Config{}, WithAssistant(internal.NewAssistant(completer)))

	resp, err := s.GenerateImplementation(context.Background(), model.GenerateImplementationRequest{Tests: calculatorTests})
	assert.EqualError(t, err, "generate implementation: quota")
	assert.Equal(t, "Generation Failed", resp.StatusMessage)
}

func TestAutoFix(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{fixedCalculator}}
	s := newService(t, WithAssistant(internal.NewAssistant(completer)))

	resp, err := s.AutoFix(context.Background(), model.AutoFixRequest{Implementation: calculator, Tests: calculatorTests})
	require.NoError(t, err)

	assert.Equal(t, "Fixed", resp.StatusMessage)
	assert.Equal(t, 1, resp.Before.Failing)
	require.NotNil(t, resp.After)
	assert.Equal(t, 2, resp.After.Passing)
	assert.Equal(t, fixedCalculator, resp.Code)
	assert.Equal(t, 1, resp.Diff.Count(diff.StatusModified))
	assert.Equal(t, 1, completer.calls)
}

func TestAutoFixSkipsPassingCode(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"unused"}}
	s := newService(t, WithAssistant(internal.NewAssistant(completer)))

	resp, err := s.AutoFix(context.Background(), model.AutoFixRequest{Implementation: fixedCalculator, Tests: calculatorTests})
	require.NoError(t, err)

	assert.Equal(t, "All Tests Passed", resp.StatusMessage)
	assert.Nil(t, resp.After)
	assert.Zero(t, completer.calls)
}

package validator

import (
	"fmt"
	"regexp"

	"codemate/executor"
)

var (
	passedMarker = regexp.MustCompile(`\[TEST\] Passed: (.*)`)
	failedMarker = regexp.MustCompile(`(?s)\[TEST\] Failed: (.*?) - (.*)`)
	suiteMarker  = regexp.MustCompile(`(?s)Error in test suite: (.*)`)
)

// parseRun reads the per-test markers out of the composed run's logs. When
// the logs carry none, the tests array the program returned is used instead.
func parseRun(run *executor.ExecutionResult) TestResult {
	result, found := scanLogs(run.Logs)
	if found {
		return result
	}

	if fromReturn, ok := parseReturnValue(run.ReturnValue); ok {
		return fromReturn
	}

	// Nothing ran. Surface why instead of reporting an empty suite.
	if !run.Success {
		return suiteFailure(run.FirstError(unknownSuiteError))
	}
	for _, line := range run.Logs {
		if m := suiteMarker.FindStringSubmatch(line); m != nil {
			return suiteFailure(m[1])
		}
	}
	return TestResult{}
}

func scanLogs(logs []string) (TestResult, bool) {
	var result TestResult
	found := false
	for _, line := range logs {
		if m := failedMarker.FindStringSubmatch(line); m != nil {
			found = true
			result.Failing++
			result.FailingTests = append(result.FailingTests, FailingTest{Name: m[1], Error: m[2]})
			continue
		}
		if passedMarker.MatchString(line) {
			found = true
			result.Passing++
		}
	}
	return result, found
}

func parseReturnValue(v any) (TestResult, bool) {
	ret, ok := v.(map[string]any)
	if !ok {
		return TestResult{}, false
	}
	tests, ok := ret["tests"].([]any)
	if !ok || len(tests) == 0 {
		return TestResult{}, false
	}

	var result TestResult
	for _, item := range tests {
		t, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if passed, _ := t["passed"].(bool); passed {
			result.Passing++
			continue
		}
		result.Failing++
		result.FailingTests = append(result.FailingTests, FailingTest{
			Name:  fmt.Sprint(t["name"]),
			Error: errorText(t["error"]),
		})
	}
	return result, true
}

func errorText(v any) string {
	if v == nil {
		return "Test failed"
	}
	return fmt.Sprint(v)
}

func suiteFailure(msg string) TestResult {
	return TestResult{
		Failing:      1,
		FailingTests: []FailingTest{{Name: SuiteErrorName, Error: msg}},
	}
}

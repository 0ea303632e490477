package validator

import (
	"regexp"
	"strings"
)

var (
	decimalToBe   = regexp.MustCompile(`\.toBe\((\s*-?\d*\.\d+\s*)\)`)
	expectedCalls = regexp.MustCompile(`expect\(([a-zA-Z]+)\(`)
)

// PreferCloseTo rewrites .toBe(<decimal>) into .toBeCloseTo(<decimal>).
// Negated assertions are left alone since .not has no toBeCloseTo.
func PreferCloseTo(testCode string) string {
	matches := decimalToBe.FindAllStringSubmatchIndex(testCode, -1)
	if len(matches) == 0 {
		return testCode
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if strings.HasSuffix(testCode[:start], ".not") {
			continue
		}
		b.WriteString(testCode[last:start])
		b.WriteString(".toBeCloseTo(")
		b.WriteString(strings.TrimSpace(testCode[m[2]:m[3]]))
		b.WriteString(")")
		last = end
	}
	b.WriteString(testCode[last:])
	return b.String()
}

// AddTestCase inserts testCase before the closing "});" of the outer
// describe block. A file without a describe block gets the case appended.
func AddTestCase(testCode, testCase string) string {
	testCase = PreferCloseTo(strings.TrimSpace(testCase))
	trimmed := strings.TrimRight(testCode, " \t\r\n")
	if strings.Contains(trimmed, "describe(") && strings.HasSuffix(trimmed, "});") {
		return trimmed[:len(trimmed)-len("});")] + "\n  " + testCase + "\n});"
	}
	if trimmed == "" {
		return testCase + "\n"
	}
	return trimmed + "\n\n" + testCase + "\n"
}

// RequiredFunctionNames lists, once each and in order, the functions the
// tests call directly inside expect(...).
func RequiredFunctionNames(testCode string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range expectedCalls.FindAllStringSubmatch(testCode, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

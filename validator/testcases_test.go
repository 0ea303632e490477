package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTestCases(t *testing.T) {
	src := `const { add } = require('./calculator');

describe('calculator', () => {
  test('adds numbers', () => {
    expect(add(1, 2)).toBe(3);
  });

  it(` + "`handles ${'templates'}`" + `, () => {
    expect(add(0, 0)).toBe(0);
  });

  test(name, () => {});
});`

	cases, err := ExtractTestCases(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.Equal(t, "adds numbers", cases[0].Name)
	assert.Equal(t, "test('adds numbers', () => {\n    expect(add(1, 2)).toBe(3);\n  });", cases[0].TestFunction)
	assert.Equal(t, "handles ${'templates'}", cases[1].Name)
	assert.Equal(t, unnamedTest, cases[2].Name)
}

func TestExtractTestCasesNone(t *testing.T) {
	cases, err := ExtractTestCases(context.Background(), "const x = 1;")
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestPreferCloseTo(t *testing.T) {
	in := `expect(divide(5, 2)).toBe(2.5);
expect(add(1, 2)).toBe(3);
expect(neg()).toBe(-0.5);
expect(x).not.toBe(0.1);`

	want := `expect(divide(5, 2)).toBeCloseTo(2.5);
expect(add(1, 2)).toBe(3);
expect(neg()).toBeCloseTo(-0.5);
expect(x).not.toBe(0.1);`

	assert.Equal(t, want, PreferCloseTo(in))
}

func TestAddTestCase(t *testing.T) {
	file := "describe('calc', () => {\n  test('a', () => {});\n});\n"

	got := AddTestCase(file, "test('b', () => { expect(half(5)).toBe(2.5); });")

	assert.Equal(t, "describe('calc', () => {\n  test('a', () => {});\n\n  test('b', () => { expect(half(5)).toBeCloseTo(2.5); });\n});", got)
}

func TestAddTestCaseWithoutDescribe(t *testing.T) {
	assert.Equal(t, "test('b', () => {});\n", AddTestCase("", "test('b', () => {});"))
	assert.Equal(t, "const x = 1;\n\ntest('b', () => {});\n", AddTestCase("const x = 1;", "test('b', () => {});"))
	assert.Equal(t, "test('a', () => {});\n\ntest('b', () => {});\n", AddTestCase("test('a', () => {});", "test('b', () => {});"))
}

func TestRequiredFunctionNames(t *testing.T) {
	src := `expect(add(1, 2)).toBe(3);
expect(add(2, 2)).toBe(4);
expect(addExponent(2, 3)).toBe(8);
expect(() => divide(1, 0)).toThrow();`

	assert.Equal(t, []string{"add", "addExponent"}, RequiredFunctionNames(src))
}

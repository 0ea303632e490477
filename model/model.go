package model

import (
	"codemate/diff"
	"codemate/validator"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ExecutionRequest asks for a single sandboxed run. Code is base64 encoded
// when Encoded is set.
type ExecutionRequest struct {
	Code    string `json:"code"`
	Encoded bool   `json:"encoded,omitempty"`
}

// ExecutionResponse is the wire form of an execution result.
type ExecutionResponse struct {
	Success        bool                                `json:"success"`
	Logs           []string                            `json:"logs"`
	Errors         []string                            `json:"errors,omitempty"`
	ExportedValues *orderedmap.OrderedMap[string, any] `json:"exportedValues,omitempty"`
	ReturnValue    any                                 `json:"returnValue,omitempty"`
	ExecutionTime  string                              `json:"executionTime"`
	StatusMessage  string                              `json:"status_message"`
	Error          string                              `json:"error,omitempty"`
}

type ValidationRequest struct {
	Implementation string `json:"implementation"`
	Tests          string `json:"tests"`
	Encoded        bool   `json:"encoded,omitempty"`
	// Mode overrides the configured binding mode: "source" or "live".
	Mode string `json:"mode,omitempty"`
}

type ValidationResponse struct {
	validator.TestResult
	StatusMessage string `json:"status_message"`
	Error         string `json:"error,omitempty"`
}

type DiffRequest struct {
	OriginalCode string `json:"originalCode"`
	NewCode      string `json:"newCode"`
	Encoded      bool   `json:"encoded,omitempty"`
}

type DiffResponse struct {
	Report        *diff.Report `json:"report,omitempty"`
	Plain         string       `json:"plain,omitempty"`
	StatusMessage string       `json:"status_message"`
	Error         string       `json:"error,omitempty"`
}

type ExtractRequest struct {
	Tests   string `json:"tests"`
	Encoded bool   `json:"encoded,omitempty"`
}

type ExtractResponse struct {
	TestCases     []validator.TestCase `json:"testCases"`
	StatusMessage string               `json:"status_message"`
	Error         string               `json:"error,omitempty"`
}

// AddTestCaseRequest inserts TestCase into the Tests file. Decimal toBe
// assertions in the new case become toBeCloseTo.
type AddTestCaseRequest struct {
	Tests    string `json:"tests"`
	TestCase string `json:"testCase"`
	Encoded  bool   `json:"encoded,omitempty"`
}

type AddTestCaseResponse struct {
	Tests         string               `json:"tests"`
	TestCases     []validator.TestCase `json:"testCases"`
	StatusMessage string               `json:"status_message"`
	Error         string               `json:"error,omitempty"`
}

// GenerateTestsRequest asks the completion provider for a test suite
// describing Feature.
type GenerateTestsRequest struct {
	Feature string `json:"feature"`
}

// GenerateImplementationRequest asks for code that satisfies Tests. Prior
// carries the failing result of an earlier attempt, if any.
type GenerateImplementationRequest struct {
	Tests        string                `json:"tests"`
	ExistingCode string                `json:"existingCode,omitempty"`
	Prior        *validator.TestResult `json:"prior,omitempty"`
}

type GenerateResponse struct {
	Code          string `json:"code"`
	StatusMessage string `json:"status_message"`
	Error         string `json:"error,omitempty"`
}

// AutoFixRequest runs Tests against Implementation and, when some fail,
// asks for a fixed implementation and re-validates it.
type AutoFixRequest struct {
	Implementation string `json:"implementation"`
	Tests          string `json:"tests"`
}

type AutoFixResponse struct {
	Before        validator.TestResult  `json:"before"`
	After         *validator.TestResult `json:"after,omitempty"`
	Code          string                `json:"code,omitempty"`
	Diff          *diff.Report          `json:"diff,omitempty"`
	StatusMessage string                `json:"status_message"`
	Error         string                `json:"error,omitempty"`
}

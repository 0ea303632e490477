package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"codemate/diff"
	"codemate/executor"
	"codemate/internal"
	"codemate/logger"
	"codemate/metrics"
	"codemate/model"
	"codemate/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrInvalidRequest     = errors.New("invalid request parameters")
	ErrGenerationDisabled = errors.New("code generation is not configured")
)

const layer = "service"

// Pool runs tasks on a worker's own executor.
type Pool interface {
	Do(ctx context.Context, task executor.Task) error
}

type Config struct {
	MaxCodeLength int
	Mode          validator.Mode
}

// CodeService is the single entry point the transports call.
type CodeService struct {
	pool      Pool
	differ    *diff.Generator
	assistant *internal.Assistant
	streamer  *logger.BetterStackLogStreamer
	logger    *zap.Logger
	cfg       Config
}

type Option func(*CodeService)

// WithAssistant enables the generate and auto-fix operations.
func WithAssistant(a *internal.Assistant) Option {
	return func(s *CodeService) { s.assistant = a }
}

func WithStreamer(streamer *logger.BetterStackLogStreamer) Option {
	return func(s *CodeService) { s.streamer = streamer }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CodeService) { s.logger = l }
}

func NewCodeService(pool Pool, cfg Config, opts ...Option) *CodeService {
	if cfg.Mode == "" {
		cfg.Mode = validator.ModeSource
	}
	s := &CodeService{
		pool:   pool,
		differ: diff.NewGenerator(),
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CodeService) log(level zapcore.Level, traceID, msg string, attrs map[string]any, err error) {
	if s.streamer != nil {
		s.streamer.Log(level, traceID, msg, attrs, layer, err)
		return
	}
	if level < zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	s.logger.Log(level, msg, zap.String("traceID", traceID), zap.Any("attributes", attrs), zap.Error(err))
}

// prepare decodes base64 input when asked to and sanitizes it.
func (s *CodeService) prepare(field, code string, encoded bool) (string, error) {
	if encoded {
		raw, err := base64.StdEncoding.DecodeString(code)
		if err != nil {
			return "", fmt.Errorf("%w: failed to decode base64 %s: %v", ErrInvalidRequest, field, err)
		}
		code = string(raw)
	}
	if err := internal.SanitizeCode(field, code, s.cfg.MaxCodeLength); err != nil {
		metrics.Reject("sanitization")
		return "", err
	}
	return code, nil
}

func (s *CodeService) submit(ctx context.Context, task executor.Task) error {
	err := s.pool.Do(ctx, task)
	if errors.Is(err, executor.ErrQueueFull) {
		metrics.Reject("queue_full")
	}
	return err
}

func outcome(err error, ok bool) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case ok:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailure
	}
}

func (s *CodeService) Execute(ctx context.Context, req model.ExecutionRequest) (resp *model.ExecutionResponse, err error) {
	start := time.Now()
	traceID := uuid.NewString()
	defer func() { metrics.Observe("execute", outcome(err, resp.Success), time.Since(start)) }()

	code, err := s.prepare("code", req.Code, req.Encoded)
	if err != nil {
		return &model.ExecutionResponse{Logs: []string{}, StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	s.log(logger.NoticeLevel, traceID, "Execution queued", map[string]any{"codeLength": len(code)}, nil)

	resp = &model.ExecutionResponse{}
	err = s.submit(ctx, func(ctx context.Context, e *executor.Executor) {
		result := e.Execute(ctx, code)
		resp.Success = result.Success
		resp.Logs = result.Logs
		if resp.Logs == nil {
			resp.Logs = []string{}
		}
		resp.Errors = result.Errors
		resp.ReturnValue = result.ReturnValue
		resp.ExecutionTime = result.ExecutionTime.String()
		if result.ExportedValues.Len() > 0 {
			resp.ExportedValues = result.ExportedValues.Snapshot()
		}
	})
	if err != nil {
		s.log(zapcore.ErrorLevel, traceID, "Execution not run", nil, err)
		return &model.ExecutionResponse{Logs: []string{}, StatusMessage: "Execution Unavailable", Error: err.Error()}, err
	}

	if resp.Success {
		resp.StatusMessage = "Success"
	} else {
		resp.StatusMessage = "Runtime Error"
		resp.Error = (&executor.ExecutionResult{Errors: resp.Errors}).FirstError("execution failed")
	}
	s.log(zapcore.InfoLevel, traceID, "Execution finished", map[string]any{
		"success":  resp.Success,
		"duration": resp.ExecutionTime,
	}, nil)
	return resp, nil
}

// runTests validates inside one worker so both runs share its executor.
func (s *CodeService) runTests(ctx context.Context, impl, tests string, mode validator.Mode) (validator.TestResult, error) {
	var result validator.TestResult
	err := s.submit(ctx, func(ctx context.Context, e *executor.Executor) {
		result = validator.New(e, validator.WithMode(mode)).Validate(ctx, impl, tests)
	})
	if err == nil {
		metrics.ObserveTests(result.Passing, result.Failing)
	}
	return result, err
}

func (s *CodeService) Validate(ctx context.Context, req model.ValidationRequest) (resp *model.ValidationResponse, err error) {
	start := time.Now()
	traceID := uuid.NewString()
	defer func() { metrics.Observe("validate", outcome(err, resp.Failing == 0), time.Since(start)) }()

	fail := func(status string, err error) (*model.ValidationResponse, error) {
		return &model.ValidationResponse{
			TestResult:    validator.TestResult{Logs: []string{}, FailingTests: []validator.FailingTest{}},
			StatusMessage: status,
			Error:         err.Error(),
		}, err
	}

	mode := s.cfg.Mode
	if req.Mode != "" {
		if mode, err = validator.ParseMode(req.Mode); err != nil {
			return fail("Invalid Request", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		}
	}
	impl, err := s.prepare("implementation", req.Implementation, req.Encoded)
	if err != nil {
		return fail("Invalid Request", err)
	}
	tests, err := s.prepare("tests", req.Tests, req.Encoded)
	if err != nil {
		return fail("Invalid Request", err)
	}

	result, err := s.runTests(ctx, impl, tests, mode)
	if err != nil {
		s.log(zapcore.ErrorLevel, traceID, "Validation not run", nil, err)
		return fail("Validation Unavailable", err)
	}

	status := "All Tests Passed"
	if result.Failing > 0 {
		status = "Tests Failed"
	}
	s.log(zapcore.InfoLevel, traceID, "Validation finished", map[string]any{
		"passing": result.Passing,
		"failing": result.Failing,
		"mode":    string(mode),
	}, nil)
	return &model.ValidationResponse{TestResult: result, StatusMessage: status}, nil
}

func (s *CodeService) Diff(ctx context.Context, req model.DiffRequest) (resp *model.DiffResponse, err error) {
	start := time.Now()
	defer func() { metrics.Observe("diff", outcome(err, true), time.Since(start)) }()

	decode := func(field, code string) (string, error) {
		if !req.Encoded {
			return code, nil
		}
		raw, err := base64.StdEncoding.DecodeString(code)
		if err != nil {
			return "", fmt.Errorf("%w: failed to decode base64 %s: %v", ErrInvalidRequest, field, err)
		}
		return string(raw), nil
	}
	original, err := decode("originalCode", req.OriginalCode)
	if err != nil {
		return &model.DiffResponse{StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	updated, err := decode("newCode", req.NewCode)
	if err != nil {
		return &model.DiffResponse{StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	for field, code := range map[string]string{"originalCode": original, "newCode": updated} {
		if s.cfg.MaxCodeLength > 0 && len(code) > s.cfg.MaxCodeLength {
			err := internal.SanitizeCode(field, code, s.cfg.MaxCodeLength)
			return &model.DiffResponse{StatusMessage: "Invalid Request", Error: err.Error()}, err
		}
	}

	report, err := s.differ.Generate(ctx, original, updated)
	if err != nil {
		return &model.DiffResponse{StatusMessage: "Diff Failed", Error: err.Error()}, err
	}
	status := "No Changes"
	if report.Changed() {
		status = "Changed"
	}
	return &model.DiffResponse{Report: report, Plain: report.Plain(), StatusMessage: status}, nil
}

func (s *CodeService) ExtractTests(ctx context.Context, req model.ExtractRequest) (resp *model.ExtractResponse, err error) {
	start := time.Now()
	defer func() { metrics.Observe("extract", outcome(err, true), time.Since(start)) }()

	tests, err := s.prepare("tests", req.Tests, req.Encoded)
	if err != nil {
		return &model.ExtractResponse{TestCases: []validator.TestCase{}, StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	cases, err := validator.ExtractTestCases(ctx, tests)
	if err != nil {
		return &model.ExtractResponse{TestCases: []validator.TestCase{}, StatusMessage: "Extraction Failed", Error: err.Error()}, err
	}
	if cases == nil {
		cases = []validator.TestCase{}
	}
	return &model.ExtractResponse{TestCases: cases, StatusMessage: "Success"}, nil
}

// AddTestCase inserts a test case into a test file and lists the cases the
// updated file now holds. An empty file is fine; the case is not.
func (s *CodeService) AddTestCase(ctx context.Context, req model.AddTestCaseRequest) (resp *model.AddTestCaseResponse, err error) {
	start := time.Now()
	defer func() { metrics.Observe("add_test_case", outcome(err, true), time.Since(start)) }()

	invalid := func(err error) (*model.AddTestCaseResponse, error) {
		return &model.AddTestCaseResponse{TestCases: []validator.TestCase{}, StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	tests := req.Tests
	if tests != "" {
		if tests, err = s.prepare("tests", req.Tests, req.Encoded); err != nil {
			return invalid(err)
		}
	}
	testCase, err := s.prepare("testCase", req.TestCase, req.Encoded)
	if err != nil {
		return invalid(err)
	}

	updated := validator.AddTestCase(tests, testCase)
	if err := internal.SanitizeCode("tests", updated, s.cfg.MaxCodeLength); err != nil {
		return invalid(err)
	}
	cases, err := validator.ExtractTestCases(ctx, updated)
	if err != nil {
		return &model.AddTestCaseResponse{Tests: updated, TestCases: []validator.TestCase{}, StatusMessage: "Extraction Failed", Error: err.Error()}, err
	}
	if cases == nil {
		cases = []validator.TestCase{}
	}
	return &model.AddTestCaseResponse{Tests: updated, TestCases: cases, StatusMessage: "Success"}, nil
}

func (s *CodeService) GenerateTests(ctx context.Context, req model.GenerateTestsRequest) (resp *model.GenerateResponse, err error) {
	start := time.Now()
	traceID := uuid.NewString()
	defer func() { metrics.Observe("generate_tests", outcome(err, true), time.Since(start)) }()

	if s.assistant == nil {
		return &model.GenerateResponse{StatusMessage: "Generation Disabled", Error: ErrGenerationDisabled.Error()}, ErrGenerationDisabled
	}
	if err := internal.SanitizeCode("feature", req.Feature, s.cfg.MaxCodeLength); err != nil {
		return &model.GenerateResponse{StatusMessage: "Invalid Request", Error: err.Error()}, err
	}

	code, err := s.assistant.GenerateTests(ctx, req.Feature)
	if err != nil {
		s.log(zapcore.ErrorLevel, traceID, "Test generation failed", nil, err)
		return &model.GenerateResponse{StatusMessage: "Generation Failed", Error: err.Error()}, err
	}
	s.log(zapcore.InfoLevel, traceID, "Tests generated", map[string]any{"length": len(code)}, nil)
	return &model.GenerateResponse{Code: code, StatusMessage: "Success"}, nil
}

func (s *CodeService) GenerateImplementation(ctx context.Context, req model.GenerateImplementationRequest) (resp *model.GenerateResponse, err error) {
	start := time.Now()
	traceID := uuid.NewString()
	defer func() { metrics.Observe("generate_implementation", outcome(err, true), time.Since(start)) }()

	if s.assistant == nil {
		return &model.GenerateResponse{StatusMessage: "Generation Disabled", Error: ErrGenerationDisabled.Error()}, ErrGenerationDisabled
	}
	if err := internal.SanitizeCode("tests", req.Tests, s.cfg.MaxCodeLength); err != nil {
		return &model.GenerateResponse{StatusMessage: "Invalid Request", Error: err.Error()}, err
	}

	code, err := s.assistant.GenerateImplementation(ctx, req.Tests, req.ExistingCode, req.Prior)
	if err != nil {
		s.log(zapcore.ErrorLevel, traceID, "Implementation generation failed", nil, err)
		return &model.GenerateResponse{StatusMessage: "Generation Failed", Error: err.Error()}, err
	}
	s.log(zapcore.InfoLevel, traceID, "Implementation generated", map[string]any{"length": len(code)}, nil)
	return &model.GenerateResponse{Code: code, StatusMessage: "Success"}, nil
}

// AutoFix validates the implementation and, if anything fails, asks for a
// fix with the failures as feedback, diffs it and validates it again.
func (s *CodeService) AutoFix(ctx context.Context, req model.AutoFixRequest) (resp *model.AutoFixResponse, err error) {
	start := time.Now()
	traceID := uuid.NewString()
	defer func() { metrics.Observe("autofix", outcome(err, resp.After == nil || resp.After.Failing == 0), time.Since(start)) }()

	empty := validator.TestResult{Logs: []string{}, FailingTests: []validator.FailingTest{}}
	if s.assistant == nil {
		return &model.AutoFixResponse{Before: empty, StatusMessage: "Generation Disabled", Error: ErrGenerationDisabled.Error()}, ErrGenerationDisabled
	}
	impl, err := s.prepare("implementation", req.Implementation, false)
	if err != nil {
		return &model.AutoFixResponse{Before: empty, StatusMessage: "Invalid Request", Error: err.Error()}, err
	}
	tests, err := s.prepare("tests", req.Tests, false)
	if err != nil {
		return &model.AutoFixResponse{Before: empty, StatusMessage: "Invalid Request", Error: err.Error()}, err
	}

	before, err := s.runTests(ctx, impl, tests, s.cfg.Mode)
	if err != nil {
		return &model.AutoFixResponse{Before: empty, StatusMessage: "Validation Unavailable", Error: err.Error()}, err
	}
	if before.Failing == 0 {
		return &model.AutoFixResponse{Before: before, StatusMessage: "All Tests Passed"}, nil
	}

	code, err := s.assistant.GenerateImplementation(ctx, tests, impl, &before)
	if err != nil {
		s.log(zapcore.ErrorLevel, traceID, "Auto-fix generation failed", nil, err)
		return &model.AutoFixResponse{Before: before, StatusMessage: "Generation Failed", Error: err.Error()}, err
	}

	report, err := s.differ.Generate(ctx, impl, code)
	if err != nil {
		return &model.AutoFixResponse{Before: before, Code: code, StatusMessage: "Diff Failed", Error: err.Error()}, err
	}
	after, err := s.runTests(ctx, code, tests, s.cfg.Mode)
	if err != nil {
		return &model.AutoFixResponse{Before: before, Code: code, Diff: report, StatusMessage: "Validation Unavailable", Error: err.Error()}, err
	}

	status := "Fixed"
	if after.Failing > 0 {
		status = "Tests Still Failing"
	}
	s.log(zapcore.InfoLevel, traceID, "Auto-fix finished", map[string]any{
		"failingBefore": before.Failing,
		"failingAfter":  after.Failing,
	}, nil)
	return &model.AutoFixResponse{Before: before, After: &after, Code: code, Diff: report, StatusMessage: status}, nil
}

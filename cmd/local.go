package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"codemate/config"
	"codemate/console"
	"codemate/diff"
	"codemate/executor"
	"codemate/validator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errTestsFailed = errors.New("tests failed")

// readSource reads a file, or stdin for "-".
func readSource(in io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func localExecutor() *executor.Executor {
	return executor.New(console.New(nil), executorOptions(config.LoadConfig()))
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file|->",
		Short: "Run a JavaScript file in the sandbox and print its console",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			result := localExecutor().Execute(cmd.Context(), code)
			for _, line := range result.Logs {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !result.Success {
				return errors.New(result.FirstError("execution failed"))
			}
			return nil
		},
	}
}

func newTestCmd() *cobra.Command {
	var mode string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "test <implementation> <tests>",
		Short: "Validate an implementation against a test file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := validator.ParseMode(mode)
			if err != nil {
				return err
			}
			impl, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			tests, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			result := validator.New(localExecutor(), validator.WithMode(m)).Validate(cmd.Context(), impl, tests)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printResult(out, result)
			}
			if result.Failing > 0 {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(validator.ModeSource), "Binding mode for exports: source or live")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(w io.Writer, r validator.TestResult) {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	for _, t := range r.FailingTests {
		fail.Fprintf(w, "FAIL %s\n", t.Name)
		fmt.Fprintf(w, "     %s\n", t.Error)
	}
	summary := pass
	if r.Failing > 0 {
		summary = fail
	}
	summary.Fprintf(w, "%d passing, %d failing, %d total (%s)\n", r.Passing, r.Failing, r.Total, r.ExecutionTime)
}

func newDiffCmd() *cobra.Command {
	var plain, asJSON bool

	cmd := &cobra.Command{
		Use:   "diff <original> <new>",
		Short: "Show function and export level changes between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			updated, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			report, err := diff.NewGenerator().Generate(cmd.Context(), original, updated)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return json.NewEncoder(out).Encode(report)
			case plain:
				return diff.RenderPlain(out, report)
			default:
				return diff.RenderANSI(out, report)
			}
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print without colors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newAddTestCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "add-test <tests> <case|->",
		Short: "Insert a test case into a test file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tests, err := os.ReadFile(args[0])
			if err != nil && !(write && errors.Is(err, os.ErrNotExist)) {
				return err
			}
			testCase, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			if strings.TrimSpace(testCase) == "" {
				return errors.New("test case is empty")
			}

			updated := validator.AddTestCase(string(tests), testCase)
			if write {
				return os.WriteFile(args[0], []byte(updated), 0o644)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), updated)
			return err
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the test file")
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <tests|->",
		Short: "List the test cases in a test file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tests, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			cases, err := validator.ExtractTestCases(cmd.Context(), tests)
			if err != nil {
				return err
			}
			if cases == nil {
				cases = []validator.TestCase{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cases)
		},
	}
}

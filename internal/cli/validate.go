package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/roundtrip/internal/harness"
)

// ValidationError describes one scenario file that failed to load.
type ValidationError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Scenarios []string          `json:"scenarios"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-dir-or-file>...",
		Short: "Validate scenario files without connecting",
		Long: heredoc.Doc(`
			Check scenario files without running them: strict YAML decoding,
			the embedded schema, per-step rules and CEL expressions. Every
			file is checked, so one run reports all broken files.
		`),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := harness.ScenarioFiles(paths...)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	result := ValidationResult{Scenarios: []string{}}
	seen := make(map[string]string, len(files))
	for _, f := range files {
		sc, err := harness.LoadScenario(f)
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{File: f, Message: err.Error()})
			continue
		}
		if prev, ok := seen[sc.Name]; ok {
			result.Errors = append(result.Errors, ValidationError{
				File:    f,
				Message: fmt.Sprintf("duplicate scenario name %q (also in %s)", sc.Name, prev),
			})
			continue
		}
		seen[sc.Name] = f
		result.Scenarios = append(result.Scenarios, sc.Name)
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		var failure *CLIError
		if !result.Valid {
			failure = &CLIError{
				Code:    ErrCodeInvalidScenario,
				Message: fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors)),
			}
		}
		if err := formatter.Report(result, failure); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, name := range result.Scenarios {
			fmt.Fprintf(w, "%s %s\n", formatter.Mark(true), name)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(w, "%s %s\n  %s\n", formatter.Mark(false), e.File, e.Message)
		}
		if result.Valid {
			fmt.Fprintf(w, "%d scenario(s) valid\n", len(result.Scenarios))
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors)))
	}
	return nil
}

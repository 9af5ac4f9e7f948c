package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/roundtrip/internal/config"
	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/harness"
	"github.com/roach88/roundtrip/internal/metrics"
	"github.com/roach88/roundtrip/internal/store"
	"github.com/roach88/roundtrip/internal/store/mongostore"
	"github.com/roach88/roundtrip/internal/store/sqlstore"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern over names)

	// Dialer overrides the store chosen from the target's scheme (for testing).
	Dialer store.Dialer
}

// Golden file states reported per scenario.
const (
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// ScenarioReport is the outcome of one scenario.
type ScenarioReport struct {
	Name      string               `json:"name"`
	Pass      bool                 `json:"pass"`
	Kind      string               `json:"kind,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
	ElapsedMS float64              `json:"elapsed_ms"`
	Golden    string               `json:"golden,omitempty"`
	Trace     []harness.TraceEvent `json:"trace,omitempty"`
}

// RunReport is the outcome of a run or check invocation.
type RunReport struct {
	Target      string           `json:"target"`
	MaxPoolSize uint64           `json:"max_pool_size"`
	Scenarios   []ScenarioReport `json:"scenarios"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Total       int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-dir-or-file>...",
		Short: "Run scenario files against a target",
		Long: heredoc.Doc(`
			Run round-trip scenarios from YAML files against a target.

			Each scenario runs on its own connection. When a golden file exists
			at golden/<file>.golden next to a scenario, its trace must match it;
			--update rewrites those files.

			Exit codes:
			  0 - All scenarios passed
			  1 - One or more scenarios failed
			  2 - Command error (invalid paths, bad settings, etc.)
		`),
		Example: heredoc.Doc(`
			roundtrip run ./scenarios
			roundtrip run ./scenarios --target "localhost:50000/test?maxPoolSize=1"
			roundtrip run ./scenarios --target sqlite::memory: --filter "direct_*"
			roundtrip run ./scenarios/not_found.yaml --format json --update
		`),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenarios, err := harness.LoadScenarios(paths...)
	if err != nil {
		code := ErrCodeInvalidScenario
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	scenarios, err = filterScenarios(scenarios, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	formatter.VerboseLog("Loaded %d scenario(s)", len(scenarios))

	return execute(cmd, opts.RootOptions, formatter, scenarios, opts.Dialer, func(sc *harness.Scenario, res *harness.Result, rep *ScenarioReport) {
		checkGolden(sc, res, rep, opts.Update)
	})
}

// filterScenarios keeps scenarios whose name matches pattern.
func filterScenarios(scenarios []*harness.Scenario, pattern string) ([]*harness.Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}
	var kept []*harness.Scenario
	for _, sc := range scenarios {
		if ok, _ := filepath.Match(pattern, sc.Name); ok {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

// defaultDialer routes targets to a store by scheme.
func defaultDialer() store.Dialer {
	return store.Schemes{
		"mongodb": mongostore.Dialer{},
		"sqlite":  sqlstore.Dialer{},
	}
}

// execute runs scenarios with the resolved settings and writes the report.
// post, when set, may amend each scenario's report before output.
func execute(
	cmd *cobra.Command,
	root *RootOptions,
	formatter *OutputFormatter,
	scenarios []*harness.Scenario,
	dialer store.Dialer,
	post func(*harness.Scenario, *harness.Result, *ScenarioReport),
) error {
	settings, err := config.Load(cmd.Flags(), root.ConfigFile)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	cfg, err := settings.StoreConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid target", err)
	}
	if dialer == nil {
		dialer = defaultDialer()
	}

	collector := metrics.New()
	logger := root.logger(cmd.ErrOrStderr(), settings.LogLevel)
	logger.Debug("starting run", "target", harness.Redact(cfg.URI), "scenarios", len(scenarios), "parallel", settings.Parallel)

	results, err := harness.RunAll(cmd.Context(), dialer, cfg, scenarios, settings.Parallel,
		harness.WithLogger(logger),
		harness.WithObserver(operationObserver{collector}),
	)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	report := RunReport{
		Target:      harness.Redact(cfg.URI),
		MaxPoolSize: cfg.MaxPoolSize,
		Scenarios:   make([]ScenarioReport, 0, len(results)),
		Total:       len(results),
	}
	for i, res := range results {
		rep := ScenarioReport{
			Name:      res.Scenario,
			Pass:      res.Pass,
			Kind:      string(res.Kind),
			Errors:    res.Errors,
			ElapsedMS: float64(res.Elapsed.Microseconds()) / 1000,
		}
		if root.Verbose {
			rep.Trace = res.Trace
		}
		if post != nil {
			post(scenarios[i], res, &rep)
		}
		collector.ObserveScenario(rep.Name, rep.Pass)
		if rep.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Scenarios = append(report.Scenarios, rep)
	}

	if settings.MetricsFile != "" {
		if err := collector.WriteFile(settings.MetricsFile); err != nil {
			_ = formatter.Error(ErrCodeMetrics, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", settings.MetricsFile)
	}

	return writeReport(formatter, report)
}

// operationObserver forwards operations only. Scenario outcomes are counted
// once golden checks have had their say.
type operationObserver struct {
	*metrics.Collector
}

func (operationObserver) ObserveScenario(string, bool) {}

// writeReport prints the report and maps failures to ExitFailure.
func writeReport(f *OutputFormatter, report RunReport) error {
	var failure *CLIError
	if report.Failed > 0 {
		failure = &CLIError{
			Code:    ErrCodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", report.Failed),
		}
	}

	if f.JSON() {
		if err := f.Report(report, failure); err != nil {
			return err
		}
	} else {
		writeReportText(f, report)
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func writeReportText(f *OutputFormatter, report RunReport) {
	w := f.Writer
	fmt.Fprintf(w, "Target: %s (max pool size %d)\n", report.Target, report.MaxPoolSize)
	for _, sc := range report.Scenarios {
		line := fmt.Sprintf("%s %s", f.Mark(sc.Pass), sc.Name)
		if sc.Kind != "" {
			line += fmt.Sprintf(" [%s]", sc.Kind)
		}
		if sc.Golden == GoldenUpdated {
			line += " (golden updated)"
		}
		fmt.Fprintln(w, line)
		for _, e := range sc.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
		for _, ev := range sc.Trace {
			fmt.Fprintln(w, f.Faint(formatEvent(ev)))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
	if report.Failed == 0 {
		fmt.Fprintf(w, "%s All scenarios passed\n", f.Mark(true))
	}
}

// formatEvent renders one trace event on a line.
func formatEvent(ev harness.TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    %d %s", ev.Seq, ev.Op)
	if ev.Collection != "" {
		fmt.Fprintf(&b, " %s", ev.Collection)
	}
	if ev.MaxPoolSize != 0 {
		fmt.Fprintf(&b, " max_pool_size=%d", ev.MaxPoolSize)
	}
	if ev.ReadPreference != "" {
		fmt.Fprintf(&b, " read_preference=%s", ev.ReadPreference)
	}
	for _, part := range []struct {
		label string
		body  []byte
	}{
		{"document", marshalOrNil(ev.Document)},
		{"filter", marshalOrNil(ev.Filter)},
		{"result", marshalOrNil(ev.Result)},
	} {
		if part.body != nil {
			fmt.Fprintf(&b, " %s=%s", part.label, part.body)
		}
	}
	fmt.Fprintf(&b, " -> %s", ev.Outcome)
	return b.String()
}

func marshalOrNil(d doc.Document) []byte {
	if d == nil {
		return nil
	}
	out, err := doc.MarshalCanonical(d)
	if err != nil {
		return nil
	}
	return out
}

// goldenFilePath returns the path to the golden file for a scenario file.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares a scenario's trace with its golden file, or rewrites
// the file when update is set. Scenarios without a source file are skipped.
func checkGolden(sc *harness.Scenario, res *harness.Result, rep *ScenarioReport, update bool) {
	if sc.Path == "" {
		return
	}
	fail := func(msg string) {
		rep.Pass = false
		rep.Errors = append(rep.Errors, msg)
	}

	snapshot, err := harness.Snapshot(res)
	if err != nil {
		fail(fmt.Sprintf("failed to snapshot trace: %v", err))
		return
	}
	path := goldenFilePath(sc.Path)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fail(fmt.Sprintf("failed to create golden directory: %v", err))
			return
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			fail(fmt.Sprintf("failed to write golden file: %v", err))
			return
		}
		rep.Golden = GoldenUpdated
		return
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		fail(fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(want, snapshot) {
		rep.Golden = GoldenMismatch
		fail(fmt.Sprintf("trace does not match %s (run with --update to regenerate)", path))
		return
	}
	rep.Golden = GoldenMatch
}

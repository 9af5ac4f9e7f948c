package cli

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/roundtrip/internal/config"
	"github.com/roach88/roundtrip/internal/harness"
	"github.com/roach88/roundtrip/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Scenario string // built-in scenario name or "all"

	// Dialer overrides the store chosen from the target's scheme (for testing).
	Dialer store.Dialer
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return newCheckCommand(&CheckOptions{RootOptions: rootOpts})
}

func newCheckCommand(opts *CheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the built-in round-trip scenarios",
		Long: heredoc.Docf(`
			Run the built-in scenarios against a target:

			  direct_fetch      insert {a: 1} into %[1]s, point lookup {a: 1}, expect a == 1
			  cursor_secondary  insert {a: 1} into %[1]s, cursor over {a: 1} routed to a
			                    secondary, expect a == 1
			  not_found         point lookup {a: 999} in %[1]s, expect not_found

			The default target is %[2]s.
		`, harness.BuiltinCollection, config.DefaultTarget),
		Example: heredoc.Doc(`
			roundtrip check
			roundtrip check --scenario cursor_secondary --operation-timeout 2s
			roundtrip check --target "mongodb://db1:27017,db2:27017/test?replicaSet=rs0&maxPoolSize=1"
		`),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "all", "built-in scenario to run ("+strings.Join(builtinNames(), "|")+"|all)")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenarios := harness.Builtin()
	if opts.Scenario != "all" {
		sc, ok := harness.BuiltinByName(opts.Scenario)
		if !ok {
			msg := fmt.Sprintf("unknown scenario %q: must be one of %v or all", opts.Scenario, builtinNames())
			_ = formatter.Error(ErrCodeGeneric, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		scenarios = []*harness.Scenario{sc}
	}

	return execute(cmd, opts.RootOptions, formatter, scenarios, opts.Dialer, nil)
}

func builtinNames() []string {
	builtin := harness.Builtin()
	names := make([]string, len(builtin))
	for i, sc := range builtin {
		names[i] = sc.Name
	}
	return names
}

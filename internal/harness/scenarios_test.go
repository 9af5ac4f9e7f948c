package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioFiles runs every scenario shipped in the repository against a
// local store.
func TestScenarioFiles(t *testing.T) {
	scenarios, err := LoadScenarios("../../scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	dialer, cfg := sqliteTarget(t)
	results, err := RunAll(context.Background(), dialer, cfg, scenarios, 4, deterministic()...)
	require.NoError(t, err)

	for _, res := range results {
		t.Run(res.Scenario, func(t *testing.T) {
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

// TestScenarioFiles_MatchBuiltins keeps the shipped copies of the built-in
// scenarios in step with the compiled ones.
func TestScenarioFiles_MatchBuiltins(t *testing.T) {
	for _, want := range Builtin() {
		t.Run(want.Name, func(t *testing.T) {
			got, err := LoadScenario("../../scenarios/" + want.Name + ".yaml")
			require.NoError(t, err)

			got.Path = ""
			assert.Equal(t, want, got)
		})
	}
}

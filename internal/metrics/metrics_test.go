package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roundtrip/internal/harness"
	"github.com/roach88/roundtrip/internal/store"
	"github.com/roach88/roundtrip/internal/store/sqlstore"
)

var _ harness.Observer = (*Collector)(nil)

func TestCollector_ObserveOp(t *testing.T) {
	c := New()
	c.ObserveOp("insert", "ok", 2*time.Millisecond)
	c.ObserveOp("insert", "ok", 3*time.Millisecond)
	c.ObserveOp("find_one", "not_found", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("find_one", "not_found")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.durations))
}

func TestCollector_ObserveScenario(t *testing.T) {
	c := New()
	c.ObserveScenario("direct_fetch", true)
	c.ObserveScenario("not_found", true)
	c.ObserveScenario("broken", false)

	expected := `
# HELP roundtrip_scenarios_total Counts finished scenarios by result
# TYPE roundtrip_scenarios_total counter
roundtrip_scenarios_total{result="fail"} 1
roundtrip_scenarios_total{result="pass"} 2
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "roundtrip_scenarios_total")
	assert.NoError(t, err)
}

func TestCollector_PrivateRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveScenario("x", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.scenarios.WithLabelValues("pass")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.scenarios))
}

func TestCollector_WithHarness(t *testing.T) {
	cfg, err := store.ParseConfig("sqlite::memory:")
	require.NoError(t, err)

	c := New()
	results, err := harness.RunAll(context.Background(), sqlstore.Dialer{}, cfg, harness.Builtin(), 0, harness.WithObserver(c))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.scenarios.WithLabelValues("pass")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ops.WithLabelValues("connect", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ops.WithLabelValues("close", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("find_one", "not_found")))
}

func TestCollector_WriteFile(t *testing.T) {
	c := New()
	c.ObserveOp("connect", "ok", time.Millisecond)

	path := filepath.Join(t.TempDir(), "roundtrip.prom")
	require.NoError(t, c.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `roundtrip_operations_total{op="connect",outcome="ok"} 1`)
	assert.Contains(t, string(data), "roundtrip_operation_duration_seconds_bucket")
}

func TestCollector_WriteFileError(t *testing.T) {
	err := New().WriteFile(filepath.Join(t.TempDir(), "missing", "roundtrip.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write metrics to")
}

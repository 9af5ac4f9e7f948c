package harness

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roundtrip/internal/store"
	"github.com/roach88/roundtrip/internal/store/sqlstore"
	"github.com/roach88/roundtrip/internal/testutil"
)

// sqliteTarget gives every test a private in-memory store.
func sqliteTarget(t *testing.T) (store.Dialer, store.Config) {
	t.Helper()
	cfg, err := store.ParseConfig("sqlite::memory:")
	require.NoError(t, err)
	return sqlstore.Dialer{}, cfg
}

// deterministic pins run ids and elapsed times.
func deterministic() []Option {
	return []Option{
		WithClock(testutil.NewDeterministicClock(time.Millisecond).Now),
		WithRunIDs(testutil.NewFixedRunID("")),
	}
}

type opRecord struct {
	op      string
	outcome string
}

// recordingObserver remembers every observation in order.
type recordingObserver struct {
	mu        sync.Mutex
	ops       []opRecord
	scenarios map[string]bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{scenarios: make(map[string]bool)}
}

func (o *recordingObserver) ObserveOp(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, opRecord{op: op, outcome: outcome})
}

func (o *recordingObserver) ObserveScenario(name string, pass bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scenarios[name] = pass
}

package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// TraceSnapshot captures the trace of a scenario execution.
// It contains nothing run-specific (no ids, no timings, no _id values), so
// equal behaviour yields byte-identical snapshots.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":     event.Seq,
			"op":      event.Op,
			"outcome": event.Outcome,
		}
		if event.Collection != "" {
			eventMap["collection"] = event.Collection
		}
		if event.Document != nil {
			eventMap["document"] = event.Document.Without("_id")
		}
		if event.Filter != nil {
			eventMap["filter"] = event.Filter
		}
		if event.ReadPreference != "" {
			eventMap["read_preference"] = event.ReadPreference
		}
		if event.MaxPoolSize != 0 {
			eventMap["max_pool_size"] = int64(event.MaxPoolSize)
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// Snapshot renders a result's trace as canonical JSON.
func Snapshot(res *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: res.Scenario,
		Trace:        res.Trace,
	}
	return doc.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further assertions, or an error if
// the scenario could not be executed. Test failure (via goldie) occurs if the
// trace doesn't match the golden file.
func RunWithGolden(t *testing.T, dialer store.Dialer, cfg store.Config, sc *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	res, err := Run(context.Background(), dialer, cfg, sc, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(res)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}

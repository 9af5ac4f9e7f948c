package harness

import (
	"time"

	"github.com/roach88/roundtrip/internal/doc"
)

// OutcomeOK is the outcome of an operation that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one operation of a sequence.
// Seq numbers events from 1 in execution order.
type TraceEvent struct {
	Seq            int64        `json:"seq"`
	Op             string       `json:"op"`
	Collection     string       `json:"collection,omitempty"`
	Document       doc.Document `json:"document,omitempty"`
	Filter         doc.Document `json:"filter,omitempty"`
	ReadPreference string       `json:"read_preference,omitempty"`
	MaxPoolSize    uint64       `json:"max_pool_size,omitempty"`
	Outcome        string       `json:"outcome"`
	Result         doc.Document `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the name of the scenario that ran.
	Scenario string `json:"scenario"`

	// RunID identifies this execution in logs.
	RunID string `json:"run_id,omitempty"`

	// Pass indicates every step met its expectation and the connection
	// closed cleanly.
	Pass bool `json:"pass"`

	// Kind is the failure kind of the first failing step. Empty when passing.
	Kind Kind `json:"kind,omitempty"`

	// Trace contains every operation in order, including the final close.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Elapsed is the wall time of the whole sequence.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Failure is the first error that failed the scenario.
	Failure error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(scenario, runID string) *Result {
	return &Result{
		Scenario: scenario,
		RunID:    runID,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
// The first failure decides Kind and Failure.
func (r *Result) AddError(err error) {
	if err == nil {
		return
	}
	if r.Failure == nil {
		r.Failure = err
		r.Kind = KindOf(err)
	}
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}

// addEvent appends ev with the next sequence number.
func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace)) + 1
	r.Trace = append(r.Trace, ev)
}

// outcome names how an operation ended in traces and metrics.
func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

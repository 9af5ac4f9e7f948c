package harness

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/roundtrip/internal/store"
)

// Run executes one scenario against the target described by cfg.
//
// The scenario runs as a single sequence on its own connection: connect,
// every step in order, close. A step whose outcome differs from its
// expectation stops the sequence, and close runs on every path. Failures are
// reported in the Result; the error return is reserved for scenarios that
// fail validation.
func Run(ctx context.Context, dialer store.Dialer, cfg store.Config, sc *Scenario, opts ...Option) (*Result, error) {
	return NewRunner(dialer, cfg, opts...).Run(ctx, sc)
}

// RunAll executes scenarios concurrently, at most parallel at a time (no
// limit if parallel <= 0). Each scenario owns its connection. Results are
// returned in input order. Every scenario is validated before any runs.
func RunAll(ctx context.Context, dialer store.Dialer, cfg store.Config, scenarios []*Scenario, parallel int, opts ...Option) ([]*Result, error) {
	for _, sc := range scenarios {
		if err := validateScenario(sc); err != nil {
			return nil, fmt.Errorf("scenario %q: invalid scenario: %w", sc.Name, err)
		}
	}

	r := NewRunner(dialer, cfg, opts...)
	results := make([]*Result, len(scenarios))

	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := r.Run(ctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run executes sc on a fresh connection. See the package-level Run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := validateScenario(sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	logger := r.logger.With("scenario", sc.Name)
	res := NewResult(sc.Name, r.runIDs.Generate())
	start := r.now()
	defer func() {
		res.Elapsed = r.now().Sub(start)
		r.observer.ObserveScenario(sc.Name, res.Pass)
		logger.Info("scenario finished", "run_id", res.RunID, "pass", res.Pass, "kind", string(res.Kind))
	}()

	h, err := r.Connect(ctx)
	res.addEvent(TraceEvent{Op: OpConnect, MaxPoolSize: r.cfg.MaxPoolSize, Outcome: outcome(err)})
	if err != nil {
		res.AddError(err)
		return res, nil
	}

	for i, step := range sc.Steps {
		if err := r.runStep(ctx, h, sc, step, res); err != nil {
			res.AddError(fmt.Errorf("steps[%d] %s: %w", i, step.Op, err))
			break
		}
	}

	err = r.Close(ctx, h)
	res.addEvent(TraceEvent{Op: OpClose, Outcome: outcome(err)})
	if err != nil {
		res.AddError(err)
	}
	return res, nil
}

// runStep executes one step, records it in the trace and checks its
// expectation.
func (r *Runner) runStep(ctx context.Context, h *Handle, sc *Scenario, step Step, res *Result) error {
	coll := sc.collection(step)

	switch step.Op {
	case OpInsert:
		_, err := r.WriteDocument(ctx, h, coll, step.Document)
		res.addEvent(TraceEvent{Op: step.Op, Collection: coll, Document: step.Document, Outcome: outcome(err)})
		return checkExpect(step.Expect, nil, err)

	case OpDrop:
		err := r.Drop(ctx, h, coll)
		res.addEvent(TraceEvent{Op: step.Op, Collection: coll, Outcome: outcome(err)})
		return checkExpect(step.Expect, nil, err)

	case OpFindOne, OpFind:
		pref, err := store.ParseReadPref(step.ReadPreference)
		if err != nil {
			return err
		}
		mode := FetchDirect
		if step.Op == OpFind {
			mode = FetchCursor
		}
		q := NewQuery(coll, step.Filter, WithReadPref(pref), WithMode(mode))

		d, err := r.ReadDocument(ctx, h, q)
		ev := TraceEvent{
			Op:             step.Op,
			Collection:     coll,
			Filter:         q.Filter(),
			ReadPreference: string(pref),
			Outcome:        outcome(err),
		}
		if d != nil {
			ev.Result = d.Without("_id")
		}
		res.addEvent(ev)
		return checkExpect(step.Expect, d, err)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

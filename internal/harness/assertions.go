package harness

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/go-cmp/cmp"

	"github.com/roach88/roundtrip/internal/doc"
)

// AssertionError is returned when a read document does not meet its expectation.
// It includes both sides so failures can be debugged from the report alone.
type AssertionError struct {
	Type     string // "fields" or "expr"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Diff     string // cmp.Diff of expected against actual, fields only
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n  diff (-expected +actual):\n%s", e.Diff)
	}
	return buf.String()
}

// Is makes errors.Is(err, ErrAssertion) hold.
func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}

// AssertEqual checks that every field of expected is present in actual with an
// equal value. Numbers compare by value, so an int32 written and an int64 read
// back are equal. Fields of actual that expected does not name are ignored.
func AssertEqual(actual, expected doc.Document) error {
	var differing []string
	for _, f := range expected {
		got, ok := actual.Get(f.Key)
		if !ok || !doc.ValuesEqual(got, f.Value) {
			differing = append(differing, f.Key)
		}
	}
	if len(differing) == 0 {
		return nil
	}

	subset := make(doc.Document, 0, len(expected))
	for _, f := range expected {
		if got, ok := actual.Get(f.Key); ok {
			subset = append(subset, doc.Field{Key: f.Key, Value: got})
		}
	}

	return &AssertionError{
		Type:     "fields",
		Expected: render(expected),
		Actual:   render(actual),
		Diff:     cmp.Diff(expected.Map(), subset.Map()),
	}
}

// render formats a document as canonical JSON for messages.
func render(d doc.Document) string {
	if d == nil {
		return "<none>"
	}
	out, err := doc.MarshalCanonical(d)
	if err != nil {
		return fmt.Sprintf("%v", d)
	}
	return string(out)
}

// celEnv declares the single variable expressions see: the read document.
var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// compileExpr type-checks a CEL predicate over doc.
func compileExpr(expr string) (cel.Program, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(types.BoolType) && !out.IsExactType(types.DynType) {
		return nil, fmt.Errorf("expression %q has type %s, want bool", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating program: %w", err)
	}
	return prg, nil
}

// AssertExpr evaluates a CEL predicate with the document bound to doc. The
// predicate must evaluate to true.
func AssertExpr(actual doc.Document, expr string) error {
	prg, err := compileExpr(expr)
	if err != nil {
		return err
	}
	out, _, err := prg.Eval(map[string]any{"doc": actual.Map()})
	if err != nil {
		return &AssertionError{
			Type:     "expr",
			Expected: expr,
			Actual:   fmt.Sprintf("evaluation error: %v on %s", err, render(actual)),
		}
	}
	if out != types.True {
		return &AssertionError{
			Type:     "expr",
			Expected: expr,
			Actual:   fmt.Sprintf("%v on %s", out, render(actual)),
		}
	}
	return nil
}

// checkExpect compares an operation's outcome to a step expectation.
// err is the operation's error, d the document it read (nil for writes).
func checkExpect(exp *Expect, d doc.Document, err error) error {
	if exp == nil || exp.Error == "" {
		if err != nil {
			return err
		}
		if exp == nil {
			return nil
		}
		if exp.Fields != nil {
			if aerr := AssertEqual(d, exp.Fields); aerr != nil {
				return aerr
			}
		}
		if exp.Expr != "" {
			return AssertExpr(d, exp.Expr)
		}
		return nil
	}

	want := Kind(exp.Error)
	if err == nil {
		return &AssertionError{
			Type:     "error",
			Expected: string(want),
			Actual:   "success " + render(d),
		}
	}
	if got := KindOf(err); got != want {
		return &AssertionError{
			Type:     "error",
			Expected: string(want),
			Actual:   fmt.Sprintf("%s (%v)", got, errors.Unwrap(err)),
		}
	}
	return nil
}

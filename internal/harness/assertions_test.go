package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

func TestAssertEqual_Match(t *testing.T) {
	actual := doc.New("_id", "x1", "a", int64(1), "b", "two")

	assert.NoError(t, AssertEqual(actual, doc.New("a", int32(1))))
	assert.NoError(t, AssertEqual(actual, doc.New("a", int32(1), "b", "two")))
	assert.NoError(t, AssertEqual(actual, doc.Document{}), "empty expectation matches anything")
}

func TestAssertEqual_NestedDocument(t *testing.T) {
	actual := doc.New("outer", doc.New("inner", int64(5)))
	assert.NoError(t, AssertEqual(actual, doc.New("outer", doc.New("inner", int32(5)))))
	assert.Error(t, AssertEqual(actual, doc.New("outer", doc.New("inner", int32(6)))))
}

func TestAssertEqual_Mismatch(t *testing.T) {
	err := AssertEqual(doc.New("a", int32(2)), doc.New("a", int32(1)))
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "fields", ae.Type)
	assert.Equal(t, `{"a":1}`, ae.Expected)
	assert.Equal(t, `{"a":2}`, ae.Actual)
	assert.NotEmpty(t, ae.Diff)
	assert.ErrorIs(t, err, ErrAssertion)
	assert.Contains(t, err.Error(), "assertion failed: fields")
}

func TestAssertEqual_LargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	written := doc.New("a", big+1)

	err := AssertEqual(doc.New("_id", "x1", "a", big), written)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssertion)

	assert.NoError(t, AssertEqual(doc.New("_id", "x1", "a", big+1), written))
}

func TestAssertEqual_MissingField(t *testing.T) {
	err := AssertEqual(doc.New("b", int32(1)), doc.New("a", int32(1)))
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Diff, `"a"`)
}

func TestAssertEqual_NilActual(t *testing.T) {
	err := AssertEqual(nil, doc.New("a", int32(1)))
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "<none>", ae.Actual)
}

func TestAssertExpr(t *testing.T) {
	d := doc.New("a", int32(1), "name", "alice", "tags", []any{"x", "y"})

	tests := []struct {
		name string
		expr string
		pass bool
	}{
		{"int equality", "doc.a == 1", true},
		{"int mismatch", "doc.a == 2", false},
		{"string", `doc.name.startsWith("al")`, true},
		{"has macro", "has(doc.name) && !has(doc.missing)", true},
		{"list size", "size(doc.tags) == 2", true},
		{"comparison", "doc.a > 5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertExpr(d, tt.expr)
			if tt.pass {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "expr", ae.Type)
			assert.Equal(t, tt.expr, ae.Expected)
		})
	}
}

func TestAssertExpr_EvaluationError(t *testing.T) {
	err := AssertExpr(doc.New("a", int32(1)), "doc.missing == 1")
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "evaluation error")
}

func TestCompileExpr_Rejects(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"syntax error", "doc.a ==", "error compiling CEL expression"},
		{"undeclared variable", "other.a == 1", "error compiling CEL expression"},
		{"non-bool result", "1 + 1", "want bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileExpr(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckExpect(t *testing.T) {
	found := doc.New("a", int32(1))
	miss := &StepError{Kind: KindNotFound, Op: OpFindOne, Err: store.ErrNotFound}
	readErr := &StepError{Kind: KindRead, Op: OpFindOne, Err: errors.New("socket closed")}

	t.Run("no expectation passes success", func(t *testing.T) {
		assert.NoError(t, checkExpect(nil, nil, nil))
	})

	t.Run("no expectation returns the operation error", func(t *testing.T) {
		assert.Same(t, readErr, checkExpect(nil, nil, readErr))
	})

	t.Run("fields match", func(t *testing.T) {
		assert.NoError(t, checkExpect(&Expect{Fields: doc.New("a", int32(1))}, found, nil))
	})

	t.Run("fields and expr both checked", func(t *testing.T) {
		exp := &Expect{Fields: doc.New("a", int32(1)), Expr: "doc.a == 2"}
		err := checkExpect(exp, found, nil)
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "expr", ae.Type)
	})

	t.Run("field expectation with operation error", func(t *testing.T) {
		err := checkExpect(&Expect{Fields: doc.New("a", int32(1))}, nil, miss)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expected error kind", func(t *testing.T) {
		assert.NoError(t, checkExpect(&Expect{Error: "not_found"}, nil, miss))
	})

	t.Run("wrong error kind", func(t *testing.T) {
		err := checkExpect(&Expect{Error: "not_found"}, nil, readErr)
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "error", ae.Type)
		assert.Equal(t, "not_found", ae.Expected)
		assert.Contains(t, ae.Actual, "read_error")
	})

	t.Run("expected error but succeeded", func(t *testing.T) {
		err := checkExpect(&Expect{Error: "not_found"}, found, nil)
		var ae *AssertionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, `success {"a":1}`, ae.Actual)
	})
}

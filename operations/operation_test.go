package operations

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tocwex/slab-sub000/pkg/logger"
)

type OpDeps struct{}

type OpInput struct {
	A int
	B int
}

func Test_NewOperation(t *testing.T) {
	t.Parallel()

	version := semver.MustParse("1.0.0")
	handler := func(b Bundle, deps OpDeps, input OpInput) (int, error) {
		return input.A + input.B, nil
	}

	op := NewOperation("sum", version, "test operation", handler)

	assert.Equal(t, "sum", op.ID())
	assert.Equal(t, "1.0.0", op.Version())
	assert.Equal(t, "test operation", op.Description())
	assert.Equal(t, op.def, op.Def())
	res, err := op.handler(Bundle{}, OpDeps{}, OpInput{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res)
}

func Test_Operation_Execute(t *testing.T) {
	t.Parallel()

	version := semver.MustParse("1.0.0")
	lggr, observed := logger.TestObserved(t, zapcore.InfoLevel)

	op := NewOperation("sum", version, "test operation", func(b Bundle, deps OpDeps, input OpInput) (int, error) {
		return input.A + input.B, nil
	})
	output, err := op.execute(NewBundle(context.Background, lggr, nil), OpDeps{}, OpInput{A: 1, B: 2})

	require.NoError(t, err)
	assert.Equal(t, 3, output)

	require.Equal(t, 1, observed.Len())
	entry := observed.All()[0]
	assert.Equal(t, "Executing operation", entry.Message)
	assert.Equal(t, "sum", entry.ContextMap()["id"])
	assert.Equal(t, "test operation", entry.ContextMap()["description"])
}

func Test_Operation_AsUntyped(t *testing.T) {
	t.Parallel()

	typedOp := NewOperation("sum", semver.MustParse("1.0.0"), "test operation",
		func(b Bundle, deps OpDeps, input OpInput) (int, error) {
			return input.A + input.B, nil
		})
	untypedOp := typedOp.AsUntyped()
	bundle := NewBundle(t.Context, logger.Test(t), nil)

	assert.Equal(t, typedOp.Def(), untypedOp.Def())

	tests := []struct {
		name        string
		deps        any
		input       any
		wantResult  any
		errContains string
	}{
		{
			name:       "valid input and dependencies",
			deps:       OpDeps{},
			input:      OpInput{A: 3, B: 4},
			wantResult: 7,
		},
		{
			name:        "invalid input type",
			deps:        OpDeps{},
			input:       struct{ C int }{C: 5},
			errContains: "input type mismatch",
		},
		{
			name:        "invalid dependencies type",
			deps:        "invalid",
			input:       OpInput{A: 1, B: 2},
			errContains: "dependencies type mismatch",
		},
		{
			name:        "decoded map is not the typed input",
			deps:        OpDeps{},
			input:       map[string]any{"A": 5, "B": 3},
			errContains: "input type mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := untypedOp.handler(bundle, tt.deps, tt.input)
			if tt.errContains != "" {
				require.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
		})
	}
}

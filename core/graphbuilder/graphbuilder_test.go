package graphbuilder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/graphbuilder"
	"github.com/xunhq/xun/xun"
)

// fibonacciNumber mirrors the fixture in core/procparser's tests: two
// independent calls to itself, written in the order Go can execute
// directly (no Const statement here depends on another's result).
func fibonacciNumber(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	if n < 2 {
		return n, nil
	}
	var a, b int64
	Const: {
		a = xun.Call[int64](ctx, "graphbuilder_fibonacci_number", n-1)
		b = xun.Call[int64](ctx, "graphbuilder_fibonacci_number", n-2)
	}
	return a + b, nil
}

func TestBuildRecordsDirectDependencies(t *testing.T) {
	xun.Register("graphbuilder_fibonacci_number", fibonacciNumber)

	hashes := map[string]string{"graphbuilder_fibonacci_number": "fixedhash"}
	b := graphbuilder.New(func(name string) (string, error) { return hashes[name], nil })

	root := callnode.New("graphbuilder_fibonacci_number", "fixedhash", []any{int64(5)}, nil)
	g, err := b.Build(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, g.Children, 2)
	assert.Equal(t, "graphbuilder_fibonacci_number", g.Children[0].FunctionName())
	assert.Equal(t, callnode.Tuple{int64(4)}, g.Children[0].Args())
	assert.Equal(t, callnode.Tuple{int64(3)}, g.Children[1].Args())
}

// TestBuildBaseCaseShortCircuitBeforeConstBlockHasNoChildren covers a
// recursive function whose early-return base case never reaches its Const
// block: the block's statements are still recorded at parse time, but zero
// calls are traced at runtime, and that must be treated as "no children"
// rather than a parse-time/runtime count mismatch.
func TestBuildBaseCaseShortCircuitBeforeConstBlockHasNoChildren(t *testing.T) {
	b := graphbuilder.New(func(name string) (string, error) { return "fixedhash", nil })

	for _, n := range []int64{0, 1} {
		root := callnode.New("graphbuilder_fibonacci_number", "fixedhash", []any{n}, nil)
		g, err := b.Build(context.Background(), root)
		require.NoError(t, err)
		assert.Empty(t, g.Children)
	}
}

func noDependencies(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	return n * 2, nil
}

func TestBuildLeafFunctionHasNoChildren(t *testing.T) {
	xun.Register("graphbuilder_leaf", noDependencies)

	b := graphbuilder.New(func(name string) (string, error) { return "h", nil })
	root := callnode.New("graphbuilder_leaf", "h", []any{int64(3)}, nil)

	g, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, g.Children)
}

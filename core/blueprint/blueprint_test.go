package blueprint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/graphbuilder"
	"github.com/xunhq/xun/xun"
)

func blueprintFibonacciNumber(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	if n < 2 {
		return n, nil
	}
	var a, b int64
	Const: {
		a = xun.Call[int64](ctx, "blueprint_fibonacci_number", n-1)
		b = xun.Call[int64](ctx, "blueprint_fibonacci_number", n-2)
	}
	return a + b, nil
}

func TestPlanFibonacciComposesExpectedNodeCount(t *testing.T) {
	xun.Register("blueprint_fibonacci_number", blueprintFibonacciNumber)

	p := blueprint.New()
	bp, err := p.Plan(context.Background(), "blueprint_fibonacci_number", []any{int64(3)}, nil)
	require.NoError(t, err)

	// fib(3) -> fib(2), fib(1); fib(2) -> fib(1), fib(0). Distinct call
	// nodes by (function, args): fib(3), fib(2), fib(1), fib(0).
	assert.Len(t, bp.Nodes, 4)
	assert.Equal(t, "blueprint_fibonacci_number", bp.Root.FunctionName())

	fi, ok := bp.Functions["blueprint_fibonacci_number"]
	require.True(t, ok)
	assert.True(t, fi.SelfRecursive)
	assert.NotEmpty(t, fi.FunctionHash)
}

func blueprintLeaf(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	return n * 2, nil
}

func TestPlanLeafFunctionHasSingleNode(t *testing.T) {
	xun.Register("blueprint_leaf", blueprintLeaf)

	p := blueprint.New()
	bp, err := p.Plan(context.Background(), "blueprint_leaf", []any{int64(7)}, nil)
	require.NoError(t, err)

	assert.Len(t, bp.Nodes, 1)
	assert.Empty(t, bp.Edges[bp.Root.Hash()])
}

func blueprintMutualA(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	if n <= 0 {
		return int64(0), nil
	}
	var v int64
	Const: {
		v = xun.Call[int64](ctx, "blueprint_mutual_b", n-1)
	}
	return v, nil
}

func blueprintMutualB(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	if n <= 0 {
		return int64(0), nil
	}
	var v int64
	Const: {
		v = xun.Call[int64](ctx, "blueprint_mutual_a", n-1)
	}
	return v, nil
}

func TestPlanMutualRecursionGetsSourceOnlyHash(t *testing.T) {
	xun.Register("blueprint_mutual_a", blueprintMutualA)
	xun.Register("blueprint_mutual_b", blueprintMutualB)

	p := blueprint.New()
	bp, err := p.Plan(context.Background(), "blueprint_mutual_a", []any{int64(2)}, nil)
	require.NoError(t, err)

	assert.True(t, bp.Functions["blueprint_mutual_a"].InCycle)
	assert.True(t, bp.Functions["blueprint_mutual_b"].InCycle)

	for _, name := range []string{"blueprint_mutual_a", "blueprint_mutual_b"} {
		entry, ok := xun.Lookup(name)
		require.True(t, ok)
		parsed, err := graphbuilder.ParseEntry(entry)
		require.NoError(t, err)
		assert.Equal(t, fingerprint.Source(parsed.FullSource, nil).String(), bp.Functions[name].FunctionHash,
			"a cycle member's function_hash covers its own source only")
	}
}

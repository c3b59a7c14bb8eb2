package procparser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xunhq/xun/core/procparser"
	"github.com/xunhq/xun/core/xerrors"
)

type setRegistry map[string]bool

func (s setRegistry) Has(name string) bool { return s[name] }

const fibSource = `
package examples

func fibonacciNumber(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	var a, b int64
	Const: {
		a = xun.Call[int64](ctx, "fibonacci_number", n-1)
		b = xun.Call[int64](ctx, "fibonacci_number", n-2)
	}
	return a + b, nil
}
`

func TestParseFibonacciDependencyOrderAndSelfRecursion(t *testing.T) {
	reg := setRegistry{"fibonacci_number": true}
	p, err := procparser.ParseSource(fibSource, "fibonacci_number", "fibonacciNumber", "example.com/fib", reg)
	assert.NoError(t, err)
	assert.True(t, p.SelfRecursive)
	assert.Empty(t, p.Dependencies, "self-calls are excluded from Dependencies")
	assert.Len(t, p.Constants, 2)
	for _, c := range p.Constants {
		assert.True(t, c.IsXunCall)
		assert.Equal(t, "fibonacci_number", c.Callee)
	}
}

const dependentOrderSource = `
package examples

func compose(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	var a, b int64
	Const: {
		b = xun.Call[int64](ctx, "double", a)
		a = xun.Call[int64](ctx, "single", n)
	}
	return b, nil
}
`

func TestParseTopologicalOrderIsDependencyRespecting(t *testing.T) {
	reg := setRegistry{"single": true, "double": true}
	p, err := procparser.ParseSource(dependentOrderSource, "compose", "compose", "example.com/x", reg)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.Constants[0].Targets)
	assert.Equal(t, []string{"b"}, p.Constants[1].Targets)
	assert.ElementsMatch(t, []string{"double", "single"}, p.Dependencies)
}

const cyclicSource = `
package examples

func broken(ctx *xun.Context, args ...any) (any, error) {
	var a, b int
	Const: {
		a = b
		b = a
	}
	return a + b, nil
}
`

func TestParseCyclicConstBlockFailsNotDAG(t *testing.T) {
	_, err := procparser.ParseSource(cyclicSource, "broken", "broken", "example.com/x", setRegistry{})
	assert.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.NotDAG))
}

const doubleBlockSource = `
package examples

func bad(ctx *xun.Context, args ...any) (any, error) {
	Const: {
		a := 1
		_ = a
	}
	Const: {
		b := 2
		_ = b
	}
	return 0, nil
}
`

func TestParseMultipleConstBlocksFails(t *testing.T) {
	_, err := procparser.ParseSource(doubleBlockSource, "bad", "bad", "example.com/x", setRegistry{})
	assert.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidProcedure))
}

const doubleAssignSource = `
package examples

func bad2(ctx *xun.Context, args ...any) (any, error) {
	Const: {
		a := 1
		a := 2
	}
	return 0, nil
}
`

func TestParseDuplicateAssignmentFails(t *testing.T) {
	_, err := procparser.ParseSource(doubleAssignSource, "bad2", "bad2", "example.com/x", setRegistry{})
	assert.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidProcedure))
}

const noBlockSource = `
package examples

func plain(ctx *xun.Context, args ...any) (any, error) {
	n := args[0].(int64)
	return n * 2, nil
}
`

func TestParseNoConstBlockIsValid(t *testing.T) {
	p, err := procparser.ParseSource(noBlockSource, "plain", "plain", "example.com/x", setRegistry{})
	assert.NoError(t, err)
	assert.Empty(t, p.Constants)
	assert.Empty(t, p.Dependencies)
}

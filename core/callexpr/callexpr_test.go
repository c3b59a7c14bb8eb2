package callexpr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/callexpr"
)

func TestParsePositionalArguments(t *testing.T) {
	c, err := callexpr.Parse(`fibonacci_sequence(10)`)
	require.NoError(t, err)
	assert.Equal(t, "fibonacci_sequence", c.Name)
	assert.Equal(t, []any{int64(10)}, c.Args)
	assert.Empty(t, c.Kwargs)
}

func TestParseNoArguments(t *testing.T) {
	c, err := callexpr.Parse(`noop()`)
	require.NoError(t, err)
	assert.Equal(t, "noop", c.Name)
	assert.Empty(t, c.Args)
}

func TestParseMixedLiteralsAndKeywordArguments(t *testing.T) {
	c, err := callexpr.Parse(`render("alice", count=3, active=true, ratio=-1.5)`)
	require.NoError(t, err)
	assert.Equal(t, []any{"alice"}, c.Args)
	assert.Equal(t, int64(3), c.Kwargs["count"])
	assert.Equal(t, true, c.Kwargs["active"])
	assert.Equal(t, -1.5, c.Kwargs["ratio"])
}

func TestParseRejectsPositionalAfterKeyword(t *testing.T) {
	_, err := callexpr.Parse(`f(a=1, 2)`)
	assert.Error(t, err)
}

func TestParseRejectsNonLiteralArgument(t *testing.T) {
	_, err := callexpr.Parse(`f(someVariable)`)
	assert.Error(t, err)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := callexpr.Parse(`f(1) garbage`)
	assert.Error(t, err)
}

func TestParseRejectsMissingParens(t *testing.T) {
	_, err := callexpr.Parse(`f`)
	assert.Error(t, err)
}

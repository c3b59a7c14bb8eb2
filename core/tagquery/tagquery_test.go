package tagquery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/tagquery"
)

func TestParseSimpleLeafQuery(t *testing.T) {
	q, err := tagquery.Parse(`(env="prod") => ...`)
	require.NoError(t, err)
	require.Len(t, q.Tags, 1)
	assert.Equal(t, "env", q.Tags[0].Name)
	assert.Equal(t, tagquery.OpEq, q.Tags[0].Op)
	assert.Equal(t, "prod", q.Tags[0].Value)
	assert.True(t, q.Hierarchy.Leaf)
}

func TestParseNestedHierarchyWithOperators(t *testing.T) {
	q, err := tagquery.Parse(`(cost>"5" region) => env{cost{...}}`)
	require.NoError(t, err)
	require.Len(t, q.Tags, 2)
	assert.Equal(t, tagquery.OpGt, q.Tags[0].Op)
	assert.Equal(t, tagquery.OpNone, q.Tags[1].Op)

	require.Len(t, q.Hierarchy.Branches, 1)
	assert.Equal(t, "env", q.Hierarchy.Branches[0].Name)
	require.Len(t, q.Hierarchy.Branches[0].Child.Branches, 1)
	assert.Equal(t, "cost", q.Hierarchy.Branches[0].Child.Branches[0].Name)
	assert.True(t, q.Hierarchy.Branches[0].Child.Branches[0].Child.Leaf)
}

func TestParseUnparseRoundTrip(t *testing.T) {
	inputs := []string{
		`() => ...`,
		`(env="prod") => ...`,
		`(env="prod" cost>="5") => region{...}`,
		`(a<"1" b<="2" c=">x") => x{y{...} z{...}}`,
	}
	for _, in := range inputs {
		q, err := tagquery.Parse(in)
		require.NoError(t, err, in)

		out := tagquery.Unparse(q)
		q2, err := tagquery.Parse(out)
		require.NoError(t, err, out)

		assert.Equal(t, q, q2, "parse(unparse(q)) must equal q for %q", in)
	}
}

func TestParseRejectsMalformedQuery(t *testing.T) {
	_, err := tagquery.Parse(`(env=prod) => ...`) // unquoted value
	assert.Error(t, err)

	_, err = tagquery.Parse(`(env="prod")`) // missing arrow+hierarchy
	assert.Error(t, err)

	_, err = tagquery.Parse(`(env="prod") => `) // missing hierarchy body
	assert.Error(t, err)
}

package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/xerrors"
)

func testBackends(t *testing.T) map[string]store.Store {
	disk, err := store.NewDisk(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	lru, err := store.NewLRULayer(8)
	require.NoError(t, err)
	return map[string]store.Store{
		"memory": store.NewMemory(),
		"disk":   disk,
		"lru":    lru,
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := callnode.New("f", "h1", []any{int64(1)}, nil)

			require.NoError(t, s.Store(ctx, key, "hello", nil))

			ok, err := s.Contains(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)

			v, err := s.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "hello", v)
		})
	}
}

func TestStoreRemoveThenAbsent(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := callnode.New("f", "h1", []any{int64(2)}, nil)

			require.NoError(t, s.Store(ctx, key, "v", nil))
			require.NoError(t, s.Remove(ctx, key))

			ok, err := s.Contains(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Load(ctx, key)
			assert.True(t, xerrors.Is(err, xerrors.NotFound))
		})
	}
}

func TestStoreLoadAbsentFailsNotFound(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := callnode.New("f", "h1", []any{int64(99)}, nil)
			_, err := s.Load(context.Background(), key)
			assert.True(t, xerrors.Is(err, xerrors.NotFound))
		})
	}
}

func TestMemoryQueryMatchesTagConditions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	a := callnode.New("f", "h1", []any{int64(1)}, nil)
	b := callnode.New("f", "h1", []any{int64(2)}, nil)
	require.NoError(t, s.Store(ctx, a, 1, map[string]string{"env": "prod", "cost": "5"}))
	require.NoError(t, s.Store(ctx, b, 2, map[string]string{"env": "dev", "cost": "10"}))

	got, err := s.Query(ctx, []store.Condition{{Tag: "env", Op: store.OpEq, Value: "prod"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(a))

	got, err = s.Query(ctx, []store.Condition{{Tag: "cost", Op: store.OpGt, Value: "7"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(b))
}

func TestDiskQueryScansTagRecords(t *testing.T) {
	ctx := context.Background()
	d, err := store.NewDisk(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	a := callnode.New("f", "h1", []any{int64(1)}, nil)
	b := callnode.New("f", "h1", []any{int64(2)}, nil)
	require.NoError(t, d.Store(ctx, a, 1, map[string]string{"env": "prod"}))
	require.NoError(t, d.Store(ctx, b, 2, map[string]string{"env": "dev"}))

	got, err := d.Query(ctx, []store.Condition{{Tag: "env", Op: store.OpEq, Value: "prod"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(a))
}

func TestDiskQueryPreservesSubscriptOnIndexedKeys(t *testing.T) {
	ctx := context.Background()
	d, err := store.NewDisk(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	base := callnode.New("pair", "h1", []any{int64(1)}, nil)
	indexed := base.Index(1)
	require.NoError(t, d.Store(ctx, indexed, 2, map[string]string{"env": "prod"}))

	got, err := d.Query(ctx, []store.Condition{{Tag: "env", Op: store.OpEq, Value: "prod"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(indexed))
	assert.Equal(t, callnode.Tuple{1}, got[0].Subscript())
}

func TestLayeredWritesHitTopReadsFallThrough(t *testing.T) {
	ctx := context.Background()
	top := store.NewMemory()
	bottom := store.NewMemory()
	layered := store.NewLayered(top, bottom)

	inBottom := callnode.New("f", "h1", []any{int64(1)}, nil)
	require.NoError(t, bottom.Store(ctx, inBottom, "from-bottom", nil))

	v, err := layered.Load(ctx, inBottom)
	require.NoError(t, err)
	assert.Equal(t, "from-bottom", v)

	written := callnode.New("f", "h1", []any{int64(2)}, nil)
	require.NoError(t, layered.Store(ctx, written, "from-top", nil))

	topOk, _ := top.Contains(ctx, written)
	bottomOk, _ := bottom.Contains(ctx, written)
	assert.True(t, topOk)
	assert.False(t, bottomOk)
}

func TestCopyMigratesSelectedKeys(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	dst := store.NewMemory()

	k1 := callnode.New("f", "h1", []any{int64(1)}, nil)
	k2 := callnode.New("f", "h1", []any{int64(2)}, nil)
	require.NoError(t, src.Store(ctx, k1, "a", map[string]string{"x": "1"}))
	require.NoError(t, src.Store(ctx, k2, "b", nil))

	require.NoError(t, store.Copy(ctx, dst, src, []callnode.CallNode{k1}))

	v, err := dst.Load(ctx, k1)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	tags, err := dst.Tags(ctx, k1)
	require.NoError(t, err)
	assert.Equal(t, "1", tags["x"])

	ok, _ := dst.Contains(ctx, k2)
	assert.False(t, ok)
}

func TestCallRuntimeAdapterTranslatesNotFoundToFalse(t *testing.T) {
	adapter := store.CallRuntimeAdapter{Store: store.NewMemory()}
	key := callnode.New("f", "h1", nil, nil)

	_, ok, err := adapter.Load(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

package mount_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/mount"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/tagquery"
)

func seedStore(t *testing.T, st store.Store) (prod, dev callnode.CallNode) {
	t.Helper()
	ctx := context.Background()
	prod = callnode.New("f", "h1", []any{int64(1)}, nil)
	dev = callnode.New("f", "h1", []any{int64(2)}, nil)
	require.NoError(t, st.Store(ctx, prod, "prod-value", map[string]string{"env": "prod", "cost": "5"}))
	require.NoError(t, st.Store(ctx, dev, "dev-value", map[string]string{"env": "dev", "cost": "10"}))
	return prod, dev
}

func TestMaterializeLeafQueryReturnsAllMatchingKeys(t *testing.T) {
	st := store.NewMemory()
	prod, _ := seedStore(t, st)

	q, err := tagquery.Parse(`(env="prod") => ...`)
	require.NoError(t, err)

	tree, err := mount.Materialize(context.Background(), st, q)
	require.NoError(t, err)
	require.Len(t, tree.Keys, 1)
	assert.True(t, tree.Keys[0].Equal(prod))
}

func TestMaterializeHierarchyGroupsByDistinctTagValue(t *testing.T) {
	st := store.NewMemory()
	seedStore(t, st)

	q, err := tagquery.Parse(`() => env{...}`)
	require.NoError(t, err)

	tree, err := mount.Materialize(context.Background(), st, q)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)

	envBranch := tree.Children[0]
	assert.Equal(t, "env", envBranch.Name)
	require.Len(t, envBranch.Children, 2) // "dev" and "prod", sorted

	assert.Equal(t, "dev", envBranch.Children[0].Name)
	assert.Len(t, envBranch.Children[0].Keys, 1)
	assert.Equal(t, "prod", envBranch.Children[1].Name)
	assert.Len(t, envBranch.Children[1].Keys, 1)
}

func TestRenderWritesDirectoryTreeMatchingHierarchy(t *testing.T) {
	st := store.NewMemory()
	prod, _ := seedStore(t, st)

	q, err := tagquery.Parse(`() => env{...}`)
	require.NoError(t, err)
	tree, err := mount.Materialize(context.Background(), st, q)
	require.NoError(t, err)

	root := filepath.Join(t.TempDir(), "mnt")
	require.NoError(t, mount.Render(root, tree))

	entries, err := os.ReadDir(filepath.Join(root, "env"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dev", entries[0].Name())
	assert.Equal(t, "prod", entries[1].Name())

	h := prod.Hash()
	want := hex.EncodeToString(h[:])
	files, err := os.ReadDir(filepath.Join(root, "env", "prod"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, want, files[0].Name())
}

func TestMounterWatchRerendersOnDiskStoreChange(t *testing.T) {
	storeRoot := filepath.Join(t.TempDir(), "store")
	disk, err := store.NewDisk(storeRoot)
	require.NoError(t, err)

	q, err := tagquery.Parse(`() => env{...}`)
	require.NoError(t, err)
	mountpoint := filepath.Join(t.TempDir(), "mnt")
	m := mount.NewMounter(disk, q, mountpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Watch(ctx, filepath.Join(storeRoot, "tags"), filepath.Join(storeRoot, "values"))
	}()

	// give Watch time to perform its initial render before the store changes
	require.Eventually(t, func() bool {
		_, err := os.Stat(mountpoint)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, disk.Store(context.Background(),
		callnode.New("f", "h1", []any{int64(3)}, nil), "new-value", map[string]string{"env": "staging"}))

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(filepath.Join(mountpoint, "env"))
		if err != nil {
			return false
		}
		for _, e := range entries {
			if e.Name() == "staging" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Watch did not exit after cancellation")
	}
}

package mount

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/tagquery"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/core/xlog"
)

// Mounter keeps a filesystem render of a tag-query tree up to date against
// a live store. RenderOnce computes and writes the tree a single time;
// Watch re-renders every time fsnotify reports a change under one of the
// store's backing directories (the `tags/`/`values/` trees of a
// core/store.Disk backend).
type Mounter struct {
	Store      store.Store
	Query      tagquery.Query
	Mountpoint string
}

// NewMounter constructs a Mounter over st, rendering q's tree into
// mountpoint.
func NewMounter(st store.Store, q tagquery.Query, mountpoint string) *Mounter {
	return &Mounter{Store: st, Query: q, Mountpoint: mountpoint}
}

// RenderOnce materializes the current tree and writes it to Mountpoint.
func (m *Mounter) RenderOnce(ctx context.Context) error {
	tree, err := Materialize(ctx, m.Store, m.Query)
	if err != nil {
		return err
	}
	return Render(m.Mountpoint, tree)
}

// Watch renders once, then blocks re-rendering on every fsnotify event
// observed under watchDirs until ctx is done or the watcher reports an
// unrecoverable error. watchDirs are typically a core/store.Disk backend's
// root/tags and root/values directories.
func (m *Mounter) Watch(ctx context.Context, watchDirs ...string) error {
	log := xlog.From(ctx).WithComponent("mount")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "starting mount filesystem watcher")
	}
	defer watcher.Close()

	for _, dir := range watchDirs {
		if err := watcher.Add(dir); err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "watching %s", dir)
		}
	}

	if err := m.RenderOnce(ctx); err != nil {
		return err
	}
	log.Info("mount rendered", "mountpoint", m.Mountpoint)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.Debug("store change observed, re-rendering mount", "event", event.String())
			if err := m.RenderOnce(ctx); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return xerrors.Wrap(xerrors.ExecutionError, err, "mount filesystem watcher")
		}
	}
}

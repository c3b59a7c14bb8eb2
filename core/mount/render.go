package mount

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/xunhq/xun/core/xerrors"
)

// Render writes tree out under root as a plain read-only directory
// structure: a branch Node becomes a directory containing one entry per
// child, a leaf Node's Keys become one file per matching CallNode, named
// by its call_hash and containing its string form — "materialize the
// matching set of store keys here" (§6), realized as files a user can
// `cat`/`ls` rather than a real FUSE mount (no FUSE library appears
// anywhere in the retrieved pack).
//
// Render always starts from a clean directory: it removes any prior
// contents of root before writing, since a stale entry from a previous
// render could otherwise look like a still-current match.
func Render(root string, tree *Node) error {
	if err := os.RemoveAll(root); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "clearing mount point %s", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "creating mount point %s", root)
	}
	return renderNode(root, tree)
}

func renderNode(dir string, n *Node) error {
	for _, key := range n.Keys {
		h := key.Hash()
		name := hex.EncodeToString(h[:])
		if err := os.WriteFile(filepath.Join(dir, name), []byte(key.String()), 0o444); err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "writing mount entry %s", name)
		}
	}
	for _, child := range n.Children {
		childDir := filepath.Join(dir, child.Name)
		if err := os.MkdirAll(childDir, 0o755); err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "creating mount directory %s", childDir)
		}
		if err := renderNode(childDir, child); err != nil {
			return err
		}
	}
	return nil
}

package store

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/serialization"
	"github.com/xunhq/xun/core/xerrors"
)

// keyRecord is what actually lives under keys/<hex>: CallNode's own
// MarshalCBOR deliberately always fails (it is not a transportable type,
// per the CopyError invariant), so the disk backend persists the fields
// needed to reconstruct an equivalent CallNode instead of the CallNode
// itself.
type keyRecord struct {
	FunctionName string
	FunctionHash string
	Args         []any
	Kwargs       map[string]any
	Subscript    []any
}

func toKeyRecord(key callnode.CallNode) keyRecord {
	kwargs := make(map[string]any, key.Kwargs().Len())
	for _, k := range key.Kwargs().Keys() {
		v, _ := key.Kwargs().Get(k)
		kwargs[k] = v
	}
	return keyRecord{
		FunctionName: key.FunctionName(),
		FunctionHash: key.FunctionHash(),
		Args:         []any(key.Args()),
		Kwargs:       kwargs,
		Subscript:    []any(key.Subscript()),
	}
}

// fromKeyRecord reverses toKeyRecord, re-extending the reconstructed root
// CallNode's subscript one index at a time through Index so an indexed
// node persisted to disk comes back indexed the same way. The canonical
// codec decodes every CBOR integer as int64 (core/serialization's
// decMode), so an int subscript element needs narrowing back before
// Index will accept it.
func fromKeyRecord(rec keyRecord) callnode.CallNode {
	n := callnode.New(rec.FunctionName, rec.FunctionHash, rec.Args, rec.Kwargs)
	for _, idx := range rec.Subscript {
		if i64, ok := idx.(int64); ok {
			idx = int(i64)
		}
		n = n.Index(idx)
	}
	return n
}

// Disk is the on-disk directory Store backend (§6): entries live as three
// parallel files per key under root — keys/<hex>, values/<hex>,
// tags/<hex> — named by the key's call_hash in hex (its 12-byte truncated
// SHA-256, so 24 hex digits) rather than by re-hashing a serialized key,
// since call_hash is already the content hash a stored key needs.
type Disk struct {
	root string
	mu   sync.Mutex // serializes every write on this Disk, so writes to one key are linearized (I3); writes to distinct keys are serialized too
}

// NewDisk creates (if absent) root/{keys,values,tags} with mode 0o700 and
// returns a Disk store rooted there.
func NewDisk(root string) (*Disk, error) {
	for _, sub := range []string{"keys", "values", "tags"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o700); err != nil {
			return nil, xerrors.Wrap(xerrors.ExecutionError, err, "creating store directory %s", sub)
		}
	}
	return &Disk{root: root}, nil
}

func (d *Disk) path(sub string, h [12]byte) string {
	return filepath.Join(d.root, sub, hex.EncodeToString(h[:]))
}

func (d *Disk) Contains(ctx context.Context, key callnode.CallNode) (bool, error) {
	var found bool
	err := withRetry(ctx, func() error {
		_, err := os.Stat(d.path("values", key.Hash()))
		if errors.Is(err, os.ErrNotExist) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (d *Disk) Store(ctx context.Context, key callnode.CallNode, value any, tags map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	keyBytes, err := serialization.CanonicalEncode(toKeyRecord(key))
	if err != nil {
		return xerrors.Wrap(xerrors.CopyError, err, "encoding key for %s", key)
	}
	valueBytes, err := serialization.CanonicalEncode(callnode.Normalize(value))
	if err != nil {
		return xerrors.Wrap(xerrors.CopyError, err, "encoding value for %s", key)
	}
	tagBytes, err := serialization.CanonicalEncode(tags)
	if err != nil {
		return xerrors.Wrap(xerrors.CopyError, err, "encoding tags for %s", key)
	}

	h := key.Hash()
	// Tags are written before the value, value before the key index, so a
	// reader that observes the value file also observes up-to-date tags
	// (I1): a concurrent reader can never see a value with a missing tag
	// record, only (harmlessly) a tag record for a not-yet-visible value.
	if err := withRetry(ctx, func() error { return os.WriteFile(d.path("tags", h), tagBytes, 0o600) }); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "writing tags for %s", key)
	}
	if err := withRetry(ctx, func() error { return os.WriteFile(d.path("values", h), valueBytes, 0o600) }); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "writing value for %s", key)
	}
	if err := withRetry(ctx, func() error { return os.WriteFile(d.path("keys", h), keyBytes, 0o600) }); err != nil {
		return xerrors.Wrap(xerrors.ExecutionError, err, "writing key record for %s", key)
	}
	return nil
}

func (d *Disk) Load(ctx context.Context, key callnode.CallNode) (any, error) {
	var data []byte
	err := withRetry(ctx, func() error {
		b, err := os.ReadFile(d.path("values", key.Hash()))
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "reading value for %s", key)
	}
	var v any
	if err := serialization.Decode(data, &v); err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "decoding value for %s", key)
	}
	return callnode.Normalize(v), nil
}

func (d *Disk) Remove(ctx context.Context, key callnode.CallNode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := key.Hash()
	if _, err := os.Stat(d.path("values", h)); errors.Is(err, os.ErrNotExist) {
		return xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	for _, sub := range []string{"keys", "values", "tags"} {
		if err := withRetry(ctx, func() error {
			err := os.Remove(d.path(sub, h))
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}); err != nil {
			return xerrors.Wrap(xerrors.ExecutionError, err, "removing %s record for %s", sub, key)
		}
	}
	return nil
}

func (d *Disk) Tags(ctx context.Context, key callnode.CallNode) (map[string]string, error) {
	var data []byte
	err := withRetry(ctx, func() error {
		b, err := os.ReadFile(d.path("tags", key.Hash()))
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "reading tags for %s", key)
	}
	var tags map[string]string
	if err := serialization.Decode(data, &tags); err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "decoding tags for %s", key)
	}
	return tags, nil
}

// Query answers a tag predicate with a full scan of tags/, the reference
// backend's "semantics only" implementation (§6): there is no secondary
// index, so every entry's tag record is read and matched in turn. Good
// enough for the mount command's materialization (§12), not meant for a
// hot path the way Memory's in-process map lookup is.
func (d *Disk) Query(ctx context.Context, conditions []Condition) ([]callnode.CallNode, error) {
	tagsDir := filepath.Join(d.root, "tags")
	names, err := os.ReadDir(tagsDir)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "listing tag records")
	}

	var matched []callnode.CallNode
	for _, de := range names {
		if de.IsDir() {
			continue
		}
		h, err := hex.DecodeString(de.Name())
		if err != nil || len(h) != 12 {
			continue
		}
		var hash [12]byte
		copy(hash[:], h)

		tagBytes, err := os.ReadFile(filepath.Join(tagsDir, de.Name()))
		if err != nil {
			continue // record removed concurrently with this scan
		}
		var tags map[string]string
		if err := serialization.Decode(tagBytes, &tags); err != nil {
			return nil, xerrors.Wrap(xerrors.ExecutionError, err, "decoding tags for %x", hash)
		}
		if !matchesAll(tags, conditions) {
			continue
		}

		keyBytes, err := os.ReadFile(d.path("keys", hash))
		if err != nil {
			continue
		}
		var rec keyRecord
		if err := serialization.Decode(keyBytes, &rec); err != nil {
			return nil, xerrors.Wrap(xerrors.ExecutionError, err, "decoding key record for %x", hash)
		}
		matched = append(matched, fromKeyRecord(rec))
	}
	return matched, nil
}

// withRetry retries a transient I/O operation with exponential backoff —
// 125ms doubling, 7 attempts — per spec §7. os.ErrNotExist is never
// retried: it is a definite answer, not a transient failure.
func withRetry(ctx context.Context, op func() error) error {
	delay := 125 * time.Millisecond
	var err error
	for attempt := 0; attempt < 7; attempt++ {
		err = op()
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

package store

import (
	"context"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/xerrors"
)

// Layered composes an ordered list of Store layers (§4.6): reads hit the
// first layer that contains the key, writes always go to the top layer
// (layers[0]). NewLayered(T, B) reads as composing a top layer T over a
// bottom layer B.
type Layered struct {
	layers []Store
}

// NewLayered builds a Layered store; layers[0] is the top layer.
func NewLayered(layers ...Store) *Layered {
	return &Layered{layers: layers}
}

func (l *Layered) Contains(ctx context.Context, key callnode.CallNode) (bool, error) {
	for _, layer := range l.layers {
		ok, err := layer.Contains(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (l *Layered) Store(ctx context.Context, key callnode.CallNode, value any, tags map[string]string) error {
	if len(l.layers) == 0 {
		return xerrors.New(xerrors.ExecutionError, "layered store has no layers")
	}
	return l.layers[0].Store(ctx, key, value, tags)
}

func (l *Layered) Load(ctx context.Context, key callnode.CallNode) (any, error) {
	for _, layer := range l.layers {
		ok, err := layer.Contains(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return layer.Load(ctx, key)
		}
	}
	return nil, xerrors.New(xerrors.NotFound, "no value stored for %s in any layer", key)
}

// Remove deletes the key from the top layer only: a lower layer is treated
// as read-through source material, not owned storage this layer should
// mutate.
func (l *Layered) Remove(ctx context.Context, key callnode.CallNode) error {
	if len(l.layers) == 0 {
		return xerrors.New(xerrors.NotFound, "layered store has no layers")
	}
	return l.layers[0].Remove(ctx, key)
}

func (l *Layered) Tags(ctx context.Context, key callnode.CallNode) (map[string]string, error) {
	for _, layer := range l.layers {
		ok, err := layer.Contains(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return layer.Tags(ctx, key)
		}
	}
	return nil, xerrors.New(xerrors.NotFound, "no value stored for %s in any layer", key)
}

// Query unions matches across every layer that supports queries,
// deduplicating by call_hash; a layer reporting ExecutionError for an
// unsupported capability is skipped rather than failing the whole query.
func (l *Layered) Query(ctx context.Context, conditions []Condition) ([]callnode.CallNode, error) {
	seen := map[string]bool{}
	var out []callnode.CallNode
	for _, layer := range l.layers {
		nodes, err := layer.Query(ctx, conditions)
		if err != nil {
			if xerrors.Is(err, xerrors.ExecutionError) {
				continue
			}
			return nil, err
		}
		for _, n := range nodes {
			h := n.Hash().String()
			if !seen[h] {
				seen[h] = true
				out = append(out, n)
			}
		}
	}
	return out, nil
}

package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/xerrors"
)

// LRULayer is a bounded in-process cache Store, meant to sit as the top
// layer of a Layered store in front of a slower disk/network layer (§4.6,
// §11 domain-stack wiring): a hit avoids the slow layer entirely, an
// eviction just means the next read falls through to it.
type LRULayer struct {
	cache *lru.Cache[fingerprint.Hash, entry]
}

// NewLRULayer builds a cache layer holding up to size entries.
func NewLRULayer(size int) (*LRULayer, error) {
	c, err := lru.New[fingerprint.Hash, entry](size)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "constructing LRU store layer")
	}
	return &LRULayer{cache: c}, nil
}

func (l *LRULayer) Contains(ctx context.Context, key callnode.CallNode) (bool, error) {
	_, ok := l.cache.Get(key.Hash())
	return ok, nil
}

func (l *LRULayer) Store(ctx context.Context, key callnode.CallNode, value any, tags map[string]string) error {
	l.cache.Add(key.Hash(), entry{node: key, value: value, tags: cloneTags(tags)})
	return nil
}

func (l *LRULayer) Load(ctx context.Context, key callnode.CallNode) (any, error) {
	e, ok := l.cache.Get(key.Hash())
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no value cached for %s", key)
	}
	return e.value, nil
}

func (l *LRULayer) Remove(ctx context.Context, key callnode.CallNode) error {
	if !l.cache.Remove(key.Hash()) {
		return xerrors.New(xerrors.NotFound, "no value cached for %s", key)
	}
	return nil
}

func (l *LRULayer) Tags(ctx context.Context, key callnode.CallNode) (map[string]string, error) {
	e, ok := l.cache.Get(key.Hash())
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no value cached for %s", key)
	}
	return cloneTags(e.tags), nil
}

// Query is unsupported: an LRU cache deliberately keeps no durable index
// of its contents beyond recency, so it cannot answer a tag predicate
// without degrading to a full scan that defeats its purpose as a fast
// top layer.
func (l *LRULayer) Query(ctx context.Context, conditions []Condition) ([]callnode.CallNode, error) {
	return nil, xerrors.New(xerrors.ExecutionError, "LRU store layer does not implement tag queries (capability not supported by this backend)")
}

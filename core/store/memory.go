package store

import (
	"context"
	"sync"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/fingerprint"
	"github.com/xunhq/xun/core/xerrors"
)

// Memory is the in-memory reference Store backend (§4.6): not
// serializable, cannot cross a driver boundary, but linearizes concurrent
// writes to the same key under a single mutex (I3).
type Memory struct {
	mu      sync.RWMutex
	entries map[fingerprint.Hash]entry
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[fingerprint.Hash]entry{}}
}

func (m *Memory) Contains(ctx context.Context, key callnode.CallNode) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key.Hash()]
	return ok, nil
}

func (m *Memory) Store(ctx context.Context, key callnode.CallNode, value any, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.Hash()] = entry{node: key, value: value, tags: cloneTags(tags)}
	return nil
}

func (m *Memory) Load(ctx context.Context, key callnode.CallNode) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.Hash()]
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	return e.value, nil
}

func (m *Memory) Remove(ctx context.Context, key callnode.CallNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := key.Hash()
	if _, ok := m.entries[h]; !ok {
		return xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	delete(m.entries, h)
	return nil
}

func (m *Memory) Tags(ctx context.Context, key callnode.CallNode) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.Hash()]
	if !ok {
		return nil, xerrors.New(xerrors.NotFound, "no value stored for %s", key)
	}
	return cloneTags(e.tags), nil
}

func (m *Memory) Query(ctx context.Context, conditions []Condition) ([]callnode.CallNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []callnode.CallNode
	for _, h := range sortedKeys(m.entries) {
		e := m.entries[h]
		if matchesAll(e.tags, conditions) {
			out = append(out, e.node)
		}
	}
	return out, nil
}

func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func matchesAll(tags map[string]string, conditions []Condition) bool {
	for _, c := range conditions {
		v, present := tags[c.Tag]
		if !c.matches(v, present) {
			return false
		}
	}
	return true
}

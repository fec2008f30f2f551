package analysis

import (
	"sync"

	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

// table is a node-keyed cache stamped with a snapshot version. A write for
// a newer version drops every entry; a write for an older one is ignored.
// Concurrent writers of the same entry store equal values, so the last
// write winning is harmless.
type table[V any] struct {
	mu      sync.RWMutex
	version uint64
	entries map[*syntax.Node]V
}

func (m *table[V]) get(version uint64, n *syntax.Node) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var zero V
	if m.version != version || m.entries == nil {
		return zero, false
	}
	v, ok := m.entries[n]
	return v, ok
}

func (m *table[V]) put(version uint64, n *syntax.Node, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version < m.version {
		return
	}
	if version > m.version || m.entries == nil {
		m.version = version
		m.entries = make(map[*syntax.Node]V)
	}
	m.entries[n] = v
}

func (m *table[V]) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Memo holds the per-snapshot caches of inferred types, resolutions,
// normalised type nodes and expected types. One Memo can outlive many
// snapshots; it is invalidated wholesale as soon as a newer version is
// written.
type Memo struct {
	types    table[*types.Type]
	semantic table[*types.Type]
	expected table[*types.Type]
	resolved table[[]*symbols.Declaration]
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	return &Memo{}
}

// Size reports the number of cached entries, for tests and stats.
func (m *Memo) Size() int {
	return m.types.len() + m.semantic.len() + m.expected.len() + m.resolved.len()
}

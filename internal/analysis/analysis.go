// Package analysis answers semantic questions about one snapshot: what an
// identifier refers to, what type an expression has, and what type the
// surrounding context expects at a position.
package analysis

import (
	"sync"

	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

// Analyzer evaluates queries against a snapshot and its symbol table.
// It is safe for concurrent use; results are memoised per node.
type Analyzer struct {
	snap  *symbols.Snapshot
	table *symbols.Table
	memo  *Memo

	refsOnce sync.Once
	refs     map[*symbols.Declaration][]*syntax.Node
}

// New returns an analyzer for snap. A nil memo gets a private one; passing
// a long-lived memo lets caches survive until the version moves.
func New(snap *symbols.Snapshot, table *symbols.Table, memo *Memo) *Analyzer {
	if memo == nil {
		memo = NewMemo()
	}
	return &Analyzer{snap: snap, table: table, memo: memo}
}

// Snapshot returns the snapshot being analysed.
func (a *Analyzer) Snapshot() *symbols.Snapshot { return a.snap }

// Table returns the symbol table of the snapshot.
func (a *Analyzer) Table() *symbols.Table { return a.table }

func (a *Analyzer) version() uint64 { return a.snap.Version }

// Resolve returns the declarations a reference node denotes, most
// specific first. The result is empty when nothing matches.
func (a *Analyzer) Resolve(ref *syntax.Node) []*symbols.Declaration {
	return a.pass().resolve(ref)
}

// TypeOf infers the type of an expression, or nil.
func (a *Analyzer) TypeOf(expr *syntax.Node) *types.Type {
	return a.pass().typeOf(expr)
}

// ExpectedType returns the type the parent context of expr expects, or nil.
func (a *Analyzer) ExpectedType(expr *syntax.Node) *types.Type {
	return a.pass().expected(expr)
}

// ToSemantic converts a syntactic type node into a semantic type.
func (a *Analyzer) ToSemantic(typ *syntax.Node) *types.Type {
	return a.pass().semantic(typ)
}

// DeclType returns the type a declaration introduces: the signature of a
// function, the declared type of a field or variable, the type itself for
// a type declaration.
func (a *Analyzer) DeclType(d *symbols.Declaration) *types.Type {
	return a.pass().declType(d)
}

// Assignable reports whether from may be used where to is expected,
// checking interfaces structurally against the snapshot's methods.
func (a *Analyzer) Assignable(from, to *types.Type) bool {
	return types.Assignable(from, to, methodSet{a.pass()})
}

// DeclarationsInModule lists a module's top-level declarations.
func (a *Analyzer) DeclarationsInModule(module string) []*symbols.Declaration {
	return a.table.DeclarationsInModule(module)
}

type passKey struct {
	what byte
	node *syntax.Node
}

const (
	keyType byte = iota
	keySemantic
	keyExpected
	keyResolve
)

// pass carries the recursion guard of one top-level query. Results that
// depended on a guarded cycle are not memoised.
type pass struct {
	a        *Analyzer
	visiting map[passKey]bool
	cycles   int
}

func (a *Analyzer) pass() *pass {
	return &pass{a: a, visiting: make(map[passKey]bool)}
}

// guard runs compute for (what, n) unless that pair is already being
// computed further up the stack, in which case it returns the zero value.
func guard[V any](p *pass, what byte, n *syntax.Node, cache *table[V], compute func() V) V {
	var zero V
	if n == nil {
		return zero
	}
	version := p.a.version()
	if v, ok := cache.get(version, n); ok {
		return v
	}
	k := passKey{what, n}
	if p.visiting[k] {
		p.cycles++
		return zero
	}
	p.visiting[k] = true
	before := p.cycles
	v := compute()
	delete(p.visiting, k)
	if p.cycles == before {
		cache.put(version, n, v)
	}
	return v
}

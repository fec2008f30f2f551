package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
)

// ReferencesTo returns every use site of d in the snapshot, in file path
// then source order. The declaring identifier itself is not included.
func (a *Analyzer) ReferencesTo(d *symbols.Declaration) []*syntax.Node {
	a.refsOnce.Do(a.buildRefs)
	return a.refs[d]
}

// References returns the whole reverse index: each resolved declaration
// with its use sites.
func (a *Analyzer) References() map[*symbols.Declaration][]*syntax.Node {
	a.refsOnce.Do(a.buildRefs)
	return a.refs
}

// buildRefs resolves every reference in the snapshot once. Ambiguous
// references are recorded under each candidate.
func (a *Analyzer) buildRefs() {
	refs := make(map[*symbols.Declaration][]*syntax.Node)
	p := a.pass()
	for _, f := range a.snap.Files() {
		f.Root.Walk(func(n *syntax.Node) bool {
			if !p.isReference(n) {
				return true
			}
			for _, d := range p.resolve(n) {
				refs[d] = append(refs[d], n)
			}
			return true
		})
	}
	a.refs = refs
}

// ReferencesIn returns the use sites of f in source order, resolved or not.
func (a *Analyzer) ReferencesIn(f *syntax.File) []*syntax.Node {
	var out []*syntax.Node
	p := a.pass()
	f.Root.Walk(func(n *syntax.Node) bool {
		if p.isReference(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

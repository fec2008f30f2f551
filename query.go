package vsense

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jward/vsense/internal/analysis"
	"github.com/jward/vsense/internal/runtime"
	"github.com/jward/vsense/internal/store"
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

// QueryBuilder answers position queries against one snapshot. Positions
// are 0-based; unknown outcomes are nil or empty, never errors.
type QueryBuilder struct {
	store *store.Store
	an    *analysis.Analyzer
}

var _ runtime.Host = (*QueryBuilder)(nil)

// Location represents a source code position range.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Snapshot returns the snapshot the queries run against.
func (q *QueryBuilder) Snapshot() *Snapshot {
	return q.an.Snapshot()
}

func (q *QueryBuilder) locate(file string, line, col int) (*syntax.File, int) {
	f := q.an.Snapshot().File(strings.TrimPrefix(path.Clean(file), "./"))
	if f == nil {
		return nil, 0
	}
	return f, f.Offset(line, col)
}

// TypeAt returns the type of the name or expression at the position.
func (q *QueryBuilder) TypeAt(file string, line, col int) *Type {
	f, off := q.locate(file, line, col)
	if f == nil {
		return nil
	}
	return q.an.TypeAt(f, off)
}

// ExpectedTypeAt returns the type the context expects at the position.
func (q *QueryBuilder) ExpectedTypeAt(file string, line, col int) *Type {
	f, off := q.locate(file, line, col)
	if f == nil {
		return nil
	}
	return q.an.ExpectedAt(f, off)
}

// DefinitionAt resolves the reference at the position. Ambiguous
// references return every candidate, most specific first.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) []*Declaration {
	f, off := q.locate(file, line, col)
	if f == nil {
		return nil
	}
	return q.an.DefinitionAt(f, off)
}

// ReferencesAt finds every use site of what the position names. The
// position may be a use site or the declaring name itself. Persisted
// declarations are answered from the index; locals from the snapshot.
func (q *QueryBuilder) ReferencesAt(file string, line, col int) ([]Location, error) {
	f, off := q.locate(file, line, col)
	if f == nil {
		return nil, nil
	}
	targets := q.an.DefinitionAt(f, off)
	if len(targets) == 0 {
		if d := q.an.Table().DeclOf(f.Root.NodeAt(off)); d != nil {
			targets = []*symbols.Declaration{d}
		}
	}

	ids := newDeclIDs(q.store)
	paths := make(map[int64]string)
	var locations []Location
	for _, d := range targets {
		id, err := ids.lookup(d)
		if err != nil {
			return nil, fmt.Errorf("references at: %w", err)
		}
		if id == nil {
			for _, n := range q.an.ReferencesTo(d) {
				locations = append(locations, nodeLocation(q.an.Table().FileOf(n), n))
			}
			continue
		}
		refs, err := q.store.ReferencesToDeclaration(*id)
		if err != nil {
			return nil, fmt.Errorf("references at: %w", err)
		}
		for _, ref := range refs {
			p, ok := paths[ref.FileID]
			if !ok {
				row, err := q.store.FileByID(ref.FileID)
				if err != nil {
					return nil, fmt.Errorf("references at: file %d: %w", ref.FileID, err)
				}
				if row != nil {
					p = row.Path
				}
				paths[ref.FileID] = p
			}
			locations = append(locations, Location{
				File:      p,
				StartLine: ref.StartLine,
				StartCol:  ref.StartCol,
				EndLine:   ref.EndLine,
				EndCol:    ref.EndCol,
			})
		}
	}
	sortLocations(locations)
	return locations, nil
}

// DeclarationsInModule lists a module's top-level declarations in file
// then source order.
func (q *QueryBuilder) DeclarationsInModule(module string) []*Declaration {
	return q.an.DeclarationsInModule(module)
}

// Modules returns the module paths of the snapshot's files, sorted.
func (q *QueryBuilder) Modules() []string {
	return q.an.Snapshot().Modules()
}

// DeclType returns the declared type of d.
func (q *QueryBuilder) DeclType(d *Declaration) *Type {
	return q.an.DeclType(d)
}

// Assignable reports whether a value of type from may be used where to
// is expected.
func (q *QueryBuilder) Assignable(from, to *types.Type) bool {
	return q.an.Assignable(from, to)
}

// Files returns the indexed files ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// DeclarationLocation returns where d is declared: its name when it has
// one. Builtin and implicit declarations without a file return nil.
func DeclarationLocation(d *Declaration) *Location {
	if d.File == nil {
		return nil
	}
	n := d.NameNode
	if n == nil {
		n = d.Node
	}
	if n == nil {
		return nil
	}
	loc := nodeLocation(d.File, n)
	return &loc
}

func nodeLocation(f *syntax.File, n *syntax.Node) Location {
	loc := Location{
		StartLine: n.Span.StartPos.Line,
		StartCol:  n.Span.StartPos.Col,
		EndLine:   n.Span.EndPos.Line,
		EndCol:    n.Span.EndPos.Col,
	}
	if f != nil {
		loc.File = f.Path
	}
	return loc
}

func sortLocations(locs []Location) {
	sort.Slice(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartCol < b.StartCol
	})
}

package vsense

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jward/vsense/internal/analysis"
	"github.com/jward/vsense/internal/store"
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
)

// fileDecls returns the declarations introduced by f's top-level nodes:
// every entry of a const or global group, and methods.
func fileDecls(t *symbols.Table, f *syntax.File) []*symbols.Declaration {
	var out []*symbols.Declaration
	for _, n := range f.Root.Children {
		if !n.Kind.IsDecl() {
			continue
		}
		if n.Is(syntax.KindConstDecl, syntax.KindGlobalDecl) {
			for _, spec := range n.ChildrenByField(syntax.FieldSpec) {
				if d := t.DeclOf(spec); d != nil {
					out = append(out, d)
				}
			}
			continue
		}
		if d := t.DeclOf(n); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func visibility(d *symbols.Declaration) string {
	if d.Public {
		return "public"
	}
	return "private"
}

// declarationRow converts d for persistence. Start is the name position,
// end is the end of the declaring node.
func declarationRow(an *analysis.Analyzer, d *symbols.Declaration, fileID int64, parentID *int64) *store.Declaration {
	var members []string
	for _, m := range an.Table().Members(d) {
		members = append(members, m.Kind.String()+" "+m.Name)
	}
	pos := d.Position()
	row := &store.Declaration{
		FileID:        fileID,
		ParentID:      parentID,
		Name:          d.Name,
		Kind:          d.Kind.String(),
		Module:        d.Module,
		QualifiedName: d.QualifiedName(),
		Visibility:    visibility(d),
		Mutable:       d.Mutable,
		StartLine:     pos.Line,
		StartCol:      pos.Col,
	}
	if d.Node != nil {
		row.EndLine = d.Node.Span.EndPos.Line
		row.EndCol = d.Node.Span.EndPos.Col
	}
	row.SignatureHash = store.ComputeSignatureHash(row.Name, row.Kind, row.Visibility, an.DeclType(d).String(), members)
	return row
}

// extractFile writes f's declarations, references and imports to ds.
// Members and generic parameters point at their owner; methods point at
// their receiver type when it is declared in the same file.
func extractFile(an *analysis.Analyzer, f *syntax.File, fileID int64, ds store.DataStore) error {
	t := an.Table()
	ids := make(map[*symbols.Declaration]int64)

	insert := func(d *symbols.Declaration, parent *symbols.Declaration) error {
		var parentID *int64
		if id, ok := ids[parent]; ok && parent != nil {
			parentID = &id
		}
		id, err := ds.InsertDeclaration(declarationRow(an, d, fileID, parentID))
		if err != nil {
			return fmt.Errorf("declaration %s: %w", d.QualifiedName(), err)
		}
		ids[d] = id
		for _, g := range t.Generics(d) {
			if _, err := ds.InsertDeclaration(declarationRow(an, g, fileID, &id)); err != nil {
				return fmt.Errorf("generic %s: %w", g.QualifiedName(), err)
			}
		}
		return nil
	}

	decls := fileDecls(t, f)
	// Types and functions first so methods can find their receiver.
	for _, d := range decls {
		if d.Kind == symbols.KindMethod {
			continue
		}
		if err := insert(d, nil); err != nil {
			return err
		}
		for _, m := range t.Members(d) {
			if m.Kind == symbols.KindMethod {
				continue
			}
			if err := insert(m, d); err != nil {
				return err
			}
		}
	}
	for _, d := range decls {
		if d.Kind != symbols.KindMethod {
			continue
		}
		if err := insert(d, d.Parent); err != nil {
			return err
		}
	}

	for _, imp := range t.Imports(f) {
		var names []string
		for _, s := range imp.Symbols {
			names = append(names, s.Name)
		}
		if _, err := ds.InsertImport(&store.Import{
			FileID:     fileID,
			Source:     imp.Path,
			LocalAlias: imp.Alias,
			Symbols:    names,
		}); err != nil {
			return fmt.Errorf("import %s: %w", imp.Path, err)
		}
	}

	for _, n := range an.ReferencesIn(f) {
		if _, err := ds.InsertReference(referenceRow(n, fileID)); err != nil {
			return fmt.Errorf("reference %s: %w", n.Text, err)
		}
	}
	return nil
}

func referenceRow(n *syntax.Node, fileID int64) *store.Reference {
	ref := &store.Reference{
		FileID:    fileID,
		Name:      n.Text,
		StartLine: n.Span.StartPos.Line,
		StartCol:  n.Span.StartPos.Col,
		EndLine:   n.Span.EndPos.Line,
		EndCol:    n.Span.EndPos.Col,
	}
	if n.Parent != nil {
		ref.Context = n.Parent.Kind.String()
	}
	return ref
}

// declKey locates a persisted declaration within its file.
type declKey struct {
	name      string
	line, col int
}

// declIDs maps analysis declarations to persisted row IDs, loading one
// file's rows at a time.
type declIDs struct {
	store *store.Store

	mu     sync.Mutex
	byPath map[string]map[declKey]int64
}

func newDeclIDs(s *store.Store) *declIDs {
	return &declIDs{store: s, byPath: make(map[string]map[declKey]int64)}
}

// lookup returns the row ID of d, or nil for declarations that are not
// persisted (locals, parameters, builtins).
func (x *declIDs) lookup(d *symbols.Declaration) (*int64, error) {
	if d.File == nil {
		return nil, nil
	}
	switch d.Kind {
	case symbols.KindLocal, symbols.KindParam, symbols.KindReceiver, symbols.KindLabel,
		symbols.KindErr, symbols.KindImport:
		return nil, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	rows, ok := x.byPath[d.File.Path]
	if !ok {
		rows = make(map[declKey]int64)
		f, err := x.store.FileByPath(d.File.Path)
		if err != nil {
			return nil, err
		}
		if f != nil {
			decls, err := x.store.DeclarationsByFile(f.ID)
			if err != nil {
				return nil, err
			}
			for _, row := range decls {
				rows[declKey{row.Name, row.StartLine, row.StartCol}] = row.ID
			}
		}
		x.byPath[d.File.Path] = rows
	}
	pos := d.Position()
	id, ok := rows[declKey{d.Name, pos.Line, pos.Col}]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// resolve re-resolves the references of every file in the blast radius
// and persists the targets. The blast radius is cleared afterwards.
func (e *Engine) resolve(ctx context.Context, an *analysis.Analyzer) error {
	defer func() { e.blastRadius = nil }()
	if len(e.blastRadius) == 0 {
		return nil
	}

	fileIDs := make([]int64, 0, len(e.blastRadius))
	for id := range e.blastRadius {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	if err := e.store.DeleteResolutionDataForFiles(fileIDs); err != nil {
		return fmt.Errorf("vsense: delete resolution data: %w", err)
	}

	ids := newDeclIDs(e.store)
	results := make([][]*store.ResolvedReference, len(fileIDs))
	var (
		mu   sync.Mutex
		errs []error
	)
	e.pool(ctx, len(fileIDs), func(i int) {
		rrs, err := e.resolveFile(an, ids, fileIDs[i])
		if err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("resolve file %d: %w", fileIDs[i], err))
			mu.Unlock()
			return
		}
		results[i] = rrs
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("vsense: resolution had %d error(s): %w", len(errs), errs[0])
	}

	var all []*store.ResolvedReference
	for _, rrs := range results {
		all = append(all, rrs...)
	}
	if err := e.store.InsertResolvedReferences(all); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}
	return nil
}

// resolveFile matches a file's persisted references to the use sites of
// the snapshot by position and resolves each one.
func (e *Engine) resolveFile(an *analysis.Analyzer, ids *declIDs, fileID int64) ([]*store.ResolvedReference, error) {
	row, err := e.store.FileByID(fileID)
	if err != nil || row == nil {
		return nil, err
	}
	f := an.Snapshot().File(row.Path)
	if f == nil {
		return nil, nil
	}
	refs, err := e.store.ReferencesByFile(fileID)
	if err != nil {
		return nil, err
	}
	nodes := make(map[syntax.Point]*syntax.Node)
	for _, n := range an.ReferencesIn(f) {
		nodes[n.Span.StartPos] = n
	}

	var out []*store.ResolvedReference
	for _, ref := range refs {
		n := nodes[syntax.Point{Line: ref.StartLine, Col: ref.StartCol}]
		if n == nil {
			continue
		}
		targets := an.Resolve(n)
		kind := "direct"
		if len(targets) > 1 {
			kind = "ambiguous"
		}
		for _, d := range targets {
			id, err := ids.lookup(d)
			if err != nil {
				return nil, err
			}
			pos := d.Position()
			out = append(out, &store.ResolvedReference{
				ReferenceID:         ref.ID,
				TargetDeclarationID: id,
				TargetName:          d.Name,
				TargetKind:          d.Kind.String(),
				TargetPath:          d.Path(),
				TargetLine:          pos.Line,
				TargetCol:           pos.Col,
				ResolutionKind:      kind,
			})
		}
	}
	return out, nil
}

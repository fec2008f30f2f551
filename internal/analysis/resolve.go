package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

func (p *pass) resolve(ref *syntax.Node) []*symbols.Declaration {
	return guard(p, keyResolve, ref, &p.a.memo.resolved, func() []*symbols.Declaration {
		return p.resolveRef(ref)
	})
}

func one(d *symbols.Declaration) []*symbols.Declaration {
	if d == nil {
		return nil
	}
	return []*symbols.Declaration{d}
}

func (p *pass) resolveRef(n *syntax.Node) []*symbols.Declaration {
	if d := p.declaredBy(n); d != nil {
		return one(d)
	}
	switch n.Kind {
	case syntax.KindSelector:
		return p.resolve(n.ChildByField(syntax.FieldMember))
	case syntax.KindGenericInst, syntax.KindParen:
		return p.resolve(n.ChildByField(syntax.FieldOperand))
	case syntax.KindEnumShorthand, syntax.KindNamedType, syntax.KindImportSymbol:
		return p.resolve(n.ChildByField(syntax.FieldName))
	case syntax.KindLabelRef:
		return one(p.label(n))
	case syntax.KindIdent:
	default:
		return nil
	}

	parent := n.Parent
	switch {
	case parent.Is(syntax.KindSelector) && n.Field == syntax.FieldMember:
		d, _ := p.selectMember(parent)
		return one(d)

	case parent.Is(syntax.KindNamedType):
		if n.Field == syntax.FieldQualifier {
			if imp := p.importNamed(n, n.Text); imp != nil {
				return one(imp.Decl)
			}
			return nil
		}
		if q := parent.ChildByField(syntax.FieldQualifier); q != nil {
			return one(p.qualified(n, q.Text, n.Text))
		}
		return p.lookup(n, n.Text, true)

	case parent.Is(syntax.KindFieldInit) && n.Field == syntax.FieldName:
		d, _ := p.initField(parent)
		return one(d)

	case parent.Is(syntax.KindEnumShorthand):
		return one(p.enumShorthand(parent))

	case parent.Is(syntax.KindImportSymbol):
		return one(p.importedSymbol(parent))

	case parent.Is(syntax.KindModuleClause):
		return nil

	case parent.Is(syntax.KindCall) && n.Field == syntax.FieldOperand && syntax.IsPrimitive(n.Text):
		// int(x) is a cast, not a call.
		return nil
	}
	return p.lookup(n, n.Text, false)
}

// declaredBy returns the declaration n names when n is the declaring
// identifier itself.
func (p *pass) declaredBy(n *syntax.Node) *symbols.Declaration {
	if !n.Is(syntax.KindIdent) {
		return nil
	}
	t := p.a.table
	if d := t.DeclOf(n); d != nil {
		return d
	}
	parent := n.Parent
	switch {
	case parent.Is(syntax.KindVarDecl) && n.Field == syntax.FieldName:
		return t.Local(symbols.KindLocal, parent, n)
	case parent.Is(syntax.KindParam) && n.Field == syntax.FieldName:
		return t.Local(symbols.KindParam, parent, n)
	case parent.Is(syntax.KindReceiver) && n.Field == syntax.FieldName:
		return t.Local(symbols.KindReceiver, parent, n)
	case parent.Is(syntax.KindForIn) && (n.Field == syntax.FieldKey || n.Field == syntax.FieldIterValue):
		return t.Local(symbols.KindLocal, parent, n)
	case parent.Is(syntax.KindLabeled) && n.Field == syntax.FieldName:
		return t.Local(symbols.KindLabel, parent, n)
	}
	return nil
}

// isReference reports whether n is a use site the reverse index records.
func (p *pass) isReference(n *syntax.Node) bool {
	switch n.Kind {
	case syntax.KindLabelRef:
		return true
	case syntax.KindIdent:
		return !n.Parent.Is(syntax.KindModuleClause) && p.declaredBy(n) == nil
	}
	return false
}

// lookup resolves an unqualified name from n outward: enclosing block and
// function scopes, then the module, then imports, then builtin. The first
// level with a match wins; every match from that level is returned.
func (p *pass) lookup(n *syntax.Node, name string, typesOnly bool) []*symbols.Declaration {
	t := p.a.table
	keep := func(ds []*symbols.Declaration) []*symbols.Declaration {
		if !typesOnly {
			return ds
		}
		var out []*symbols.Declaration
		for _, d := range ds {
			if d.Kind.IsType() {
				out = append(out, d)
			}
		}
		return out
	}

	child := n
	for scope := n.Parent; scope != nil; child, scope = scope, scope.Parent {
		if found := keep(p.scopeDecls(scope, child, name)); len(found) > 0 {
			return found
		}
	}

	f := t.FileOf(n)
	if f != nil {
		if found := keep(t.Lookup(f.Module, name)); len(found) > 0 {
			return found
		}
		var fromImports []*symbols.Declaration
		for _, imp := range t.Imports(f) {
			if imp.Alias == name && !typesOnly {
				fromImports = append(fromImports, imp.Decl)
			}
			for _, sym := range imp.Symbols {
				if sym.Name != name {
					continue
				}
				if d := t.ResolveQualified(imp.Path, name); d != nil && d.VisibleFrom(f.Module) {
					fromImports = append(fromImports, d)
				}
			}
		}
		if found := keep(fromImports); len(found) > 0 {
			return found
		}
	}
	return keep(t.Lookup(symbols.BuiltinModule, name))
}

// scopeDecls returns what scope declares under name that is visible from
// its child on the path to the reference.
func (p *pass) scopeDecls(scope, child *syntax.Node, name string) []*symbols.Declaration {
	t := p.a.table
	switch scope.Kind {
	case syntax.KindBlock:
		for i := child.Index() - 1; i >= 0; i-- {
			if d := p.varDeclNamed(scope.Children[i], name); d != nil {
				return one(d)
			}
		}

	case syntax.KindIf:
		if child.Field == syntax.FieldBranchBody {
			return one(p.varDeclNamed(scope.ChildByField(syntax.FieldCond), name))
		}

	case syntax.KindFor:
		if child.Field != syntax.FieldInit {
			return one(p.varDeclNamed(scope.ChildByField(syntax.FieldInit), name))
		}

	case syntax.KindForIn:
		if child.Field != syntax.FieldBody {
			return nil
		}
		for _, v := range []*syntax.Node{scope.ChildByField(syntax.FieldKey), scope.ChildByField(syntax.FieldIterValue)} {
			if v != nil && v.Text == name {
				return one(t.Local(symbols.KindLocal, scope, v))
			}
		}

	case syntax.KindOr:
		if child.Field == syntax.FieldOrBlock && name == "err" {
			return one(t.Implicit(symbols.KindErr, "err", scope))
		}

	case syntax.KindFnDecl, syntax.KindFnLit:
		if child.Field == syntax.FieldBody {
			for _, param := range scope.ChildByField(syntax.FieldParams).ChildrenOfKind(syntax.KindParam) {
				if id := param.ChildByField(syntax.FieldName); id != nil && id.Text == name {
					return one(t.Local(symbols.KindParam, param, id))
				}
			}
		}
		fn := t.DeclOf(scope)
		if fn == nil {
			return nil
		}
		if d := genericNamed(t, fn, name); d != nil {
			return one(d)
		}
		if recv := scope.ChildByField(syntax.FieldReceiver); recv != nil && child.Field == syntax.FieldBody {
			if id := recv.ChildByField(syntax.FieldName); id != nil && id.Text == name {
				return one(t.Local(symbols.KindReceiver, recv, id))
			}
		}
		if fn.Parent != nil {
			return one(genericNamed(t, fn.Parent, name))
		}

	case syntax.KindStructDecl, syntax.KindInterfaceDecl, syntax.KindAliasDecl, syntax.KindSumTypeDecl:
		if d := t.DeclOf(scope); d != nil {
			return one(genericNamed(t, d, name))
		}
	}
	return nil
}

func genericNamed(t *symbols.Table, owner *symbols.Declaration, name string) *symbols.Declaration {
	for _, g := range t.Generics(owner) {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// varDeclNamed returns the local stmt declares under name, when stmt is a
// short variable declaration.
func (p *pass) varDeclNamed(stmt *syntax.Node, name string) *symbols.Declaration {
	if !stmt.Is(syntax.KindVarDecl) {
		return nil
	}
	for _, id := range stmt.ChildrenByField(syntax.FieldName) {
		if id.Text == name {
			return p.a.table.Local(symbols.KindLocal, stmt, id)
		}
	}
	return nil
}

func (p *pass) importNamed(n *syntax.Node, alias string) *symbols.Import {
	t := p.a.table
	for _, imp := range t.Imports(t.FileOf(n)) {
		if imp.Alias == alias {
			return imp
		}
	}
	return nil
}

// qualified resolves alias.name through the file's imports, honouring
// visibility.
func (p *pass) qualified(n *syntax.Node, alias, name string) *symbols.Declaration {
	imp := p.importNamed(n, alias)
	if imp == nil {
		return nil
	}
	return p.visible(p.a.table.ResolveQualified(imp.Path, name), p.a.table.ModuleOf(n))
}

func (p *pass) visible(d *symbols.Declaration, from string) *symbols.Declaration {
	if d == nil || !d.VisibleFrom(from) {
		return nil
	}
	return d
}

func (p *pass) importedSymbol(sym *syntax.Node) *symbols.Declaration {
	imp := sym.Parent
	if imp == nil {
		return nil
	}
	return p.visible(p.a.table.ResolveQualified(imp.Text, sym.Text), p.a.table.ModuleOf(sym))
}

// selectMember resolves the member of a selector expression and returns
// the type that holds it, for generic substitution.
func (p *pass) selectMember(sel *syntax.Node) (*symbols.Declaration, *types.Type) {
	t := p.a.table
	member := sel.ChildByField(syntax.FieldMember)
	operand := sel.ChildByField(syntax.FieldOperand)
	if member == nil || operand == nil {
		return nil, nil
	}
	from := t.ModuleOf(sel)
	if operand.Is(syntax.KindIdent) {
		if ds := p.resolve(operand); len(ds) > 0 {
			switch d := ds[0]; d.Kind {
			case symbols.KindImport:
				return p.visible(t.ResolveQualified(d.Node.Text, member.Text), from), nil
			case symbols.KindEnum:
				return t.Member(d, member.Text), types.EnumOf(d)
			}
		}
	}
	return p.member(p.typeOf(operand), member.Text, from)
}

// initField resolves the field a "name: value" initialiser targets, in a
// struct literal or in trailing struct arguments of a call.
func (p *pass) initField(fi *syntax.Node) (*symbols.Declaration, *types.Type) {
	var holder *types.Type
	switch lit := fi.Parent; {
	case lit.Is(syntax.KindStructLit):
		holder = p.typeOf(lit)
	case lit.Is(syntax.KindArgList):
		sig := p.signature(lit.Parent)
		if sig != nil && len(sig.Params) > 0 {
			holder = sig.Params[len(sig.Params)-1]
		}
	}
	name := fi.ChildByField(syntax.FieldName)
	if holder == nil || name == nil {
		return nil, nil
	}
	d, h := p.member(holder, name.Text, p.a.table.ModuleOf(fi))
	if d == nil || d.Kind != symbols.KindField {
		return nil, nil
	}
	return d, h
}

func (p *pass) enumShorthand(es *syntax.Node) *symbols.Declaration {
	want := types.Deref(types.UnwrapOptionalOrResultIf(p.expected(es), true))
	if !want.Is(types.KindEnum) {
		return nil
	}
	return p.a.table.Member(want.Decl, es.Text)
}

// label finds the labelled statement a break, continue or goto names,
// searching enclosing statements first and then the whole function, but
// not the bodies of closures inside it.
func (p *pass) label(ref *syntax.Node) *symbols.Declaration {
	t := p.a.table
	var fn *syntax.Node
	for a := ref.Parent; a != nil; a = a.Parent {
		if a.Is(syntax.KindLabeled) && a.Name() == ref.Text {
			return t.Local(symbols.KindLabel, a, a.ChildByField(syntax.FieldName))
		}
		if a.Is(syntax.KindFnDecl, syntax.KindFnLit) {
			fn = a
			break
		}
	}
	var found *syntax.Node
	fn.Walk(func(n *syntax.Node) bool {
		if found != nil || n != fn && n.Is(syntax.KindFnLit) {
			return false
		}
		if n.Is(syntax.KindLabeled) && n.Name() == ref.Text {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return t.Local(symbols.KindLabel, found, found.ChildByField(syntax.FieldName))
}

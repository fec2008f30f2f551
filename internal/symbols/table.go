package symbols

import (
	"strings"
	"sync"

	"github.com/jward/vsense/internal/syntax"
)

// Import is one import clause of a file.
type Import struct {
	Path    string // full module path, e.g. "geometry.shapes"
	Alias   string // name the module is referenced by
	Node    *syntax.Node
	Decl    *Declaration
	Symbols []*ImportedSymbol
}

// ImportedSymbol is a name brought into scope by "import m { name }".
type ImportedSymbol struct {
	Name string
	Node *syntax.Node
}

type moduleScope struct {
	decls  []*Declaration
	byName map[string][]*Declaration
}

// Table is the symbol table of one snapshot. Module-level declarations and
// type members are built eagerly; locals are created on first request and
// cached so their identity is stable for the table's lifetime.
type Table struct {
	version uint64

	modules map[string]*moduleScope
	methods map[string][]*Declaration // "module.Type" -> methods
	members map[*Declaration][]*Declaration
	generic map[*Declaration][]*Declaration
	byNode  map[*syntax.Node]*Declaration
	imports map[*syntax.File][]*Import
	files   map[*syntax.Node]*syntax.File

	mu       sync.Mutex
	locals   map[*syntax.Node]*Declaration
	implicit map[*syntax.Node]*Declaration
}

// Build constructs the table for snap, including the builtin module.
func Build(snap *Snapshot) *Table {
	t := &Table{
		version: snap.Version,
		modules: make(map[string]*moduleScope),
		methods: make(map[string][]*Declaration),
		members: make(map[*Declaration][]*Declaration),
		generic: make(map[*Declaration][]*Declaration),
		byNode:  make(map[*syntax.Node]*Declaration),
		imports: make(map[*syntax.File][]*Import),
		files:   make(map[*syntax.Node]*syntax.File),
		locals:  make(map[*syntax.Node]*Declaration),

		implicit: make(map[*syntax.Node]*Declaration),
	}
	var methods []*Declaration
	if b := Builtin(); b != nil {
		methods = append(methods, t.addFile(b)...)
	}
	for _, f := range snap.Files() {
		methods = append(methods, t.addFile(f)...)
	}
	for _, m := range methods {
		t.linkMethod(m)
	}
	return t
}

// Version returns the snapshot version the table was built from.
func (t *Table) Version() uint64 { return t.version }

func (t *Table) scope(module string) *moduleScope {
	s, ok := t.modules[module]
	if !ok {
		s = &moduleScope{byName: make(map[string][]*Declaration)}
		t.modules[module] = s
	}
	return s
}

func (t *Table) register(d *Declaration) {
	if d.Node != nil {
		if _, taken := t.byNode[d.Node]; !taken {
			t.byNode[d.Node] = d
		}
	}
	if d.NameNode != nil {
		t.byNode[d.NameNode] = d
	}
}

func (t *Table) declare(d *Declaration) {
	s := t.scope(d.Module)
	s.decls = append(s.decls, d)
	s.byName[d.Name] = append(s.byName[d.Name], d)
	t.register(d)
}

func (t *Table) newDecl(f *syntax.File, kind Kind, node *syntax.Node) *Declaration {
	name := node.ChildByField(syntax.FieldName)
	d := &Declaration{Kind: kind, Module: f.Module, Node: node, NameNode: name, File: f}
	if name != nil {
		d.Name = name.Text
	}
	d.Public = node.Has(syntax.FlagPub) || Exported(d.Name) || f.Module == BuiltinModule
	d.Mutable = node.Has(syntax.FlagMut)
	return d
}

// addFile declares f's top-level symbols and returns its methods, which
// are linked to their receiver types once every file is in.
func (t *Table) addFile(f *syntax.File) []*Declaration {
	t.files[f.Root] = f
	t.scope(f.Module)
	var methods []*Declaration
	for _, n := range f.Root.Children {
		switch n.Kind {
		case syntax.KindImport:
			t.addImport(f, n)

		case syntax.KindFnDecl:
			if recv := n.ChildByField(syntax.FieldReceiver); recv != nil {
				d := t.newDecl(f, KindMethod, n)
				d.Receiver = ReceiverTypeName(recv.ChildByField(syntax.FieldType))
				t.register(d)
				t.addGenerics(f, d)
				methods = append(methods, d)
				continue
			}
			d := t.newDecl(f, KindFunction, n)
			t.declare(d)
			t.addGenerics(f, d)

		case syntax.KindStructDecl:
			d := t.newDecl(f, KindStruct, n)
			t.declare(d)
			t.addGenerics(f, d)
			for _, fd := range n.ChildrenByField(syntax.FieldMember) {
				m := t.newDecl(f, KindField, fd)
				m.Parent = d
				m.Public = fd.Has(syntax.FlagPub) || f.Module == BuiltinModule
				if fd.Has(syntax.FlagEmbedded) {
					m.Embedded = true
					m.Name = syntax.ShortModule(fd.ChildByField(syntax.FieldType).Text)
					m.NameNode = fd.ChildByField(syntax.FieldType)
				}
				t.addMember(d, m)
			}

		case syntax.KindEnumDecl:
			d := t.newDecl(f, KindEnum, n)
			t.declare(d)
			for _, ef := range n.ChildrenByField(syntax.FieldMember) {
				m := t.newDecl(f, KindEnumField, ef)
				m.Parent = d
				m.Public = d.Public
				t.addMember(d, m)
			}

		case syntax.KindInterfaceDecl:
			d := t.newDecl(f, KindInterface, n)
			t.declare(d)
			t.addGenerics(f, d)
			for _, im := range n.ChildrenByField(syntax.FieldMember) {
				kind := KindInterfaceField
				if im.Kind == syntax.KindInterfaceMethod {
					kind = KindInterfaceMethod
				}
				m := t.newDecl(f, kind, im)
				m.Parent = d
				m.Public = d.Public
				t.addMember(d, m)
			}

		case syntax.KindAliasDecl:
			d := t.newDecl(f, KindAlias, n)
			t.declare(d)
			t.addGenerics(f, d)

		case syntax.KindSumTypeDecl:
			d := t.newDecl(f, KindUnion, n)
			t.declare(d)
			t.addGenerics(f, d)

		case syntax.KindConstDecl:
			for _, spec := range n.ChildrenByField(syntax.FieldSpec) {
				d := t.newDecl(f, KindConst, spec)
				d.Public = n.Has(syntax.FlagPub) || Exported(d.Name) || f.Module == BuiltinModule
				t.declare(d)
			}

		case syntax.KindGlobalDecl:
			for _, spec := range n.ChildrenByField(syntax.FieldSpec) {
				d := t.newDecl(f, KindGlobal, spec)
				d.Public = true
				d.Mutable = true
				t.declare(d)
			}
		}
	}
	return methods
}

func (t *Table) addMember(owner, m *Declaration) {
	t.members[owner] = append(t.members[owner], m)
	t.register(m)
}

func (t *Table) addGenerics(f *syntax.File, owner *Declaration) {
	gens := owner.Node.ChildByField(syntax.FieldGenerics)
	for _, gp := range gens.ChildrenOfKind(syntax.KindGenericParam) {
		d := t.newDecl(f, KindGenericParam, gp)
		d.Parent = owner
		d.Public = owner.Public
		t.generic[owner] = append(t.generic[owner], d)
		t.register(d)
	}
}

func (t *Table) addImport(f *syntax.File, n *syntax.Node) {
	imp := &Import{Path: n.Text, Alias: syntax.ShortModule(n.Text), Node: n}
	aliasNode := n.ChildByField(syntax.FieldAlias)
	if aliasNode != nil {
		imp.Alias = aliasNode.Text
	}
	imp.Decl = &Declaration{
		Name:     imp.Alias,
		Kind:     KindImport,
		Module:   f.Module,
		Node:     n,
		NameNode: aliasNode,
		File:     f,
	}
	t.register(imp.Decl)
	for _, sym := range n.ChildrenByField(syntax.FieldSymbol) {
		imp.Symbols = append(imp.Symbols, &ImportedSymbol{Name: sym.Text, Node: sym})
	}
	t.imports[f] = append(t.imports[f], imp)
}

func (t *Table) linkMethod(m *Declaration) {
	key := m.Module + "." + m.Receiver
	t.methods[key] = append(t.methods[key], m)
	for _, owner := range t.scope(m.Module).byName[m.Receiver] {
		if owner.Kind.IsType() {
			m.Parent = owner
			t.members[owner] = append(t.members[owner], m)
			break
		}
	}
}

// ReceiverTypeName strips pointers and generic arguments from a receiver
// type: "&Box[T]" is "Box".
func ReceiverTypeName(typ *syntax.Node) string {
	for typ.Is(syntax.KindPointerType) {
		typ = typ.ChildByField(syntax.FieldElement)
	}
	switch {
	case typ.Is(syntax.KindNamedType):
		return typ.Name()
	case typ.Is(syntax.KindArrayType):
		return "array"
	case typ.Is(syntax.KindMapType):
		return "map"
	}
	return ""
}

// DeclarationsInModule returns a module's top-level declarations in file
// path order, then source order.
func (t *Table) DeclarationsInModule(module string) []*Declaration {
	s, ok := t.modules[module]
	if !ok {
		return nil
	}
	return append([]*Declaration(nil), s.decls...)
}

// ResolveQualified returns the first top-level declaration named name in
// module, or nil. Visibility is the caller's concern.
func (t *Table) ResolveQualified(module, name string) *Declaration {
	found := t.Lookup(module, name)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Lookup returns every top-level declaration named name in module.
func (t *Table) Lookup(module, name string) []*Declaration {
	s, ok := t.modules[module]
	if !ok {
		return nil
	}
	return s.byName[name]
}

// HasModule reports whether any file, or the builtin module, declares module.
func (t *Table) HasModule(module string) bool {
	_, ok := t.modules[module]
	return ok
}

// Modules returns every module path known to the table.
func (t *Table) Modules() []string {
	out := make([]string, 0, len(t.modules))
	for m := range t.modules {
		out = append(out, m)
	}
	return out
}

// DeclOf returns the declaration whose declaring or name node is n.
// Locals created through Local are included.
func (t *Table) DeclOf(n *syntax.Node) *Declaration {
	if d, ok := t.byNode[n]; ok {
		return d
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locals[n]
}

// Members returns the fields, enum values, interface members and methods
// of a type declaration in declaration order.
func (t *Table) Members(d *Declaration) []*Declaration {
	return t.members[d]
}

// Member returns the member of d named name, or nil.
func (t *Table) Member(d *Declaration, name string) *Declaration {
	for _, m := range t.members[d] {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Methods returns the methods declared on typeName in module.
func (t *Table) Methods(module, typeName string) []*Declaration {
	return t.methods[module+"."+typeName]
}

// Method returns the method name on typeName in module, or nil.
func (t *Table) Method(module, typeName, name string) *Declaration {
	for _, m := range t.methods[module+"."+typeName] {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Generics returns the generic parameters of a function or type.
func (t *Table) Generics(d *Declaration) []*Declaration {
	return t.generic[d]
}

// Imports returns the import clauses of f.
func (t *Table) Imports(f *syntax.File) []*Import {
	return t.imports[f]
}

// FileOf returns the file containing n.
func (t *Table) FileOf(n *syntax.Node) *syntax.File {
	return t.files[n.Root()]
}

// ModuleOf returns the module of the file containing n.
func (t *Table) ModuleOf(n *syntax.Node) string {
	if f := t.FileOf(n); f != nil {
		return f.Module
	}
	return ""
}

// Local returns the declaration for a block-scoped name, creating it on
// first use. Concurrent callers for the same node receive the same value.
func (t *Table) Local(kind Kind, node, name *syntax.Node) *Declaration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.locals[name]; ok {
		return d
	}
	d := &Declaration{
		Name:     name.Text,
		Kind:     kind,
		Node:     node,
		NameNode: name,
		Mutable:  name.Has(syntax.FlagMut) || (kind != KindLocal && node.Has(syntax.FlagMut)),
	}
	if f := t.files[name.Root()]; f != nil {
		d.File = f
		d.Module = f.Module
	}
	t.locals[name] = d
	return d
}

// Implicit returns the declaration of a name the language introduces
// without a declaring identifier, such as err inside an or block. It is
// keyed by the introducing node.
func (t *Table) Implicit(kind Kind, name string, node *syntax.Node) *Declaration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.implicit[node]; ok {
		return d
	}
	d := &Declaration{Name: name, Kind: kind, Node: node}
	if f := t.files[node.Root()]; f != nil {
		d.File = f
		d.Module = f.Module
	}
	t.implicit[node] = d
	return d
}

// Index hands out the table of the current snapshot, rebuilding it when
// the version moves. Builds run outside the lock; a duplicate build for
// the same version simply replaces an equal table.
type Index struct {
	mu    sync.Mutex
	table *Table
}

// Table returns the table for snap.
func (ix *Index) Table(snap *Snapshot) *Table {
	ix.mu.Lock()
	t := ix.table
	ix.mu.Unlock()
	if t != nil && t.version == snap.Version {
		return t
	}
	t = Build(snap)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.table == nil || ix.table.version <= snap.Version {
		ix.table = t
	}
	return t
}

// SplitQualified splits "mod.sub.Name" into "mod.sub" and "Name".
func SplitQualified(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/types"
)

// maxEmbedDepth bounds the walk through embedded structs.
const maxEmbedDepth = 8

// member looks name up on a value of type t as seen from module from:
// fields and methods, through pointers, aliases and embedded structs.
// Arrays, maps and primitives use the builtin declarations of their
// methods. It also returns the type the member was found on.
func (p *pass) member(t *types.Type, name, from string) (*symbols.Declaration, *types.Type) {
	d, holder := p.findMember(t, name, 0)
	if d == nil || !d.VisibleFrom(from) {
		return nil, nil
	}
	return d, holder
}

func (p *pass) findMember(t *types.Type, name string, depth int) (*symbols.Declaration, *types.Type) {
	tbl := p.a.table
	for t != nil && depth <= maxEmbedDepth {
		switch t.Kind {
		case types.KindAlias:
			if m := tbl.Member(t.Decl, name); m != nil {
				return m, t
			}
			t = t.Elem

		case types.KindBuiltin:
			if m := tbl.Method(symbols.BuiltinModule, t.Name, name); m != nil {
				return m, t
			}
			t = t.Elem

		case types.KindPointer:
			t = t.Elem

		case types.KindStruct:
			if m := tbl.Member(t.Decl, name); m != nil {
				return m, t
			}
			for _, m := range tbl.Members(t.Decl) {
				if !m.Embedded {
					continue
				}
				if found, holder := p.findMember(p.memberType(t, m), name, depth+1); found != nil {
					return found, holder
				}
			}
			return nil, nil

		case types.KindInterface, types.KindEnum, types.KindUnion:
			if m := tbl.Member(t.Decl, name); m != nil {
				return m, t
			}
			return nil, nil

		case types.KindPrimitive:
			if s := p.builtinType(t.Name); s != nil {
				if m := tbl.Member(s, name); m != nil {
					return m, t
				}
			}
			if m := tbl.Method(symbols.BuiltinModule, t.Name, name); m != nil {
				return m, t
			}
			return nil, nil

		case types.KindArray, types.KindFixedArray:
			if s := p.builtinType("array"); s != nil {
				if m := tbl.Member(s, name); m != nil {
					return m, t
				}
			}
			return nil, nil

		case types.KindMap:
			if s := p.builtinType("map"); s != nil {
				if m := tbl.Member(s, name); m != nil {
					return m, t
				}
			}
			return nil, nil

		default:
			return nil, nil
		}
	}
	return nil, nil
}

func (p *pass) builtinType(name string) *symbols.Declaration {
	for _, d := range p.a.table.Lookup(symbols.BuiltinModule, name) {
		if d.Kind.IsType() {
			return d
		}
	}
	return nil
}

// bindings maps the generic parameters of holder's declaration to its
// concrete arguments.
func (p *pass) bindings(holder *types.Type) map[*symbols.Declaration]*types.Type {
	tbl := p.a.table
	out := map[*symbols.Declaration]*types.Type{}
	bind := func(owner *symbols.Declaration, args ...*types.Type) {
		for i, g := range tbl.Generics(owner) {
			if i < len(args) && args[i] != nil {
				out[g] = args[i]
			}
		}
	}
	switch {
	case holder.Is(types.KindStruct):
		bind(holder.Decl, holder.Args...)
	case holder.Is(types.KindArray), holder.Is(types.KindFixedArray):
		if s := p.builtinType("array"); s != nil {
			bind(s, holder.Elem)
		}
	case holder.Is(types.KindMap):
		if s := p.builtinType("map"); s != nil {
			bind(s, holder.Key, holder.Elem)
		}
	}
	return out
}

// memberType is the declared type of m with holder's generic arguments
// substituted.
func (p *pass) memberType(holder *types.Type, m *symbols.Declaration) *types.Type {
	if m.Embedded {
		return p.semantic(m.NameNode)
	}
	return types.Substitute(p.declType(m), p.bindings(holder))
}

// methodSet feeds structural interface checks from the symbol table.
type methodSet struct {
	p *pass
}

func (ms methodSet) MethodsOf(t *types.Type) map[string]*types.Type {
	out := map[string]*types.Type{}
	ms.collect(t, out, 0)
	return out
}

func (ms methodSet) collect(t *types.Type, out map[string]*types.Type, depth int) {
	p := ms.p
	tbl := p.a.table
	if depth > maxEmbedDepth {
		return
	}
	for t.Is(types.KindPointer) {
		t = t.Elem
	}
	if t.Is(types.KindAlias) {
		for _, m := range tbl.Members(t.Decl) {
			if m.Kind == symbols.KindMethod {
				if _, ok := out[m.Name]; !ok {
					out[m.Name] = p.memberType(t, m)
				}
			}
		}
		ms.collect(t.Elem, out, depth+1)
		return
	}
	t = types.Deref(t)
	if t == nil || t.Decl == nil {
		return
	}
	for _, m := range tbl.Members(t.Decl) {
		switch {
		case m.Kind == symbols.KindMethod:
			if _, ok := out[m.Name]; !ok {
				out[m.Name] = p.memberType(t, m)
			}
		case m.Embedded:
			defer ms.collect(p.memberType(t, m), out, depth+1)
		}
	}
}

func (ms methodSet) InterfaceMethods(iface *types.Type) map[string]*types.Type {
	out := map[string]*types.Type{}
	if iface == nil || iface.Decl == nil {
		return out
	}
	for _, m := range ms.p.a.table.Members(iface.Decl) {
		if m.Kind == symbols.KindInterfaceMethod {
			out[m.Name] = ms.p.declType(m)
		}
	}
	return out
}

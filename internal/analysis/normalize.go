package analysis

import (
	"strconv"

	gfn "github.com/panyam/goutils/fn"

	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

func (p *pass) semantic(n *syntax.Node) *types.Type {
	return guard(p, keySemantic, n, &p.a.memo.semantic, func() *types.Type {
		return p.toSemantic(n)
	})
}

func (p *pass) toSemantic(n *syntax.Node) *types.Type {
	elem := func() *types.Type { return p.semantic(n.ChildByField(syntax.FieldElement)) }
	switch n.Kind {
	case syntax.KindNamedType:
		return p.namedType(n)
	case syntax.KindPointerType:
		return types.PointerTo(elem())
	case syntax.KindArrayType:
		return types.ArrayOf(elem())
	case syntax.KindFixedArrayType:
		return types.FixedArrayOf(elem(), arraySize(n.ChildByField(syntax.FieldSize)))
	case syntax.KindMapType:
		return types.MapOf(p.semantic(n.ChildByField(syntax.FieldKey)), p.semantic(n.ChildByField(syntax.FieldValue)))
	case syntax.KindOptionType:
		return types.OptionalOf(elem())
	case syntax.KindResultType:
		return types.ResultOf(elem())
	case syntax.KindFnType:
		return p.signatureOf(n)
	case syntax.KindTupleType:
		return types.TupleOf(gfn.Map(n.ChildrenByField(syntax.FieldElement), p.semantic)...)
	}
	return nil
}

// arraySize reads a literal fixed-array length; anything else is -1.
func arraySize(n *syntax.Node) int {
	if !n.Is(syntax.KindIntLit) {
		return -1
	}
	v, err := strconv.ParseInt(n.Text, 0, 64)
	if err != nil {
		return -1
	}
	return int(v)
}

func (p *pass) namedType(n *syntax.Node) *types.Type {
	if n.ChildByField(syntax.FieldQualifier) == nil && syntax.IsPrimitive(n.Text) {
		return types.Primitive(n.Text)
	}
	decls := p.resolve(n.ChildByField(syntax.FieldName))
	if len(decls) == 0 {
		return nil
	}
	d := decls[0]
	args := gfn.Map(n.ChildrenByField(syntax.FieldTypeArg), p.semantic)
	switch d.Kind {
	case symbols.KindStruct:
		return types.StructOf(d, args...)
	case symbols.KindGenericParam:
		return types.GenericParamOf(d, nil)
	}
	return p.declType(d)
}

// signatureOf builds the function type of a FnDecl, FnLit, FnType or
// InterfaceMethod. The receiver is not a parameter.
func (p *pass) signatureOf(fn *syntax.Node) *types.Type {
	params := fn.ChildByField(syntax.FieldParams).ChildrenOfKind(syntax.KindParam)
	var list []*types.Type
	variadic := false
	for i, param := range params {
		list = append(list, p.semantic(param.ChildByField(syntax.FieldType)))
		if i == len(params)-1 && param.Has(syntax.FlagVariadic) {
			variadic = true
		}
	}
	return types.FunctionOf(list, p.semantic(fn.ChildByField(syntax.FieldResult)), variadic)
}

func (p *pass) declType(d *symbols.Declaration) *types.Type {
	if d == nil {
		return nil
	}
	n := d.Node
	switch d.Kind {
	case symbols.KindFunction, symbols.KindMethod, symbols.KindInterfaceMethod:
		return p.signatureOf(n)

	case symbols.KindStruct:
		return types.StructOf(d)
	case symbols.KindInterface:
		return types.InterfaceOf(d)
	case symbols.KindEnum:
		return types.EnumOf(d)
	case symbols.KindEnumField:
		return types.EnumOf(d.Parent)
	case symbols.KindUnion:
		return types.UnionOf(d, gfn.Map(n.ChildrenByField(syntax.FieldVariant), p.semantic)...)
	case symbols.KindAlias:
		return p.aliasType(d)
	case symbols.KindGenericParam:
		return types.GenericParamOf(d, nil)

	case symbols.KindField, symbols.KindInterfaceField, symbols.KindParam, symbols.KindReceiver:
		return p.semantic(n.ChildByField(syntax.FieldType))

	case symbols.KindConst:
		return p.typeOf(n.ChildByField(syntax.FieldValue))

	case symbols.KindGlobal:
		if typ := n.ChildByField(syntax.FieldType); typ != nil {
			return p.semantic(typ)
		}
		return p.typeOf(n.ChildByField(syntax.FieldValue))

	case symbols.KindLocal:
		return p.localType(d)

	case symbols.KindErr:
		if ierr := p.a.table.ResolveQualified(symbols.BuiltinModule, "IError"); ierr != nil {
			return types.InterfaceOf(ierr)
		}
	}
	return nil
}

// aliasType keeps the alias identity; the guard on the alias node stops
// "type A = B" and "type B = A" from looping.
func (p *pass) aliasType(d *symbols.Declaration) *types.Type {
	target := guard(p, keySemantic, d.Node, &p.a.memo.semantic, func() *types.Type {
		return p.semantic(d.Node.ChildByField(syntax.FieldType))
	})
	return types.AliasOf(d, target)
}

// localType types a short variable declaration or a for-in variable.
func (p *pass) localType(d *symbols.Declaration) *types.Type {
	n := d.Node
	if n.Is(syntax.KindForIn) {
		return p.iterType(n, d.NameNode)
	}
	names := n.ChildrenByField(syntax.FieldName)
	values := n.ChildrenByField(syntax.FieldValue)
	i := d.NameNode.IndexInField()
	// "if x := opt() {" binds the unwrapped value.
	guarded := n.Field == syntax.FieldCond && n.Parent.Is(syntax.KindIf)
	switch {
	case len(values) == len(names) && i >= 0:
		return types.UnwrapOptionalOrResultIf(p.typeOf(values[i]), guarded)
	case len(values) == 1:
		t := types.UnwrapOptionalOrResultIf(p.typeOf(values[0]), guarded)
		if t.Is(types.KindTuple) {
			if i >= 0 && i < len(t.Args) {
				return t.Args[i]
			}
			return nil
		}
		return t
	}
	return nil
}

// iterType infers a for-in variable: the index or key for the first of two
// variables, the element or value otherwise.
func (p *pass) iterType(forIn, v *syntax.Node) *types.Type {
	over := forIn.ChildByField(syntax.FieldValue)
	isKey := v.Field == syntax.FieldKey
	if over.Is(syntax.KindRange) {
		return p.typeOf(over.ChildByField(syntax.FieldLeft))
	}
	src := types.Deref(p.typeOf(over))
	switch {
	case src.Is(types.KindArray), src.Is(types.KindFixedArray):
		if isKey {
			return types.Int
		}
		return src.Elem
	case src.Is(types.KindMap):
		if isKey {
			return src.Key
		}
		return src.Elem
	case src.Is(types.KindPrimitive) && src.Name == "string":
		if isKey {
			return types.Int
		}
		return types.U8
	}
	return nil
}

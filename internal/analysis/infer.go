package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

func (p *pass) typeOf(n *syntax.Node) *types.Type {
	return guard(p, keyType, n, &p.a.memo.types, func() *types.Type {
		return p.infer(n)
	})
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true, "in": true, "!in": true, "is": true, "!is": true,
}

func (p *pass) infer(n *syntax.Node) *types.Type {
	operand := func() *types.Type { return p.typeOf(n.ChildByField(syntax.FieldOperand)) }
	switch n.Kind {
	case syntax.KindIntLit:
		if want := p.expected(n); types.IsNumeric(want) {
			return want
		}
		return types.Int
	case syntax.KindFloatLit:
		if want := p.expected(n); types.IsFloat(want) {
			return want
		}
		return types.F64
	case syntax.KindStringLit:
		return types.String
	case syntax.KindCharLit:
		return types.Rune
	case syntax.KindBoolLit:
		return types.Bool
	case syntax.KindNoneLit:
		return types.OptionalOf(nil)

	case syntax.KindIdent:
		return p.identType(n)

	case syntax.KindSelector:
		d, holder := p.selectMember(n)
		if d == nil {
			return nil
		}
		if holder == nil || d.Kind == symbols.KindEnumField {
			return p.declType(d)
		}
		return p.memberType(holder, d)

	case syntax.KindCall:
		return p.callType(n)

	case syntax.KindGenericInst:
		fn := operand()
		decls := p.resolve(n.ChildByField(syntax.FieldOperand))
		if len(decls) == 0 {
			return fn
		}
		return types.Substitute(fn, p.explicitBindings(decls[0], n))

	case syntax.KindIndex:
		return p.indexType(n)

	case syntax.KindBinary:
		return p.binaryType(n)

	case syntax.KindUnary:
		return p.unaryType(n)

	case syntax.KindParen:
		return operand()

	case syntax.KindArrayLit:
		return p.arrayLitType(n)

	case syntax.KindMapLit:
		if typ := n.ChildByField(syntax.FieldType); typ != nil {
			return p.semantic(typ)
		}
		if kv := n.ChildByField(syntax.FieldElement); kv.Is(syntax.KindKeyValue) {
			return types.MapOf(p.typeOf(kv.ChildByField(syntax.FieldKey)), p.typeOf(kv.ChildByField(syntax.FieldValue)))
		}
		if want := p.expected(n); types.Underlying(want).Is(types.KindMap) {
			return want
		}
		return nil

	case syntax.KindStructLit:
		return p.semantic(n.ChildByField(syntax.FieldType))

	case syntax.KindFieldInit, syntax.KindKeyValue:
		return p.typeOf(n.ChildByField(syntax.FieldValue))

	case syntax.KindEnumShorthand:
		if d := p.enumShorthand(n); d != nil {
			return types.EnumOf(d.Parent)
		}
		return nil

	case syntax.KindFnLit:
		return p.signatureOf(n)

	case syntax.KindMatch:
		for _, arm := range n.ChildrenByField(syntax.FieldArm) {
			if t := p.blockValue(arm.ChildByField(syntax.FieldBody)); t != nil {
				return t
			}
		}
		return nil

	case syntax.KindIf:
		if t := p.blockValue(n.ChildByField(syntax.FieldBranchBody)); t != nil {
			return t
		}
		alt := n.ChildByField(syntax.FieldElse)
		if alt.Is(syntax.KindIf) {
			return p.typeOf(alt)
		}
		return p.blockValue(alt)

	case syntax.KindBlock:
		return p.blockValue(n)

	case syntax.KindAsCast:
		return p.semantic(n.ChildByField(syntax.FieldType))

	case syntax.KindPropagate, syntax.KindOr:
		return types.UnwrapOptionalOrResultIf(operand(), true)

	case syntax.KindRange:
		return types.ArrayOf(p.typeOf(n.ChildByField(syntax.FieldLeft)))
	}
	return nil
}

func (p *pass) identType(n *syntax.Node) *types.Type {
	decls := p.resolve(n)
	if len(decls) == 0 {
		return nil
	}
	return p.declType(decls[0])
}

// blockValue is the type of a block used as an expression: the value of
// its last expression statement.
func (p *pass) blockValue(b *syntax.Node) *types.Type {
	if b == nil || len(b.Children) == 0 {
		return nil
	}
	last := b.Children[len(b.Children)-1]
	if !last.Is(syntax.KindExprStmt) {
		return nil
	}
	return p.typeOf(last.ChildByField(syntax.FieldValue))
}

func (p *pass) arrayLitType(n *syntax.Node) *types.Type {
	if typ := n.ChildByField(syntax.FieldType); typ != nil {
		return p.semantic(typ)
	}
	elems := n.ChildrenByField(syntax.FieldElement)
	var elem *types.Type
	if len(elems) > 0 {
		elem = p.typeOf(elems[0])
	}
	if elem == nil {
		if want := types.Underlying(p.expected(n)); want.Is(types.KindArray) || want.Is(types.KindFixedArray) {
			return want
		}
		return nil
	}
	if n.Has(syntax.FlagGated) {
		return types.FixedArrayOf(elem, len(elems))
	}
	return types.ArrayOf(elem)
}

func (p *pass) indexType(n *syntax.Node) *types.Type {
	base := p.typeOf(n.ChildByField(syntax.FieldOperand))
	src := types.Underlying(base)
	if src.Is(types.KindPointer) {
		src = types.Underlying(src.Elem)
	}
	if n.Has(syntax.FlagSlice) {
		switch {
		case src.Is(types.KindFixedArray):
			return types.ArrayOf(src.Elem)
		case src.Is(types.KindArray), src.Is(types.KindPrimitive) && src.Name == "string":
			return src
		}
		return nil
	}
	switch {
	case src.Is(types.KindArray), src.Is(types.KindFixedArray), src.Is(types.KindMap):
		return src.Elem
	case src.Is(types.KindPrimitive) && src.Name == "string":
		return types.U8
	}
	return nil
}

func (p *pass) binaryType(n *syntax.Node) *types.Type {
	if comparisonOps[n.Text] {
		return types.Bool
	}
	left := p.typeOf(n.ChildByField(syntax.FieldLeft))
	if n.Text == "<<" && types.Underlying(left).Is(types.KindArray) {
		return left
	}
	// Operator overloads are methods named after the operator.
	if types.Deref(left).Is(types.KindStruct) || left.Is(types.KindAlias) {
		if d, holder := p.findMember(left, n.Text, 0); d != nil && d.Kind == symbols.KindMethod {
			if sig := p.memberType(holder, d); sig.Is(types.KindFunction) && sig.Result != nil {
				return sig.Result
			}
		}
	}
	return types.Promote(left, p.typeOf(n.ChildByField(syntax.FieldRight)))
}

func (p *pass) unaryType(n *syntax.Node) *types.Type {
	inner := p.typeOf(n.ChildByField(syntax.FieldOperand))
	switch n.Text {
	case "&":
		return types.PointerTo(inner)
	case "*":
		if u := types.Underlying(inner); u.Is(types.KindPointer) {
			return u.Elem
		}
		return nil
	case "!":
		return types.Bool
	case "<-":
		return nil
	}
	return inner
}

// callType infers a call: casts yield the target type, other calls the
// callee's result with generic parameters bound from explicit type
// arguments first and argument types second.
func (p *pass) callType(call *syntax.Node) *types.Type {
	callee := call.ChildByField(syntax.FieldOperand)
	if callee.Is(syntax.KindIdent) && syntax.IsPrimitive(callee.Text) {
		return types.Primitive(callee.Text)
	}
	if d := p.calleeDecl(call); d != nil && d.Kind.IsType() {
		return p.declType(d)
	}
	sig, bindings := p.callSignature(call)
	if sig == nil {
		return nil
	}
	for i, arg := range positionalArgs(call) {
		types.Unify(paramAt(sig, i), p.typeOf(arg), bindings)
	}
	return types.Substitute(sig.Result, bindings)
}

func (p *pass) calleeDecl(call *syntax.Node) *symbols.Declaration {
	callee := call.ChildByField(syntax.FieldOperand)
	if callee.Is(syntax.KindGenericInst) {
		callee = callee.ChildByField(syntax.FieldOperand)
	}
	if !callee.Is(syntax.KindIdent, syntax.KindSelector) {
		return nil
	}
	if decls := p.resolve(callee); len(decls) > 0 {
		return decls[0]
	}
	return nil
}

// signature is the callee's function type with explicit generic arguments
// applied, or nil when the callee is not a function.
func (p *pass) signature(call *syntax.Node) *types.Type {
	sig, bindings := p.callSignature(call)
	return types.Substitute(sig, bindings)
}

func (p *pass) callSignature(call *syntax.Node) (*types.Type, map[*symbols.Declaration]*types.Type) {
	if !call.Is(syntax.KindCall) {
		return nil, nil
	}
	callee := call.ChildByField(syntax.FieldOperand)
	inst := callee
	if callee.Is(syntax.KindGenericInst) {
		callee = callee.ChildByField(syntax.FieldOperand)
	}
	sig := types.Underlying(p.typeOf(callee))
	if !sig.Is(types.KindFunction) {
		return nil, nil
	}
	bindings := map[*symbols.Declaration]*types.Type{}
	if d := p.calleeDecl(call); d != nil && inst.Is(syntax.KindGenericInst) {
		bindings = p.explicitBindings(d, inst)
	}
	return sig, bindings
}

func (p *pass) explicitBindings(d *symbols.Declaration, inst *syntax.Node) map[*symbols.Declaration]*types.Type {
	out := map[*symbols.Declaration]*types.Type{}
	args := inst.ChildrenByField(syntax.FieldTypeArg)
	for i, g := range p.a.table.Generics(d) {
		if i < len(args) {
			if t := p.semantic(args[i]); t != nil {
				out[g] = t
			}
		}
	}
	return out
}

// positionalArgs returns a call's arguments without trailing "name: value"
// struct initialisers.
func positionalArgs(call *syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, arg := range call.ChildByField(syntax.FieldArgs).ChildrenByField(syntax.FieldElement) {
		if !arg.Is(syntax.KindFieldInit) {
			out = append(out, arg)
		}
	}
	return out
}

// paramAt is the type the i-th argument binds to; arguments past a
// variadic parameter bind to its element type.
func paramAt(sig *types.Type, i int) *types.Type {
	if sig == nil || i < 0 {
		return nil
	}
	n := len(sig.Params)
	if sig.Variadic && n > 0 && i >= n-1 {
		if last := sig.Params[n-1]; last != nil {
			return last.Elem
		}
		return nil
	}
	if i < n {
		return sig.Params[i]
	}
	return nil
}

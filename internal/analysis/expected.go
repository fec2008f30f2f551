package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

func (p *pass) expected(n *syntax.Node) *types.Type {
	return guard(p, keyExpected, n, &p.a.memo.expected, func() *types.Type {
		return p.expectedFrom(n)
	})
}

// expectedFrom reads the expected type off n's parent. Parentheses and
// mut/shared markers are transparent; composite literals forward the
// context of the literal to their elements.
func (p *pass) expectedFrom(n *syntax.Node) *types.Type {
	parent := n.Parent
	if parent == nil {
		return nil
	}
	switch parent.Kind {
	case syntax.KindParen:
		return p.expected(parent)

	case syntax.KindUnary:
		if parent.Text == "mut" || parent.Text == "shared" {
			return p.expected(parent)
		}

	case syntax.KindFieldInit:
		if n.Field != syntax.FieldValue {
			return nil
		}
		if d, holder := p.initField(parent); d != nil {
			return p.memberType(holder, d)
		}

	case syntax.KindStructLit:
		if n.Field == syntax.FieldElement {
			return p.positionalField(parent, n)
		}

	case syntax.KindFieldDecl:
		if n.Field == syntax.FieldDefault {
			return p.semantic(parent.ChildByField(syntax.FieldType))
		}

	case syntax.KindGlobalSpec:
		if n.Field == syntax.FieldValue {
			return p.semantic(parent.ChildByField(syntax.FieldType))
		}

	case syntax.KindBinary:
		if n.Field != syntax.FieldRight || parent.Text == "is" || parent.Text == "!is" {
			return nil
		}
		left := p.typeOf(parent.ChildByField(syntax.FieldLeft))
		if u := types.Underlying(left); u.Is(types.KindArray) {
			return u.Elem
		}
		return left

	case syntax.KindAssign:
		lefts := parent.ChildrenByField(syntax.FieldLeft)
		rights := parent.ChildrenByField(syntax.FieldRight)
		if n.Field != syntax.FieldRight || len(lefts) != 1 || len(rights) != 1 {
			return nil
		}
		return p.typeOf(lefts[0])

	case syntax.KindMatchArm:
		if n.Field == syntax.FieldPattern {
			return p.typeOf(parent.Parent.ChildByField(syntax.FieldCond))
		}

	case syntax.KindRange:
		if parent.Parent.Is(syntax.KindMatchArm) {
			return p.expected(parent)
		}

	case syntax.KindArgList:
		if n.Field != syntax.FieldElement || n.Is(syntax.KindFieldInit) {
			return nil
		}
		return paramAt(p.signature(parent.Parent), positionalIndex(parent, n))

	case syntax.KindArrayLit:
		if n.Field != syntax.FieldElement {
			return nil
		}
		if ctx := types.Underlying(p.literalContext(parent)); ctx.Is(types.KindArray) || ctx.Is(types.KindFixedArray) {
			return ctx.Elem
		}
		if first := parent.ChildByField(syntax.FieldElement); first != n {
			return p.typeOf(first)
		}

	case syntax.KindKeyValue:
		ctx := types.Underlying(p.literalContext(parent.Parent))
		if !ctx.Is(types.KindMap) {
			return nil
		}
		if n.Field == syntax.FieldKey {
			return ctx.Key
		}
		return ctx.Elem

	case syntax.KindReturn:
		return p.returnSlot(parent, n)

	case syntax.KindIndex:
		if n.Field != syntax.FieldIndex {
			return nil
		}
		base := types.Underlying(p.typeOf(parent.ChildByField(syntax.FieldOperand)))
		switch {
		case base.Is(types.KindMap):
			return base.Key
		case base.Is(types.KindArray), base.Is(types.KindFixedArray):
			return types.Int
		}

	case syntax.KindIf, syntax.KindFor:
		if n.Field == syntax.FieldCond && n.Kind.IsExpr() {
			return types.Bool
		}
	}
	return nil
}

// literalContext is the type a composite literal is known to have: its
// own type annotation, or what its parent expects.
func (p *pass) literalContext(lit *syntax.Node) *types.Type {
	if typ := lit.ChildByField(syntax.FieldType); typ != nil {
		return p.semantic(typ)
	}
	return p.expected(lit)
}

// expectedElem is the element type of an untyped array literal: the
// element of its context, else the type of its first element.
func (p *pass) expectedElem(lit *syntax.Node) *types.Type {
	if ctx := types.Underlying(p.literalContext(lit)); ctx.Is(types.KindArray) || ctx.Is(types.KindFixedArray) {
		return ctx.Elem
	}
	if first := lit.ChildByField(syntax.FieldElement); first != nil {
		return p.typeOf(first)
	}
	return nil
}

func positionalIndex(args, arg *syntax.Node) int {
	i := 0
	for _, c := range args.ChildrenByField(syntax.FieldElement) {
		if c == arg {
			return i
		}
		if !c.Is(syntax.KindFieldInit) {
			i++
		}
	}
	return -1
}

// positionalField types the i-th value of "Point{1, 2}".
func (p *pass) positionalField(lit, value *syntax.Node) *types.Type {
	if value.Is(syntax.KindFieldInit) {
		return nil
	}
	holder := types.Deref(p.typeOf(lit))
	if !holder.Is(types.KindStruct) {
		return nil
	}
	i := positionalIndex(lit, value)
	for _, m := range p.a.table.Members(holder.Decl) {
		if m.Kind != symbols.KindField || m.Embedded {
			continue
		}
		if i == 0 {
			return p.memberType(holder, m)
		}
		i--
	}
	return nil
}

// returnSlot is the declared result of the enclosing function, or one
// element of it for multi-value returns.
func (p *pass) returnSlot(ret, value *syntax.Node) *types.Type {
	fn := value.Ancestor(syntax.KindFnDecl, syntax.KindFnLit)
	if fn == nil {
		return nil
	}
	result := p.semantic(fn.ChildByField(syntax.FieldResult))
	values := ret.ChildrenByField(syntax.FieldValue)
	if len(values) < 2 {
		return result
	}
	tuple := types.UnwrapOptionalOrResultIf(result, true)
	if i := value.IndexInField(); tuple.Is(types.KindTuple) && i < len(tuple.Args) {
		return tuple.Args[i]
	}
	return nil
}

// expectedArg is the expected type of the i-th positional argument of call,
// for a caret in an argument slot that holds no expression yet.
func (p *pass) expectedArg(call *syntax.Node, i int) *types.Type {
	return paramAt(p.signature(call), i)
}

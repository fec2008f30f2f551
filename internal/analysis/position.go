package analysis

import (
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
	"github.com/jward/vsense/internal/types"
)

// ReferenceAt returns the reference node under offset in f: an identifier,
// a label reference, or nil.
func ReferenceAt(f *syntax.File, offset int) *syntax.Node {
	n := f.Root.NodeAt(offset)
	switch {
	case n.Is(syntax.KindIdent, syntax.KindLabelRef):
		return n
	case n.Is(syntax.KindEnumShorthand, syntax.KindImportSymbol, syntax.KindNamedType):
		return n.ChildByField(syntax.FieldName)
	case n.Is(syntax.KindSelector):
		return n.ChildByField(syntax.FieldMember)
	}
	return nil
}

// DefinitionAt resolves the reference under offset in f.
func (a *Analyzer) DefinitionAt(f *syntax.File, offset int) []*symbols.Declaration {
	ref := ReferenceAt(f, offset)
	if ref == nil {
		return nil
	}
	return a.Resolve(ref)
}

// TypeAt returns the type of whatever is under offset in f: a declared
// name, a type expression, or the innermost enclosing expression.
func (a *Analyzer) TypeAt(f *syntax.File, offset int) *types.Type {
	p := a.pass()
	for n := f.Root.NodeAt(offset); n != nil; n = n.Parent {
		switch {
		case n.Is(syntax.KindIdent):
			parent := n.Parent
			if d := p.declaredBy(n); d != nil {
				return p.declType(d)
			}
			switch {
			case parent.Is(syntax.KindNamedType):
				return p.semantic(parent)
			case parent.Is(syntax.KindSelector) && n.Field == syntax.FieldMember,
				parent.Is(syntax.KindEnumShorthand):
				return p.typeOf(parent)
			case parent.Is(syntax.KindFieldInit) && n.Field == syntax.FieldName:
				if d, holder := p.initField(parent); d != nil {
					return p.memberType(holder, d)
				}
				return nil
			}
			return p.typeOf(n)
		case n.Kind.IsType():
			return p.semantic(n)
		case n.Is(syntax.KindArgList, syntax.KindMatchArm, syntax.KindKeyValue, syntax.KindLabelRef):
			continue
		case n.Kind.IsExpr():
			return p.typeOf(n)
		}
	}
	return nil
}

// ExpectedAt returns the type expected at offset in f. A caret in an
// argument list but outside every argument gets the parameter type of the
// slot it sits in. An open slot of an array literal expects the element
// type, and one of a map literal expects the key type.
func (a *Analyzer) ExpectedAt(f *syntax.File, offset int) *types.Type {
	p := a.pass()
	n := f.Root.NodeAt(offset)
	switch {
	case n.Is(syntax.KindArgList):
		i := 0
		for _, arg := range n.ChildrenByField(syntax.FieldElement) {
			if arg.Span.End <= offset && !arg.Is(syntax.KindFieldInit) {
				i++
			}
		}
		return p.expectedArg(n.Parent, i)
	case n.Is(syntax.KindArrayLit) && n.ChildByField(syntax.FieldType) == nil && inBody(n, offset):
		return p.expectedElem(n)
	case n.Is(syntax.KindMapLit) && inBody(n, offset):
		if ctx := types.Underlying(p.literalContext(n)); ctx.Is(types.KindMap) {
			return ctx.Key
		}
		return nil
	}
	for n != nil && !n.Kind.IsExpr() && !n.Is(syntax.KindError) {
		n = n.Parent
	}
	for n != nil && n.Parent != nil {
		parent := n.Parent
		operand := n.Field == syntax.FieldOperand || n.Field == syntax.FieldMember
		if operand && parent.Is(syntax.KindSelector, syntax.KindCall, syntax.KindIndex, syntax.KindGenericInst,
			syntax.KindPropagate, syntax.KindOr, syntax.KindAsCast) ||
			parent.Is(syntax.KindEnumShorthand) || parent.Kind.IsType() ||
			parent.Is(syntax.KindStructLit) && n.Field == syntax.FieldType {
			n = parent
			continue
		}
		break
	}
	return p.expected(n)
}

// inBody reports whether offset lies between the brackets of a composite
// literal, after any type annotation.
func inBody(lit *syntax.Node, offset int) bool {
	start := lit.Span.Start
	if typ := lit.ChildByField(syntax.FieldType); typ != nil {
		start = typ.Span.End
	}
	end := lit.Span.End - 1
	if lit.Has(syntax.FlagGated) {
		end--
	}
	return start < offset && offset <= end
}

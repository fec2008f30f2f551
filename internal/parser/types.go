package parser

import (
	"strings"
	"unicode"

	"github.com/jward/vsense/internal/syntax"
)

// startsType reports whether the next token can begin a type expression.
func (p *Parser) startsType() bool {
	t := p.next()
	if t.Kind == IDENT {
		return true
	}
	for _, s := range []string{"&", "&&", "[", "?", "!", "fn", "(", "...", "shared"} {
		if t.Is(s) {
			return true
		}
	}
	return false
}

// parseType parses a type expression. It returns nil without consuming
// anything when the next token cannot start a type.
func (p *Parser) parseType() *syntax.Node {
	t := p.next()
	switch {
	case t.Is("&"):
		p.advance()
		n := p.node(syntax.KindPointerType, t)
		n.Append(syntax.FieldElement, p.parseType())
		return p.finish(n)

	case t.Is("&&"):
		p.advance()
		outer := p.node(syntax.KindPointerType, t)
		inner := p.node(syntax.KindPointerType, t)
		inner.Append(syntax.FieldElement, p.parseType())
		outer.Append(syntax.FieldElement, p.finish(inner))
		return p.finish(outer)

	case t.Is("shared"):
		p.advance()
		n := p.parseType()
		if n != nil {
			n.Flags |= syntax.FlagShared
		}
		return n

	case t.Is("..."):
		p.advance()
		n := p.node(syntax.KindArrayType, t)
		n.Flags |= syntax.FlagVariadic
		n.Append(syntax.FieldElement, p.parseType())
		return p.finish(n)

	case t.Is("?"), t.Is("!"):
		p.advance()
		kind := syntax.KindOptionType
		if t.Is("!") {
			kind = syntax.KindResultType
		}
		n := p.node(kind, t)
		if !p.next().SpaceBefore && p.startsType() {
			n.Append(syntax.FieldElement, p.parseType())
		}
		return p.finish(n)

	case t.Is("["):
		p.advance()
		if p.accept("]") {
			n := p.node(syntax.KindArrayType, t)
			n.Append(syntax.FieldElement, p.parseType())
			return p.finish(n)
		}
		n := p.node(syntax.KindFixedArrayType, t)
		n.Append(syntax.FieldSize, p.nested(p.parseExpr))
		p.expect("]")
		n.Append(syntax.FieldElement, p.parseType())
		return p.finish(n)

	case t.Is("fn"):
		p.advance()
		n := p.node(syntax.KindFnType, t)
		n.Append(syntax.FieldParams, p.parseParams())
		if p.sameLine() && p.startsType() && !p.at("(") {
			n.Append(syntax.FieldResult, p.parseType())
		}
		return p.finish(n)

	case t.Is("("):
		p.advance()
		n := p.node(syntax.KindTupleType, t)
		for !p.at(")") && p.next().Kind != EOF {
			elem := p.parseType()
			if elem == nil {
				p.errorf(p.next(), "expected type, found %s", p.next())
				p.advance()
				continue
			}
			n.Append(syntax.FieldElement, elem)
			p.accept(",")
		}
		p.expect(")")
		return p.finish(n)

	case t.Kind == IDENT && t.Text == "map" && p.peek(1).Is("[") && !p.peek(1).SpaceBefore:
		p.advance()
		p.advance()
		n := p.node(syntax.KindMapType, t)
		n.Append(syntax.FieldKey, p.parseType())
		p.expect("]")
		n.Append(syntax.FieldValue, p.parseType())
		return p.finish(n)

	case t.Kind == IDENT:
		return p.parseNamedType()
	}
	p.errorf(t, "expected type, found %s", t)
	return nil
}

// parseNamedType parses "Name", "mod.Name" and "Name[T, U]".
func (p *Parser) parseNamedType() *syntax.Node {
	start := p.next()
	n := p.node(syntax.KindNamedType, start)
	first := p.ident(syntax.FieldName)
	if p.at(".") && p.peek(1).Kind == IDENT && !p.peek(1).SpaceBefore {
		p.advance()
		n.Append(syntax.FieldQualifier, first)
		first.Field = syntax.FieldQualifier
		name := p.ident(syntax.FieldName)
		n.Append(syntax.FieldName, name)
		n.Text = first.Text + "." + name.Text
	} else {
		n.Append(syntax.FieldName, first)
		n.Text = first.Text
	}
	if p.at("[") && !p.next().SpaceBefore && !p.next().NewlineBefore {
		p.advance()
		for !p.at("]") && p.next().Kind != EOF {
			arg := p.parseType()
			if arg == nil {
				p.advance()
				continue
			}
			n.Append(syntax.FieldTypeArg, arg)
			p.accept(",")
		}
		p.expect("]")
	}
	return p.finish(n)
}

// looksLikeTypeArg reports whether a parsed type is plausible as an explicit
// generic argument rather than an index expression.
func looksLikeTypeArg(n *syntax.Node) bool {
	if n == nil {
		return false
	}
	if n.Kind != syntax.KindNamedType {
		return n.Kind.IsType()
	}
	name := n.Text
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if syntax.IsPrimitive(name) || name == "map" {
		return true
	}
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func isUpperName(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

package parser

import (
	"github.com/jward/vsense/internal/syntax"
)

func (p *Parser) parseBlock() *syntax.Node {
	n := p.node(syntax.KindBlock, p.next())
	if !p.expect("{") {
		return n
	}
	saved := p.noStructLit
	p.noStructLit = 0
	for !p.at("}") && p.next().Kind != EOF {
		before := p.index
		if stmt := p.parseStmt(); stmt != nil {
			n.Append(syntax.FieldStatement, stmt)
		}
		if p.accept(";") || p.at("}") || p.next().NewlineBefore || p.next().Kind == EOF {
			if p.index > before {
				continue
			}
		}
		p.recoverStmt(n, before)
	}
	p.noStructLit = saved
	p.expect("}")
	return p.finish(n)
}

// recoverStmt skips the rest of a malformed statement line.
func (p *Parser) recoverStmt(block *syntax.Node, before int) {
	start := p.next()
	if p.index == before {
		p.errorf(start, "unexpected %s", start)
	} else {
		p.errorf(start, "expected end of statement, found %s", start)
	}
	bad := p.node(syntax.KindError, start)
	depth := 0
	for p.next().Kind != EOF {
		t := p.next()
		if depth == 0 && (t.Is("}") || (t.NewlineBefore && p.index > before && t != start)) {
			break
		}
		switch {
		case t.Is("{") || t.Is("(") || t.Is("["):
			depth++
		case (t.Is("}") || t.Is(")") || t.Is("]")) && depth > 0:
			depth--
		}
		p.advance()
	}
	if p.index > before {
		block.Append(syntax.FieldStatement, p.finish(bad))
	}
}

func (p *Parser) parseStmt() *syntax.Node {
	t := p.next()
	switch {
	case t.Is("return"):
		p.advance()
		n := p.node(syntax.KindReturn, t)
		if p.sameLine() && !p.at("}") {
			for {
				n.Append(syntax.FieldValue, p.parseExpr())
				if !p.accept(",") {
					break
				}
			}
		}
		return p.finish(n)

	case t.Is("for"):
		return p.parseFor()

	case t.Is("break"), t.Is("continue"), t.Is("goto"):
		p.advance()
		n := p.node(syntax.KindBranch, t)
		n.Text = t.Text
		if p.next().Kind == IDENT && p.sameLine() {
			lt := p.advance()
			label := p.node(syntax.KindLabelRef, lt)
			label.Text = lt.Text
			n.Append(syntax.FieldLabel, label)
		}
		return p.finish(n)

	case t.Is("defer"):
		p.advance()
		n := p.node(syntax.KindDefer, t)
		n.Append(syntax.FieldBody, p.parseBlock())
		return p.finish(n)

	case t.Is("{"):
		return p.parseBlock()

	case t.Kind == IDENT && p.peek(1).Is(":"):
		p.advance()
		p.advance()
		n := p.node(syntax.KindLabeled, t)
		name := p.node(syntax.KindIdent, t)
		name.Text = t.Text
		n.Append(syntax.FieldName, name)
		if p.at("for") {
			n.Append(syntax.FieldStatement, p.parseFor())
		} else if p.sameLine() && !p.at("}") {
			n.Append(syntax.FieldStatement, p.parseStmt())
		}
		return p.finish(n)

	case t.Kind == IDENT && t.Text == "assert" && p.sameLineAfter(1):
		p.advance()
		n := p.node(syntax.KindExprStmt, t)
		n.Append(syntax.FieldValue, p.parseExpr())
		return p.finish(n)

	case t.Is("const"), t.Is("fn") && p.peek(1).Kind == IDENT:
		p.errorf(t, "unexpected declaration inside a block")
		return nil
	}
	return p.parseSimpleStmt()
}

func (p *Parser) sameLineAfter(ahead int) bool {
	next := p.peek(ahead)
	return !next.NewlineBefore && next.Kind != EOF && !next.Is("(") && !next.Is(":=") && !next.Is("=")
}

// parseSimpleStmt parses declarations, assignments, inc/dec and bare
// expressions.
func (p *Parser) parseSimpleStmt() *syntax.Node {
	start := p.next()
	var lhs []*syntax.Node
	for {
		mut := p.accept("mut")
		e := p.parseExpr()
		if mut {
			e.Flags |= syntax.FlagMut
		}
		lhs = append(lhs, e)
		if !p.at(",") {
			break
		}
		p.advance()
	}

	t := p.next()
	switch {
	case t.Is(":="):
		p.advance()
		n := p.node(syntax.KindVarDecl, start)
		for _, e := range lhs {
			if !e.Is(syntax.KindIdent) {
				p.errorf(start, "expected identifier on the left of :=")
				continue
			}
			if e.Has(syntax.FlagMut) {
				n.Flags |= syntax.FlagMut
			}
			n.Append(syntax.FieldName, e)
		}
		p.valueList(n, syntax.FieldValue)
		return p.finish(n)

	case isAssignOp(t):
		p.advance()
		n := p.node(syntax.KindAssign, start)
		n.Text = t.Text
		for _, e := range lhs {
			n.Append(syntax.FieldLeft, e)
		}
		p.valueList(n, syntax.FieldRight)
		return p.finish(n)

	case (t.Is("++") || t.Is("--")) && len(lhs) == 1:
		p.advance()
		n := p.node(syntax.KindIncDec, start)
		n.Text = t.Text
		n.Append(syntax.FieldOperand, lhs[0])
		return p.finish(n)
	}

	n := p.node(syntax.KindExprStmt, start)
	for _, e := range lhs {
		n.Append(syntax.FieldValue, e)
	}
	return p.finish(n)
}

func (p *Parser) valueList(n *syntax.Node, field string) {
	for {
		if p.at(",") || p.at("}") || p.at(";") || !p.sameLine() {
			n.Append(field, p.missing())
		} else {
			n.Append(field, p.parseExpr())
		}
		if !p.accept(",") {
			return
		}
	}
}

func isAssignOp(t Token) bool {
	if t.Kind != PUNCT {
		return false
	}
	switch t.Text {
	case "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=":
		return true
	}
	return false
}

// parseFor parses every loop form: "for {", "for cond {", C-style
// "for init; cond; post {" and "for k, v in xs {".
func (p *Parser) parseFor() *syntax.Node {
	t := p.advance()
	if p.isForIn() {
		return p.parseForIn(t)
	}
	n := p.node(syntax.KindFor, t)
	if p.at("{") {
		n.Append(syntax.FieldBody, p.parseBlock())
		return p.finish(n)
	}
	p.condition(func() *syntax.Node {
		var first *syntax.Node
		if !p.at(";") {
			first = p.parseSimpleStmt()
		}
		if !p.accept(";") {
			if first != nil && first.Is(syntax.KindExprStmt) {
				n.Append(syntax.FieldCond, first.ChildByField(syntax.FieldValue))
			} else {
				n.Append(syntax.FieldCond, first)
			}
			return nil
		}
		n.Append(syntax.FieldInit, first)
		if !p.at(";") {
			n.Append(syntax.FieldCond, p.parseExpr())
		}
		p.expect(";")
		if !p.at("{") {
			n.Append(syntax.FieldPost, p.parseSimpleStmt())
		}
		return nil
	})
	n.Append(syntax.FieldBody, p.parseBlock())
	return p.finish(n)
}

// isForIn looks ahead for "[mut] a [, [mut] b] in".
func (p *Parser) isForIn() bool {
	i := 0
	for n := 0; n < 2; n++ {
		if p.peek(i).Is("mut") {
			i++
		}
		if p.peek(i).Kind != IDENT {
			return false
		}
		i++
		if p.peek(i).Is("in") {
			return true
		}
		if !p.peek(i).Is(",") {
			return false
		}
		i++
	}
	return false
}

func (p *Parser) parseForIn(t Token) *syntax.Node {
	n := p.node(syntax.KindForIn, t)
	var vars []*syntax.Node
	for !p.at("in") && p.next().Kind != EOF {
		mut := p.accept("mut")
		v := p.ident(syntax.FieldIterValue)
		if v == nil {
			break
		}
		if mut {
			v.Flags |= syntax.FlagMut
		}
		vars = append(vars, v)
		p.accept(",")
	}
	p.expect("in")
	if len(vars) == 2 {
		n.Append(syntax.FieldKey, vars[0])
		n.Append(syntax.FieldIterValue, vars[1])
	} else if len(vars) == 1 {
		n.Append(syntax.FieldIterValue, vars[0])
	}
	n.Append(syntax.FieldValue, p.condition(func() *syntax.Node {
		low := p.parseExpr()
		if !p.at("..") {
			return low
		}
		p.advance()
		r := &syntax.Node{Kind: syntax.KindRange, Span: low.Span}
		r.Append(syntax.FieldLeft, low)
		r.Append(syntax.FieldRight, p.parseExpr())
		return p.finish(r)
	}))
	n.Append(syntax.FieldBody, p.parseBlock())
	return p.finish(n)
}

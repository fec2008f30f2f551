package parser

import (
	"github.com/jward/vsense/internal/syntax"
)

// Binary operator precedence, loosest first.
func binaryPrec(t Token) int {
	if t.Kind != PUNCT && t.Kind != KEYWORD {
		return 0
	}
	switch t.Text {
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=", "<", "<=", ">", ">=", "in", "!in", "is", "!is":
		return 3
	case "+", "-", "|", "^":
		return 4
	case "*", "/", "%", "<<", ">>", "&":
		return 5
	}
	return 0
}

// nested parses with struct literals re-enabled, as inside brackets.
func (p *Parser) nested(parse func() *syntax.Node) *syntax.Node {
	saved := p.noStructLit
	p.noStructLit = 0
	defer func() { p.noStructLit = saved }()
	return parse()
}

// condition parses an expression where "Name {" starts a block.
func (p *Parser) condition(parse func() *syntax.Node) *syntax.Node {
	p.noStructLit++
	defer func() { p.noStructLit-- }()
	return parse()
}

// missing returns an empty error node covering the gap before the next
// token, so a caret placed inside the gap still lands on a node.
func (p *Parser) missing() *syntax.Node {
	prev, next := p.prev(), p.next()
	p.errorf(next, "expected expression, found %s", next)
	n := &syntax.Node{Kind: syntax.KindError}
	n.Span.Start, n.Span.StartPos = prev.End, endPoint(prev)
	if p.index == 0 {
		n.Span.Start, n.Span.StartPos = next.Offset, pointOf(next.Line, next.Col)
	}
	n.Span.End, n.Span.EndPos = next.Offset, pointOf(next.Line, next.Col)
	return n
}

// wrap starts a postfix node around operand.
func wrap(kind syntax.Kind, operand *syntax.Node) *syntax.Node {
	n := &syntax.Node{Kind: kind, Span: operand.Span}
	n.Append(syntax.FieldOperand, operand)
	return n
}

func (p *Parser) parseExpr() *syntax.Node {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) *syntax.Node {
	left := p.parseUnary()
	for {
		t := p.next()
		prec := binaryPrec(t)
		if prec == 0 || prec < minPrec {
			return left
		}
		if t.NewlineBefore && !t.Is("&&") && !t.Is("||") {
			return left
		}
		p.advance()
		n := &syntax.Node{Kind: syntax.KindBinary, Text: t.Text, Span: left.Span}
		n.Append(syntax.FieldLeft, left)
		if t.Is("is") || t.Is("!is") {
			if typ := p.parseType(); typ != nil {
				n.Append(syntax.FieldRight, typ)
			} else {
				n.Append(syntax.FieldRight, p.missing())
			}
		} else if p.next().NewlineBefore && !t.Is("&&") && !t.Is("||") {
			// "nums << " at the end of a line: the operand is still to be typed.
			n.Append(syntax.FieldRight, p.missing())
		} else {
			n.Append(syntax.FieldRight, p.parseBinary(prec+1))
		}
		left = p.finish(n)
	}
}

func (p *Parser) parseUnary() *syntax.Node {
	t := p.next()
	switch {
	case t.Is("-"), t.Is("!"), t.Is("~"), t.Is("&"), t.Is("*"), t.Is("<-"), t.Is("go"), t.Is("spawn"), t.Is("mut"), t.Is("shared"):
		p.advance()
		n := p.node(syntax.KindUnary, t)
		n.Text = t.Text
		n.Append(syntax.FieldOperand, p.parseUnary())
		return p.finish(n)
	case t.Is("&&"):
		// "&&x" is a pointer to a pointer.
		p.advance()
		outer := p.node(syntax.KindUnary, t)
		outer.Text = "&"
		inner := p.node(syntax.KindUnary, t)
		inner.Text = "&"
		inner.Append(syntax.FieldOperand, p.parseUnary())
		outer.Append(syntax.FieldOperand, p.finish(inner))
		return p.finish(outer)
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(operand *syntax.Node) *syntax.Node {
	for {
		t := p.next()
		switch {
		case t.Is(".") && p.peek(1).Kind == IDENT:
			p.advance()
			n := wrap(syntax.KindSelector, operand)
			n.Append(syntax.FieldMember, p.ident(syntax.FieldMember))
			operand = p.finish(n)

		case t.Is("(") && !t.NewlineBefore:
			n := wrap(syntax.KindCall, operand)
			n.Append(syntax.FieldArgs, p.parseArgs())
			operand = p.finish(n)

		case (t.Is("[") || t.Is("#[")) && !t.NewlineBefore:
			if t.Is("[") && !t.SpaceBefore && operand.Is(syntax.KindIdent, syntax.KindSelector) {
				if inst := p.tryGenericInst(operand); inst != nil {
					operand = inst
					continue
				}
			}
			operand = p.parseIndex(operand)

		case (t.Is("?") || t.Is("!")) && !t.SpaceBefore:
			p.advance()
			n := wrap(syntax.KindPropagate, operand)
			n.Text = t.Text
			if t.Is("?") {
				n.Flags |= syntax.FlagOption
			} else {
				n.Flags |= syntax.FlagResult
			}
			operand = p.finish(n)

		case t.Is("or") && p.peek(1).Is("{"):
			p.advance()
			n := wrap(syntax.KindOr, operand)
			n.Append(syntax.FieldOrBlock, p.parseBlock())
			operand = p.finish(n)

		case t.Is("as") && !t.NewlineBefore:
			p.advance()
			n := wrap(syntax.KindAsCast, operand)
			n.Append(syntax.FieldType, p.parseType())
			operand = p.finish(n)

		default:
			return operand
		}
	}
}

// tryGenericInst parses "f[int, T]" when it is followed by a call or a
// struct literal body; otherwise it rewinds and returns nil.
func (p *Parser) tryGenericInst(operand *syntax.Node) *syntax.Node {
	save, saveErrs := p.index, len(p.errs)
	p.advance()
	n := wrap(syntax.KindGenericInst, operand)
	ok := true
	for !p.at("]") && p.next().Kind != EOF {
		arg := p.parseType()
		if !looksLikeTypeArg(arg) {
			ok = false
			break
		}
		n.Append(syntax.FieldTypeArg, arg)
		if !p.accept(",") && !p.at("]") {
			ok = false
			break
		}
	}
	ok = ok && len(n.ChildrenByField(syntax.FieldTypeArg)) > 0 && p.accept("]") && len(p.errs) == saveErrs
	ok = ok && !p.next().SpaceBefore && (p.at("(") || (p.at("{") && p.noStructLit == 0))
	if !ok {
		p.index = save
		p.errs = p.errs[:saveErrs]
		return nil
	}
	return p.finish(n)
}

func (p *Parser) parseIndex(operand *syntax.Node) *syntax.Node {
	t := p.advance()
	n := wrap(syntax.KindIndex, operand)
	if t.Is("#[") {
		n.Flags |= syntax.FlagGated
	}
	p.nested(func() *syntax.Node {
		start := p.next()
		var low *syntax.Node
		if !p.at("..") {
			low = p.parseExpr()
		}
		if p.at("..") {
			n.Flags |= syntax.FlagSlice
			p.advance()
			r := p.node(syntax.KindRange, start)
			if low != nil {
				spanFrom(r, low)
			}
			r.Append(syntax.FieldLeft, low)
			if !p.at("]") {
				r.Append(syntax.FieldRight, p.parseExpr())
			}
			n.Append(syntax.FieldIndex, p.finish(r))
		} else {
			n.Append(syntax.FieldIndex, low)
		}
		return nil
	})
	p.expect("]")
	return p.finish(n)
}

// parseArgs parses "(a, mut b, name: c)".
func (p *Parser) parseArgs() *syntax.Node {
	n := p.node(syntax.KindArgList, p.advance())
	p.nested(func() *syntax.Node {
		for !p.at(")") && p.next().Kind != EOF {
			before := p.index
			if p.next().Kind == IDENT && p.peek(1).Is(":") {
				n.Append(syntax.FieldElement, p.parseFieldInit())
			} else {
				n.Append(syntax.FieldElement, p.parseExpr())
			}
			if !p.accept(",") && !p.at(")") {
				if p.index == before {
					p.advance()
				} else if !p.next().NewlineBefore {
					p.errorf(p.next(), "expected ',' or ')' in argument list, found %s", p.next())
					p.advance()
				}
			}
		}
		return nil
	})
	p.expect(")")
	return p.finish(n)
}

func (p *Parser) parsePrimary() *syntax.Node {
	t := p.next()
	switch {
	case t.Kind == INT:
		return p.literal(syntax.KindIntLit)
	case t.Kind == FLOAT:
		return p.literal(syntax.KindFloatLit)
	case t.Kind == STRING:
		return p.literal(syntax.KindStringLit)
	case t.Kind == CHAR:
		return p.literal(syntax.KindCharLit)
	case t.Is("true"), t.Is("false"):
		return p.literal(syntax.KindBoolLit)
	case t.Is("none"):
		return p.literal(syntax.KindNoneLit)

	case t.Kind == IDENT:
		if t.Text == "map" && p.peek(1).Is("[") && !p.peek(1).SpaceBefore {
			return p.parseTypedLiteral(syntax.KindMapLit)
		}
		if lit := p.tryStructLit(); lit != nil {
			return lit
		}
		p.advance()
		n := p.node(syntax.KindIdent, t)
		n.Text = t.Text
		return n

	case t.Is("("):
		p.advance()
		n := p.node(syntax.KindParen, t)
		n.Append(syntax.FieldOperand, p.nested(p.parseExpr))
		p.expect(")")
		return p.finish(n)

	case t.Is("["):
		if p.peek(1).Is("]") && !p.peek(2).SpaceBefore && (p.peek(2).Kind == IDENT || p.peek(2).Is("[") || p.peek(2).Is("&") || p.peek(2).Is("?")) {
			return p.parseTypedLiteral(syntax.KindArrayLit)
		}
		return p.parseArrayLit()

	case t.Is("{"):
		return p.parseMapBody(p.node(syntax.KindMapLit, t))

	case t.Is(".") && p.peek(1).Kind == IDENT:
		p.advance()
		n := p.node(syntax.KindEnumShorthand, t)
		name := p.ident(syntax.FieldName)
		n.Text = name.Text
		n.Append(syntax.FieldName, name)
		return p.finish(n)

	case t.Is("fn"):
		return p.parseFnLit()
	case t.Is("match"):
		return p.parseMatch()
	case t.Is("if"):
		return p.parseIf()
	case t.Is("unsafe") && p.peek(1).Is("{"):
		p.advance()
		return p.parseBlock()
	}
	return p.missing()
}

func (p *Parser) literal(kind syntax.Kind) *syntax.Node {
	t := p.advance()
	n := p.node(kind, t)
	n.Text = t.Text
	return n
}

// tryStructLit parses "Name{...}", "mod.Name{...}" or "Name[T]{...}" when
// struct literals are allowed here; otherwise it rewinds and returns nil.
func (p *Parser) tryStructLit() *syntax.Node {
	if p.noStructLit > 0 {
		return nil
	}
	t := p.next()
	qualified := p.peek(1).Is(".") && p.peek(2).Kind == IDENT
	if !isUpperName(t.Text) && !(qualified && isUpperName(p.peek(2).Text)) {
		return nil
	}
	save, saveErrs := p.index, len(p.errs)
	typ := p.parseNamedType()
	if len(p.errs) != saveErrs || !p.at("{") || !isUpperName(typ.Text) {
		p.index = save
		p.errs = p.errs[:saveErrs]
		return nil
	}
	n := p.node(syntax.KindStructLit, t)
	n.Append(syntax.FieldType, typ)
	p.parseInitBody(n)
	return p.finish(n)
}

// parseInitBody parses "{ a: 1, b: 2 }" or "{ 1, 2 }" into n.
func (p *Parser) parseInitBody(n *syntax.Node) {
	p.expect("{")
	p.nested(func() *syntax.Node {
		for !p.at("}") && p.next().Kind != EOF {
			before := p.index
			switch {
			case p.next().Kind == IDENT && p.peek(1).Is(":"):
				n.Append(syntax.FieldElement, p.parseFieldInit())
			case p.at("..."):
				t := p.advance()
				spread := p.node(syntax.KindUnary, t)
				spread.Text = t.Text
				spread.Append(syntax.FieldOperand, p.parseExpr())
				n.Append(syntax.FieldElement, p.finish(spread))
			default:
				n.Append(syntax.FieldElement, p.parseExpr())
			}
			p.accept(",")
			p.accept(";")
			if p.index == before {
				p.advance()
			}
		}
		return nil
	})
	p.expect("}")
}

func (p *Parser) parseFieldInit() *syntax.Node {
	t := p.next()
	n := p.node(syntax.KindFieldInit, t)
	name := p.ident(syntax.FieldName)
	n.Text = name.Text
	n.Append(syntax.FieldName, name)
	p.expect(":")
	if p.at(",") || p.at("}") || p.at(")") || p.next().NewlineBefore {
		n.Append(syntax.FieldValue, p.missing())
	} else {
		n.Append(syntax.FieldValue, p.parseExpr())
	}
	return p.finish(n)
}

// parseTypedLiteral parses "[]int{len: 3}" and "map[string]int{}".
func (p *Parser) parseTypedLiteral(kind syntax.Kind) *syntax.Node {
	t := p.next()
	n := p.node(kind, t)
	n.Append(syntax.FieldType, p.parseType())
	if !p.at("{") || p.next().SpaceBefore && p.noStructLit > 0 {
		return p.finish(n)
	}
	if kind == syntax.KindMapLit {
		return p.parseMapBody(n)
	}
	p.parseInitBody(n)
	return p.finish(n)
}

func (p *Parser) parseArrayLit() *syntax.Node {
	t := p.advance()
	n := p.node(syntax.KindArrayLit, t)
	p.nested(func() *syntax.Node {
		for !p.at("]") && p.next().Kind != EOF {
			before := p.index
			n.Append(syntax.FieldElement, p.parseExpr())
			p.accept(",")
			if p.index == before {
				p.advance()
			}
		}
		return nil
	})
	p.expect("]")
	// "[1, 2, 3]!" marks a fixed-size array literal.
	if p.at("!") && !p.next().SpaceBefore {
		p.advance()
		n.Flags |= syntax.FlagGated
	}
	return p.finish(n)
}

// parseMapBody parses "{ key: value, ... }" into n.
func (p *Parser) parseMapBody(n *syntax.Node) *syntax.Node {
	p.expect("{")
	p.nested(func() *syntax.Node {
		for !p.at("}") && p.next().Kind != EOF {
			before := p.index
			key := p.parseExpr()
			kv := &syntax.Node{Kind: syntax.KindKeyValue, Span: key.Span}
			kv.Append(syntax.FieldKey, key)
			if p.expect(":") {
				if p.at(",") || p.at("}") || p.next().NewlineBefore {
					kv.Append(syntax.FieldValue, p.missing())
				} else {
					kv.Append(syntax.FieldValue, p.parseExpr())
				}
			}
			n.Append(syntax.FieldElement, p.finish(kv))
			p.accept(",")
			if p.index == before {
				p.advance()
			}
		}
		return nil
	})
	p.expect("}")
	return p.finish(n)
}

func (p *Parser) parseFnLit() *syntax.Node {
	t := p.advance()
	n := p.node(syntax.KindFnLit, t)
	// Capture list "fn [a, mut b] (x int) {".
	if p.at("[") {
		p.advance()
		for !p.at("]") && p.next().Kind != EOF {
			p.advance()
		}
		p.expect("]")
	}
	n.Append(syntax.FieldParams, p.parseParams())
	if p.sameLine() && p.startsType() {
		n.Append(syntax.FieldResult, p.parseType())
	}
	n.Append(syntax.FieldBody, p.nested(p.parseBlock))
	return p.finish(n)
}

func (p *Parser) parseIf() *syntax.Node {
	t := p.advance()
	n := p.node(syntax.KindIf, t)
	n.Append(syntax.FieldCond, p.condition(p.parseIfCond))
	n.Append(syntax.FieldBranchBody, p.parseBlock())
	if p.at("else") {
		p.advance()
		if p.at("if") {
			n.Append(syntax.FieldElse, p.parseIf())
		} else {
			n.Append(syntax.FieldElse, p.parseBlock())
		}
	}
	return p.finish(n)
}

// parseIfCond parses a condition or an "x := opt()" guard.
func (p *Parser) parseIfCond() *syntax.Node {
	if p.next().Kind == IDENT && (p.peek(1).Is(":=") || p.peek(1).Is(",")) || p.at("mut") {
		save, saveErrs := p.index, len(p.errs)
		if stmt := p.parseSimpleStmt(); stmt.Is(syntax.KindVarDecl) {
			return stmt
		}
		p.index = save
		p.errs = p.errs[:saveErrs]
	}
	return p.parseExpr()
}

func (p *Parser) parseMatch() *syntax.Node {
	t := p.advance()
	n := p.node(syntax.KindMatch, t)
	n.Append(syntax.FieldCond, p.condition(p.parseExpr))
	if !p.expect("{") {
		return p.finish(n)
	}
	for !p.at("}") && p.next().Kind != EOF {
		before := p.index
		n.Append(syntax.FieldArm, p.parseMatchArm())
		if p.index == before {
			p.advance()
		}
	}
	p.expect("}")
	return p.finish(n)
}

func (p *Parser) parseMatchArm() *syntax.Node {
	t := p.next()
	arm := p.node(syntax.KindMatchArm, t)
	if p.accept("else") {
		arm.Text = "else"
	} else {
		p.condition(func() *syntax.Node {
			for !p.at("{") && p.next().Kind != EOF {
				before := p.index
				pat := p.parseExpr()
				if p.at("..") || p.at("...") {
					op := p.advance()
					r := &syntax.Node{Kind: syntax.KindRange, Text: op.Text, Span: pat.Span}
					r.Append(syntax.FieldLeft, pat)
					r.Append(syntax.FieldRight, p.parseExpr())
					pat = p.finish(r)
				}
				arm.Append(syntax.FieldPattern, pat)
				if !p.accept(",") {
					if p.index == before {
						p.advance()
					}
					break
				}
			}
			return nil
		})
	}
	arm.Append(syntax.FieldBody, p.parseBlock())
	return p.finish(arm)
}

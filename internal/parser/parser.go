// Package parser is a recursive-descent parser for the subset of V the
// analyser understands. It always returns a tree: malformed regions become
// error nodes and parsing resumes at the next statement or declaration.
package parser

import (
	"fmt"
	"strings"

	"github.com/jward/vsense/internal/syntax"
)

// Error is a positioned parse or scan error.
type Error struct {
	Pos syntax.Point
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line+1, e.Pos.Col+1, e.Msg)
}

func pointOf(line, col int) syntax.Point {
	return syntax.Point{Line: line, Col: col}
}

// ParseFile parses src into a File belonging to module. The returned errors
// describe recoverable problems; the file is never nil.
func ParseFile(path, module string, src []byte) (*syntax.File, []error) {
	tokens, errs := ScanTokens(src)
	p := NewParser(tokens)
	root := p.ParseFile()
	errs = append(errs, p.Errors()...)
	return syntax.NewFile(path, module, src, root), errs
}

// Parser consumes a token slice. Token index access keeps backtracking
// for generic arguments trivial.
type Parser struct {
	tokens []Token
	index  int
	errs   []error

	// noStructLit > 0 while parsing conditions where "Name {" opens a block.
	noStructLit int
}

// NewParser creates a parser over tokens. A trailing EOF is added if missing.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != EOF {
		end := 0
		if len(tokens) > 0 {
			end = tokens[len(tokens)-1].End
		}
		tokens = append(tokens, Token{Kind: EOF, Offset: end, End: end})
	}
	return &Parser{tokens: tokens}
}

// Errors returns the errors collected so far.
func (p *Parser) Errors() []error {
	return p.errs
}

// --- token helpers ---

func (p *Parser) next() Token {
	return p.tokens[p.index]
}

func (p *Parser) peek(ahead int) Token {
	if p.index+ahead >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.index+ahead]
}

func (p *Parser) prev() Token {
	if p.index == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.index-1]
}

func (p *Parser) advance() Token {
	t := p.tokens[p.index]
	if t.Kind != EOF {
		p.index++
	}
	return t
}

func (p *Parser) at(s string) bool {
	return p.next().Is(s)
}

func (p *Parser) accept(s string) bool {
	if p.at(s) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(s string) bool {
	if p.accept(s) {
		return true
	}
	p.errorf(p.next(), "expected %q, found %s", s, p.next())
	return false
}

func (p *Parser) errorf(t Token, format string, args ...any) {
	p.errs = append(p.errs, &Error{Pos: pointOf(t.Line, t.Col), Msg: fmt.Sprintf(format, args...)})
}

// node starts a node at token t.
func (p *Parser) node(kind syntax.Kind, t Token) *syntax.Node {
	return &syntax.Node{
		Kind: kind,
		Span: syntax.Span{
			Start:    t.Offset,
			End:      t.End,
			StartPos: pointOf(t.Line, t.Col),
			EndPos:   pointOf(t.Line, t.Col+len(t.Text)),
		},
	}
}

// finish extends n's span to the end of the last consumed token.
func (p *Parser) finish(n *syntax.Node) *syntax.Node {
	if p.index == 0 {
		return n
	}
	last := p.prev()
	if last.End >= n.Span.End {
		n.Span.End = last.End
		n.Span.EndPos = endPoint(last)
	}
	for _, c := range n.Children {
		if c.Span.End > n.Span.End {
			n.Span.End, n.Span.EndPos = c.Span.End, c.Span.EndPos
		}
	}
	return n
}

func endPoint(t Token) syntax.Point {
	if i := strings.LastIndexByte(t.Text, '\n'); i >= 0 {
		return pointOf(t.Line+strings.Count(t.Text, "\n"), len(t.Text)-i-1)
	}
	return pointOf(t.Line, t.Col+len(t.Text))
}

// spanFrom sets n to start where from starts.
func spanFrom(n, from *syntax.Node) *syntax.Node {
	n.Span.Start = from.Span.Start
	n.Span.StartPos = from.Span.StartPos
	if n.Span.End < from.Span.End {
		n.Span.End = from.Span.End
		n.Span.EndPos = from.Span.EndPos
	}
	return n
}

func (p *Parser) ident(field string) *syntax.Node {
	t := p.next()
	if t.Kind != IDENT {
		p.errorf(t, "expected identifier, found %s", t)
		return nil
	}
	p.advance()
	n := p.node(syntax.KindIdent, t)
	n.Text = t.Text
	n.Field = field
	return n
}

// sameLine reports whether the next token continues the current line.
func (p *Parser) sameLine() bool {
	return !p.next().NewlineBefore && p.next().Kind != EOF
}

// --- file level ---

// ParseFile parses a whole source file.
func (p *Parser) ParseFile() *syntax.Node {
	root := p.node(syntax.KindFile, p.next())
	root.Span.Start, root.Span.StartPos = 0, syntax.Point{}

	p.skipAttributes()
	if p.at("module") {
		start := p.advance()
		n := p.node(syntax.KindModuleClause, start)
		n.Append(syntax.FieldName, p.ident(syntax.FieldName))
		root.Append(syntax.FieldDecl, p.finish(n))
	}
	for p.next().Kind != EOF {
		before := p.index
		p.skipAttributes()
		if p.at("import") {
			root.Append(syntax.FieldDecl, p.parseImport())
			continue
		}
		if p.next().Kind == EOF {
			break
		}
		if d := p.parseTopDecl(); d != nil {
			root.Append(syntax.FieldDecl, d)
		}
		if p.index == before {
			p.advance()
		}
	}
	end := p.next()
	root.Span.End = end.End
	root.Span.EndPos = pointOf(end.Line, end.Col)
	return root
}

// skipAttributes skips "[attr]" and "@[attr]" lines before declarations.
func (p *Parser) skipAttributes() {
	for {
		if p.at("@") && p.peek(1).Is("[") {
			p.advance()
		} else if !p.at("[") {
			return
		}
		depth := 0
		for p.next().Kind != EOF {
			t := p.advance()
			if t.Is("[") || t.Is("#[") {
				depth++
			} else if t.Is("]") {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
}

func (p *Parser) parseImport() *syntax.Node {
	start := p.advance()
	n := p.node(syntax.KindImport, start)
	var path []string
	if t := p.next(); t.Kind == IDENT {
		path = append(path, p.advance().Text)
		for p.at(".") && p.peek(1).Kind == IDENT {
			p.advance()
			path = append(path, p.advance().Text)
		}
	} else {
		p.errorf(t, "expected module path, found %s", t)
	}
	n.Text = strings.Join(path, ".")
	if p.at("as") {
		p.advance()
		n.Append(syntax.FieldAlias, p.ident(syntax.FieldAlias))
	}
	if p.at("{") && p.sameLine() {
		p.advance()
		for !p.at("}") && p.next().Kind != EOF {
			t := p.next()
			if sym := p.ident(syntax.FieldSymbol); sym != nil {
				isym := p.node(syntax.KindImportSymbol, t)
				isym.Text = sym.Text
				isym.Append(syntax.FieldName, sym)
				n.Append(syntax.FieldSymbol, p.finish(isym))
			} else {
				p.advance()
			}
			p.accept(",")
		}
		p.expect("}")
	}
	return p.finish(n)
}

func (p *Parser) parseTopDecl() *syntax.Node {
	start := p.next()
	var flags syntax.Flag
	if p.accept("pub") {
		flags |= syntax.FlagPub
	}
	var n *syntax.Node
	switch {
	case p.at("fn"):
		n = p.parseFn(start)
	case p.at("struct"), p.at("union"):
		n = p.parseStruct(start)
	case p.at("enum"):
		n = p.parseEnum(start)
	case p.at("interface"):
		n = p.parseInterface(start)
	case p.at("type"):
		n = p.parseTypeDecl(start)
	case p.at("const"):
		n = p.parseConst(start)
	case p.at("__global"):
		n = p.parseGlobal(start)
	default:
		p.errorf(p.next(), "expected declaration, found %s", p.next())
		return p.recoverTop(start)
	}
	if n != nil {
		n.Flags |= flags
	}
	return n
}

// recoverTop skips to the next line that starts a declaration.
func (p *Parser) recoverTop(start Token) *syntax.Node {
	n := p.node(syntax.KindError, start)
	p.advance()
	for p.next().Kind != EOF {
		t := p.next()
		if t.NewlineBefore && (t.Is("fn") || t.Is("pub") || t.Is("struct") || t.Is("enum") ||
			t.Is("interface") || t.Is("type") || t.Is("const") || t.Is("import") || t.Is("__global")) {
			break
		}
		p.advance()
	}
	return p.finish(n)
}

func (p *Parser) parseFn(start Token) *syntax.Node {
	p.expect("fn")
	n := p.node(syntax.KindFnDecl, start)

	if p.at("(") {
		rt := p.advance()
		recv := p.node(syntax.KindReceiver, rt)
		if p.accept("mut") {
			recv.Flags |= syntax.FlagMut
		} else if p.accept("shared") {
			recv.Flags |= syntax.FlagShared
		}
		recv.Append(syntax.FieldName, p.ident(syntax.FieldName))
		recv.Append(syntax.FieldType, p.parseType())
		p.expect(")")
		n.Append(syntax.FieldReceiver, p.finish(recv))
	}

	switch t := p.next(); {
	case t.Kind == IDENT:
		n.Append(syntax.FieldName, p.ident(syntax.FieldName))
	case t.Kind == PUNCT && isOverloadable(t.Text):
		p.advance()
		name := p.node(syntax.KindIdent, t)
		name.Text = t.Text
		n.Append(syntax.FieldName, name)
	default:
		p.errorf(t, "expected function name, found %s", t)
	}

	if p.at("[") {
		n.Append(syntax.FieldGenerics, p.parseGenericParams())
	}
	n.Append(syntax.FieldParams, p.parseParams())
	if p.sameLine() && p.startsType() {
		n.Append(syntax.FieldResult, p.parseType())
	}
	if p.at("{") {
		n.Append(syntax.FieldBody, p.parseBlock())
	}
	return p.finish(n)
}

func isOverloadable(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%", "<", ">", "==", "!=", "<=", ">=":
		return true
	}
	return false
}

func (p *Parser) parseGenericParams() *syntax.Node {
	n := p.node(syntax.KindGenericParams, p.advance())
	for !p.at("]") && p.next().Kind != EOF {
		t := p.next()
		name := p.ident(syntax.FieldName)
		if name == nil {
			p.advance()
			continue
		}
		gp := p.node(syntax.KindGenericParam, t)
		gp.Text = name.Text
		gp.Append(syntax.FieldName, name)
		n.Append(syntax.FieldName, p.finish(gp))
		p.accept(",")
	}
	p.expect("]")
	return p.finish(n)
}

// parseParams parses "(a int, mut b []string, c ...int)". Grouped names
// such as "(x, y int)" each get their own copy of the shared type.
func (p *Parser) parseParams() *syntax.Node {
	n := p.node(syntax.KindParamList, p.next())
	if !p.expect("(") {
		return n
	}
	var pending []*syntax.Node
	flush := func(typ *syntax.Node) {
		for i, param := range pending {
			t := typ
			if i < len(pending)-1 {
				t = clone(typ)
			}
			param.Append(syntax.FieldType, t)
			if t != nil && t.Has(syntax.FlagVariadic) {
				param.Flags |= syntax.FlagVariadic
			}
			n.Append(syntax.FieldName, p.finish(param))
		}
		pending = nil
	}
	for !p.at(")") && p.next().Kind != EOF {
		start := p.next()
		param := p.node(syntax.KindParam, start)
		if p.accept("mut") {
			param.Flags |= syntax.FlagMut
		} else {
			p.accept("shared")
		}
		// An unnamed parameter ("fn (int) string" style) is just a type.
		if p.next().Kind == IDENT && (p.peek(1).Is(",") || p.peek(1).Is(")")) && len(pending) == 0 && !p.paramsNamed() {
			flush(nil)
			param.Append(syntax.FieldType, p.parseType())
			n.Append(syntax.FieldName, p.finish(param))
			p.accept(",")
			continue
		}
		if p.next().Kind == IDENT && !p.peek(1).Is(".") && !(p.peek(1).Is("[") && !p.peek(1).SpaceBefore) {
			param.Append(syntax.FieldName, p.ident(syntax.FieldName))
			pending = append(pending, param)
			if p.at(",") || p.at(")") {
				p.accept(",")
				continue
			}
			flush(p.parseType())
		} else {
			flush(nil)
			param.Append(syntax.FieldType, p.parseType())
			n.Append(syntax.FieldName, p.finish(param))
		}
		if !p.accept(",") && !p.at(")") {
			p.errorf(p.next(), "expected ',' or ')' in parameter list, found %s", p.next())
			p.advance()
		}
	}
	flush(nil)
	p.expect(")")
	return p.finish(n)
}

// paramsNamed scans ahead within the current parameter list and reports
// whether any parameter is written as "name Type".
func (p *Parser) paramsNamed() bool {
	depth := 0
	for i := p.index; i < len(p.tokens); i++ {
		t := p.tokens[i]
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			if depth == 0 {
				return false
			}
			depth--
		case depth == 0 && t.Kind == IDENT:
			nt := p.tokens[i+1]
			if nt.Kind == IDENT || nt.Is("[") || nt.Is("?") || nt.Is("!") || nt.Is("&") || nt.Is("...") || nt.Is("fn") {
				return true
			}
		case t.Kind == EOF:
			return false
		}
	}
	return false
}

func (p *Parser) parseStruct(start Token) *syntax.Node {
	p.advance()
	n := p.node(syntax.KindStructDecl, start)
	n.Append(syntax.FieldName, p.ident(syntax.FieldName))
	if p.at("[") {
		n.Append(syntax.FieldGenerics, p.parseGenericParams())
	}
	if !p.expect("{") {
		return p.finish(n)
	}
	var section syntax.Flag
	for !p.at("}") && p.next().Kind != EOF {
		before := p.index
		switch {
		case p.at("pub") || p.at("mut") || p.at("__global"):
			section = 0
			for p.at("pub") || p.at("mut") || p.at("__global") {
				switch p.advance().Text {
				case "pub", "__global":
					section |= syntax.FlagPub
				case "mut":
					section |= syntax.FlagMut
				}
			}
			p.expect(":")
		case p.next().Kind == IDENT:
			n.Append(syntax.FieldMember, p.parseField(section))
		default:
			p.errorf(p.next(), "unexpected %s in struct body", p.next())
		}
		p.skipFieldAttributes()
		p.accept(";")
		if p.index == before {
			p.advance()
		}
	}
	p.expect("}")
	return p.finish(n)
}

func (p *Parser) parseField(section syntax.Flag) *syntax.Node {
	start := p.next()
	f := p.node(syntax.KindFieldDecl, start)
	f.Flags = section
	// Embedded struct: a bare type on its own line.
	if p.peek(1).NewlineBefore || p.peek(1).Is("}") || p.peek(1).Is(".") {
		f.Flags |= syntax.FlagEmbedded
		typ := p.parseType()
		f.Append(syntax.FieldType, typ)
		return p.finish(f)
	}
	f.Append(syntax.FieldName, p.ident(syntax.FieldName))
	f.Append(syntax.FieldType, p.parseType())
	if p.accept("=") {
		f.Append(syntax.FieldDefault, p.parseExpr())
	}
	return p.finish(f)
}

// skipFieldAttributes skips a trailing "[json: name]" attribute.
func (p *Parser) skipFieldAttributes() {
	if p.at("[") && p.sameLine() {
		for p.next().Kind != EOF && !p.at("]") {
			p.advance()
		}
		p.accept("]")
	}
}

func (p *Parser) parseEnum(start Token) *syntax.Node {
	p.advance()
	n := p.node(syntax.KindEnumDecl, start)
	n.Append(syntax.FieldName, p.ident(syntax.FieldName))
	if p.accept("as") {
		n.Append(syntax.FieldType, p.parseType())
	}
	if !p.expect("{") {
		return p.finish(n)
	}
	for !p.at("}") && p.next().Kind != EOF {
		t := p.next()
		name := p.ident(syntax.FieldName)
		if name == nil {
			p.advance()
			continue
		}
		f := p.node(syntax.KindEnumField, t)
		f.Text = name.Text
		f.Append(syntax.FieldName, name)
		if p.accept("=") {
			f.Append(syntax.FieldValue, p.parseExpr())
		}
		n.Append(syntax.FieldMember, p.finish(f))
		p.skipFieldAttributes()
		p.accept(",")
	}
	p.expect("}")
	return p.finish(n)
}

func (p *Parser) parseInterface(start Token) *syntax.Node {
	p.advance()
	n := p.node(syntax.KindInterfaceDecl, start)
	n.Append(syntax.FieldName, p.ident(syntax.FieldName))
	if p.at("[") {
		n.Append(syntax.FieldGenerics, p.parseGenericParams())
	}
	if !p.expect("{") {
		return p.finish(n)
	}
	var section syntax.Flag
	for !p.at("}") && p.next().Kind != EOF {
		before := p.index
		switch {
		case p.at("mut") || p.at("pub"):
			section = 0
			for p.at("mut") || p.at("pub") {
				if p.advance().Text == "mut" {
					section |= syntax.FlagMut
				}
			}
			p.expect(":")
		case p.next().Kind == IDENT && p.peek(1).Is("("):
			t := p.next()
			m := p.node(syntax.KindInterfaceMethod, t)
			m.Flags = section
			m.Append(syntax.FieldName, p.ident(syntax.FieldName))
			m.Append(syntax.FieldParams, p.parseParams())
			if p.sameLine() && p.startsType() {
				m.Append(syntax.FieldResult, p.parseType())
			}
			n.Append(syntax.FieldMember, p.finish(m))
		case p.next().Kind == IDENT:
			n.Append(syntax.FieldMember, p.parseField(section))
		default:
			p.errorf(p.next(), "unexpected %s in interface body", p.next())
		}
		p.accept(";")
		if p.index == before {
			p.advance()
		}
	}
	p.expect("}")
	return p.finish(n)
}

func (p *Parser) parseTypeDecl(start Token) *syntax.Node {
	p.advance()
	name := p.ident(syntax.FieldName)
	var generics *syntax.Node
	if p.at("[") {
		generics = p.parseGenericParams()
	}
	p.expect("=")
	first := p.parseType()
	if !p.at("|") {
		n := p.node(syntax.KindAliasDecl, start)
		n.Append(syntax.FieldName, name)
		n.Append(syntax.FieldGenerics, generics)
		n.Append(syntax.FieldType, first)
		return p.finish(n)
	}
	n := p.node(syntax.KindSumTypeDecl, start)
	n.Append(syntax.FieldName, name)
	n.Append(syntax.FieldGenerics, generics)
	n.Append(syntax.FieldVariant, first)
	for p.accept("|") {
		n.Append(syntax.FieldVariant, p.parseType())
	}
	return p.finish(n)
}

func (p *Parser) parseConst(start Token) *syntax.Node {
	p.advance()
	n := p.node(syntax.KindConstDecl, start)
	spec := func() {
		t := p.next()
		name := p.ident(syntax.FieldName)
		if name == nil {
			p.advance()
			return
		}
		s := p.node(syntax.KindConstSpec, t)
		s.Append(syntax.FieldName, name)
		if p.expect("=") {
			s.Append(syntax.FieldValue, p.parseExpr())
		}
		n.Append(syntax.FieldSpec, p.finish(s))
	}
	if p.accept("(") {
		for !p.at(")") && p.next().Kind != EOF {
			spec()
		}
		p.expect(")")
	} else {
		spec()
	}
	return p.finish(n)
}

func (p *Parser) parseGlobal(start Token) *syntax.Node {
	p.advance()
	n := p.node(syntax.KindGlobalDecl, start)
	spec := func() {
		t := p.next()
		name := p.ident(syntax.FieldName)
		if name == nil {
			p.advance()
			return
		}
		s := p.node(syntax.KindGlobalSpec, t)
		s.Flags |= syntax.FlagMut
		s.Append(syntax.FieldName, name)
		if !p.at("=") && p.sameLine() {
			s.Append(syntax.FieldType, p.parseType())
		}
		if p.accept("=") {
			s.Append(syntax.FieldValue, p.parseExpr())
		}
		n.Append(syntax.FieldSpec, p.finish(s))
	}
	if p.accept("(") {
		for !p.at(")") && p.next().Kind != EOF {
			spec()
		}
		p.expect(")")
	} else {
		spec()
	}
	return p.finish(n)
}

// clone deep-copies a subtree without its parent link.
func clone(n *syntax.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	c := &syntax.Node{Kind: n.Kind, Field: n.Field, Text: n.Text, Span: n.Span, Flags: n.Flags}
	for _, child := range n.Children {
		c.Append(child.Field, clone(child))
	}
	return c
}

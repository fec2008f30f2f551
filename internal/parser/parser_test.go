package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/vsense/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, errs := ParseFile("main.v", "main", []byte(src))
	require.Empty(t, errs)
	require.NotNil(t, f.Root)
	return f
}

func collect(root *syntax.Node, kind syntax.Kind) []*syntax.Node {
	var out []*syntax.Node
	root.Walk(func(n *syntax.Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// =============================================================================
// Scanner
// =============================================================================

func TestScanTokens_Basics(t *testing.T) {
	t.Parallel()
	tokens, errs := ScanTokens([]byte("x := a!in b // note\ny := 1..5"))
	require.Empty(t, errs)

	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{"x", ":=", "a", "!in", "b", "y", ":=", "1", "..", "5", ""}, texts)
	assert.Equal(t, INT, tokens[7].Kind)
	assert.True(t, tokens[5].NewlineBefore)
	assert.Equal(t, EOF, tokens[len(tokens)-1].Kind)
}

func TestScanTokens_Literals(t *testing.T) {
	t.Parallel()
	tokens, errs := ScanTokens([]byte("'it\\'s' \"two\" `a` 3.14 0xff r'raw'"))
	require.Empty(t, errs)
	kinds := []TokenKind{STRING, STRING, CHAR, FLOAT, INT, STRING, EOF}
	require.Len(t, tokens, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, tokens[i].Kind, "token %d", i)
	}
}

func TestScanTokens_UnterminatedString(t *testing.T) {
	t.Parallel()
	_, errs := ScanTokens([]byte("x := 'oops"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unterminated")
}

// =============================================================================
// Declarations
// =============================================================================

const declSource = `module main

import geometry.shapes as sh
import os { getenv, Args }

pub struct Point {
pub mut:
	x int
	y int = 2
}

enum Color {
	red
	green = 2
}

interface Shape {
	area() f64
mut:
	name string
}

type MyInt = int
type Figure = Point | sh.Circle

const (
	limit = 10
	name  = 'v'
)

fn (p Point) dist(other Point) f64 {
	return 0.0
}

fn add(a, b int) int {
	return a + b
}

fn foo(age int, names ...string) {}

fn make[T](x T) ?T {
	return x
}
`

func TestParseFile_Declarations(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)

	var kinds []syntax.Kind
	for _, d := range f.Root.Children {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []syntax.Kind{
		syntax.KindModuleClause, syntax.KindImport, syntax.KindImport,
		syntax.KindStructDecl, syntax.KindEnumDecl, syntax.KindInterfaceDecl,
		syntax.KindAliasDecl, syntax.KindSumTypeDecl, syntax.KindConstDecl,
		syntax.KindFnDecl, syntax.KindFnDecl, syntax.KindFnDecl, syntax.KindFnDecl,
	}, kinds)
}

func TestParseFile_Imports(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)
	imports := f.Root.ChildrenOfKind(syntax.KindImport)
	require.Len(t, imports, 2)

	assert.Equal(t, "geometry.shapes", imports[0].Text)
	assert.Equal(t, "sh", imports[0].ChildByField(syntax.FieldAlias).Text)

	syms := imports[1].ChildrenByField(syntax.FieldSymbol)
	require.Len(t, syms, 2)
	assert.Equal(t, "getenv", syms[0].Text)
	assert.Equal(t, "Args", syms[1].Text)
}

func TestParseFile_StructSections(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)
	st := f.Root.ChildrenOfKind(syntax.KindStructDecl)[0]
	assert.True(t, st.Has(syntax.FlagPub))
	assert.Equal(t, "Point", st.Name())

	fields := st.ChildrenByField(syntax.FieldMember)
	require.Len(t, fields, 2)
	assert.True(t, fields[0].Has(syntax.FlagPub|syntax.FlagMut))
	assert.Equal(t, "int", fields[0].ChildByField(syntax.FieldType).Text)
	require.NotNil(t, fields[1].ChildByField(syntax.FieldDefault))
	assert.Equal(t, syntax.KindIntLit, fields[1].ChildByField(syntax.FieldDefault).Kind)
}

func TestParseFile_EnumAndInterface(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)

	enum := f.Root.ChildrenOfKind(syntax.KindEnumDecl)[0]
	fields := enum.ChildrenByField(syntax.FieldMember)
	require.Len(t, fields, 2)
	assert.Equal(t, "red", fields[0].Text)
	assert.NotNil(t, fields[1].ChildByField(syntax.FieldValue))

	iface := f.Root.ChildrenOfKind(syntax.KindInterfaceDecl)[0]
	members := iface.ChildrenByField(syntax.FieldMember)
	require.Len(t, members, 2)
	assert.Equal(t, syntax.KindInterfaceMethod, members[0].Kind)
	assert.Equal(t, "f64", members[0].ChildByField(syntax.FieldResult).Text)
	assert.Equal(t, syntax.KindFieldDecl, members[1].Kind)
	assert.True(t, members[1].Has(syntax.FlagMut))
}

func TestParseFile_TypeDecls(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)

	alias := f.Root.ChildrenOfKind(syntax.KindAliasDecl)[0]
	assert.Equal(t, "MyInt", alias.Name())
	assert.Equal(t, "int", alias.ChildByField(syntax.FieldType).Text)

	sum := f.Root.ChildrenOfKind(syntax.KindSumTypeDecl)[0]
	variants := sum.ChildrenByField(syntax.FieldVariant)
	require.Len(t, variants, 2)
	assert.Equal(t, "Point", variants[0].Text)
	assert.Equal(t, "sh.Circle", variants[1].Text)
	assert.Equal(t, "sh", variants[1].ChildByField(syntax.FieldQualifier).Text)
}

func TestParseFile_Functions(t *testing.T) {
	t.Parallel()
	f := parse(t, declSource)
	fns := f.Root.ChildrenOfKind(syntax.KindFnDecl)
	require.Len(t, fns, 4)

	t.Run("receiver", func(t *testing.T) {
		recv := fns[0].ChildByField(syntax.FieldReceiver)
		require.NotNil(t, recv)
		assert.Equal(t, "p", recv.Name())
		assert.Equal(t, "Point", recv.ChildByField(syntax.FieldType).Text)
		assert.Equal(t, "dist", fns[0].Name())
		assert.Equal(t, "f64", fns[0].ChildByField(syntax.FieldResult).Text)
	})

	t.Run("grouped params", func(t *testing.T) {
		params := fns[1].ChildByField(syntax.FieldParams).ChildrenOfKind(syntax.KindParam)
		require.Len(t, params, 2)
		assert.Equal(t, "a", params[0].Name())
		assert.Equal(t, "b", params[1].Name())
		assert.Equal(t, "int", params[0].ChildByField(syntax.FieldType).Text)
		assert.Equal(t, "int", params[1].ChildByField(syntax.FieldType).Text)
	})

	t.Run("variadic", func(t *testing.T) {
		params := fns[2].ChildByField(syntax.FieldParams).ChildrenOfKind(syntax.KindParam)
		require.Len(t, params, 2)
		assert.False(t, params[0].Has(syntax.FlagVariadic))
		assert.True(t, params[1].Has(syntax.FlagVariadic))
		typ := params[1].ChildByField(syntax.FieldType)
		assert.Equal(t, syntax.KindArrayType, typ.Kind)
		assert.Equal(t, "string", typ.ChildByField(syntax.FieldElement).Text)
	})

	t.Run("generic", func(t *testing.T) {
		gens := fns[3].ChildByField(syntax.FieldGenerics)
		require.NotNil(t, gens)
		require.Len(t, gens.ChildrenOfKind(syntax.KindGenericParam), 1)
		result := fns[3].ChildByField(syntax.FieldResult)
		assert.Equal(t, syntax.KindOptionType, result.Kind)
		assert.Equal(t, "T", result.ChildByField(syntax.FieldElement).Text)
	})
}

// =============================================================================
// Expressions and statements
// =============================================================================

func TestParseExpr_GenericCallVersusIndex(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\tv := foo[int]()\n\tw := arr[i]\n\tb := Box[int]{}\n}\n")

	insts := collect(f.Root, syntax.KindGenericInst)
	require.Len(t, insts, 1)
	assert.Equal(t, syntax.KindCall, insts[0].Parent.Kind)
	assert.Equal(t, "int", insts[0].ChildByField(syntax.FieldTypeArg).Text)

	idx := collect(f.Root, syntax.KindIndex)
	require.Len(t, idx, 1)
	assert.Equal(t, "i", idx[0].ChildByField(syntax.FieldIndex).Text)

	lits := collect(f.Root, syntax.KindStructLit)
	require.Len(t, lits, 1)
	typ := lits[0].ChildByField(syntax.FieldType)
	assert.Equal(t, "Box", typ.Text)
	assert.Len(t, typ.ChildrenByField(syntax.FieldTypeArg), 1)
}

func TestParseExpr_SliceAndGated(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\ta := arr[1..]\n\tb := arr[..2]\n\tc := arr#[0]\n\td := arr[0]\n}\n")
	idx := collect(f.Root, syntax.KindIndex)
	require.Len(t, idx, 4)
	assert.True(t, idx[0].Has(syntax.FlagSlice))
	assert.True(t, idx[1].Has(syntax.FlagSlice))
	assert.True(t, idx[2].Has(syntax.FlagGated))
	assert.False(t, idx[2].Has(syntax.FlagSlice))
	assert.False(t, idx[3].Has(syntax.FlagSlice))
}

func TestParseExpr_Propagation(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\ta := f()?\n\tb := f()!\n\tc := f() or { 0 }\n}\n")
	props := collect(f.Root, syntax.KindPropagate)
	require.Len(t, props, 2)
	assert.True(t, props[0].Has(syntax.FlagOption))
	assert.True(t, props[1].Has(syntax.FlagResult))

	ors := collect(f.Root, syntax.KindOr)
	require.Len(t, ors, 1)
	assert.Equal(t, syntax.KindCall, ors[0].ChildByField(syntax.FieldOperand).Kind)
	assert.Equal(t, syntax.KindBlock, ors[0].ChildByField(syntax.FieldOrBlock).Kind)
}

func TestParseExpr_Precedence(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\tx := 1 + 2 * 3 == 7 && ok\n}\n")
	decl := collect(f.Root, syntax.KindVarDecl)[0]
	v := decl.ChildByField(syntax.FieldValue)
	assert.Equal(t, "(value:binary && (left:binary == (left:binary + (left:int_lit 1) (right:binary * (left:int_lit 2) (right:int_lit 3))) (right:int_lit 7)) (right:ident ok))", v.String())
}

func TestParseExpr_NoStructLiteralInCondition(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\tif x == Foo {\n\t\tprintln(x)\n\t}\n\tfor y in Bar {\n\t}\n}\n")
	assert.Empty(t, collect(f.Root, syntax.KindStructLit))
	require.Len(t, collect(f.Root, syntax.KindIf), 1)
	require.Len(t, collect(f.Root, syntax.KindForIn), 1)
}

func TestParseExpr_Literals(t *testing.T) {
	t.Parallel()
	src := "fn main() {\n\tm := {'a': 1}\n\tn := map[string]int{}\n\ta := []int{len: 3}\n\tc := .red\n\tp := &Point{x: 1}\n\tz := none\n}\n"
	f := parse(t, src)
	assert.Len(t, collect(f.Root, syntax.KindMapLit), 2)
	assert.Len(t, collect(f.Root, syntax.KindKeyValue), 1)
	arr := collect(f.Root, syntax.KindArrayLit)
	require.Len(t, arr, 1)
	assert.Equal(t, syntax.KindArrayType, arr[0].ChildByField(syntax.FieldType).Kind)
	assert.Len(t, collect(f.Root, syntax.KindEnumShorthand), 1)
	un := collect(f.Root, syntax.KindUnary)
	require.Len(t, un, 1)
	assert.Equal(t, syntax.KindStructLit, un[0].ChildByField(syntax.FieldOperand).Kind)
	assert.Len(t, collect(f.Root, syntax.KindNoneLit), 1)
}

func TestParseStmt_Loops(t *testing.T) {
	t.Parallel()
	src := `fn main() {
	outer: for i, v in arr {
		for j := 0; j < 10; j++ {
			if j == v {
				continue outer
			}
		}
	}
	for {
		break
	}
	for x in 0 .. 10 {
	}
}
`
	f := parse(t, src)
	labeled := collect(f.Root, syntax.KindLabeled)
	require.Len(t, labeled, 1)
	assert.Equal(t, "outer", labeled[0].Name())

	forIns := collect(f.Root, syntax.KindForIn)
	require.Len(t, forIns, 2)
	assert.Equal(t, "i", forIns[0].ChildByField(syntax.FieldKey).Text)
	assert.Equal(t, "v", forIns[0].ChildByField(syntax.FieldIterValue).Text)
	assert.Equal(t, syntax.KindRange, forIns[1].ChildByField(syntax.FieldValue).Kind)

	cfor := collect(f.Root, syntax.KindFor)
	require.Len(t, cfor, 2)
	assert.Equal(t, syntax.KindVarDecl, cfor[0].ChildByField(syntax.FieldInit).Kind)
	assert.Equal(t, syntax.KindBinary, cfor[0].ChildByField(syntax.FieldCond).Kind)
	assert.Equal(t, syntax.KindIncDec, cfor[0].ChildByField(syntax.FieldPost).Kind)

	branches := collect(f.Root, syntax.KindBranch)
	require.Len(t, branches, 2)
	assert.Equal(t, "outer", branches[0].ChildByField(syntax.FieldLabel).Text)
	assert.Nil(t, branches[1].ChildByField(syntax.FieldLabel))
}

func TestParseExpr_Match(t *testing.T) {
	t.Parallel()
	src := "fn f(x int) string {\n\treturn match x {\n\t\t1, 2 { 'few' }\n\t\telse { 'many' }\n\t}\n}\n"
	f := parse(t, src)
	m := collect(f.Root, syntax.KindMatch)
	require.Len(t, m, 1)
	arms := m[0].ChildrenByField(syntax.FieldArm)
	require.Len(t, arms, 2)
	assert.Len(t, arms[0].ChildrenByField(syntax.FieldPattern), 2)
	assert.Equal(t, "else", arms[1].Text)
}

func TestParseExpr_IfGuard(t *testing.T) {
	t.Parallel()
	f := parse(t, "fn main() {\n\tif v := lookup() {\n\t\tprintln(v)\n\t} else {\n\t\tprintln(0)\n\t}\n}\n")
	ifs := collect(f.Root, syntax.KindIf)
	require.Len(t, ifs, 1)
	assert.Equal(t, syntax.KindVarDecl, ifs[0].ChildByField(syntax.FieldCond).Kind)
	assert.Equal(t, syntax.KindBlock, ifs[0].ChildByField(syntax.FieldElse).Kind)
}

// =============================================================================
// Recovery and positions
// =============================================================================

func TestParseFile_RecoversFromMissingValue(t *testing.T) {
	t.Parallel()
	f, errs := ParseFile("main.v", "main", []byte("fn main() {\n\tx :=\n\ty := 2\n}\n"))
	require.NotEmpty(t, errs)
	decls := collect(f.Root, syntax.KindVarDecl)
	require.Len(t, decls, 2)
	assert.Equal(t, syntax.KindError, decls[0].ChildByField(syntax.FieldValue).Kind)
	assert.Equal(t, "y", decls[1].ChildByField(syntax.FieldName).Text)
}

func TestParseFile_RecoversFromGarbage(t *testing.T) {
	t.Parallel()
	f, errs := ParseFile("main.v", "main", []byte("fn main() {\n\t) ) )\n\tok := 1\n}\n\nfn after() {}\n"))
	require.NotEmpty(t, errs)
	assert.Len(t, f.Root.ChildrenOfKind(syntax.KindFnDecl), 2)
	assert.Len(t, collect(f.Root, syntax.KindVarDecl), 1)
}

func TestParseFile_MissingFieldValueCoversGap(t *testing.T) {
	t.Parallel()
	src := "fn main() {\n\tp := Point{ x: /*here*/ }\n}\n"
	f, errs := ParseFile("main.v", "main", []byte(src))
	require.NotEmpty(t, errs)

	offset := strings.Index(src, "/*here*/")
	n := f.Root.NodeAt(offset)
	require.NotNil(t, n)
	assert.Equal(t, syntax.KindError, n.Kind)
	assert.Equal(t, syntax.KindFieldInit, n.Parent.Kind)
}

func TestFile_NodeAtAndPositions(t *testing.T) {
	t.Parallel()
	src := "fn main() {\n\tx := foo\n}\n"
	f := parse(t, src)

	n := f.NodeAt(1, 7)
	require.NotNil(t, n)
	assert.Equal(t, syntax.KindIdent, n.Kind)
	assert.Equal(t, "foo", n.Text)
	assert.Equal(t, syntax.Point{Line: 1, Col: 6}, n.Span.StartPos)
	assert.Equal(t, 4, f.LineCount())
	assert.Equal(t, syntax.Point{Line: 1, Col: 1}, f.PointAt(strings.Index(src, "x")))
}

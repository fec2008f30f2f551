package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/vsense/internal/symbols"
)

func decl(name string, kind symbols.Kind) *symbols.Declaration {
	return &symbols.Declaration{Name: name, Kind: kind, Module: "main", Public: true}
}

// everyVariant returns one value per Kind.
func everyVariant() []*Type {
	point := decl("Point", symbols.KindStruct)
	shape := decl("Shape", symbols.KindInterface)
	color := decl("Color", symbols.KindEnum)
	figure := decl("Figure", symbols.KindUnion)
	myInt := decl("MyInt", symbols.KindAlias)
	tparam := decl("T", symbols.KindGenericParam)
	return []*Type{
		Int,
		PointerTo(StructOf(point)),
		ArrayOf(String),
		FixedArrayOf(Int, 3),
		MapOf(String, Int),
		StructOf(point),
		InterfaceOf(shape),
		EnumOf(color),
		UnionOf(figure, StructOf(point), Int),
		OptionalOf(Int),
		ResultOf(String),
		FunctionOf([]*Type{Int, ArrayOf(String)}, Bool, true),
		GenericParamOf(tparam, nil),
		Primitive("byte"),
		AliasOf(myInt, Int),
		TupleOf(Int, String),
	}
}

func TestAssignable_RoundTrip(t *testing.T) {
	t.Parallel()
	seen := map[Kind]bool{}
	for _, typ := range everyVariant() {
		seen[typ.Kind] = true
		assert.True(t, Assignable(typ, typ, nil), "%s (%s) assignable to itself", typ, typ.Kind)
	}
	assert.Len(t, seen, len(kindNames), "every variant is covered")
}

func TestUnwrapOptionalOrResultIf(t *testing.T) {
	t.Parallel()
	inner := StructOf(decl("Point", symbols.KindStruct))

	once := UnwrapOptionalOrResultIf(OptionalOf(inner), true)
	assert.Same(t, inner, once)
	assert.Same(t, inner, UnwrapOptionalOrResultIf(once, true))
	assert.Same(t, inner, UnwrapOptionalOrResultIf(once, false))

	assert.Same(t, inner, UnwrapOptionalOrResultIf(ResultOf(inner), true))
	wrapped := OptionalOf(inner)
	assert.Same(t, wrapped, UnwrapOptionalOrResultIf(wrapped, false))
	assert.Nil(t, UnwrapOptionalOrResultIf(nil, true))
}

func TestWrappersDoNotNest(t *testing.T) {
	t.Parallel()
	opt := OptionalOf(Int)
	assert.Same(t, opt, OptionalOf(opt))
	res := ResultOf(Int)
	assert.Same(t, res, ResultOf(res))
	assert.Equal(t, KindOptional, OptionalOf(res).Kind)
}

func TestIdentical(t *testing.T) {
	t.Parallel()
	a := decl("A", symbols.KindStruct)
	b := decl("A", symbols.KindStruct)

	assert.True(t, Identical(StructOf(a), StructOf(a)))
	assert.False(t, Identical(StructOf(a), StructOf(b)), "nominal types compare by declaration")
	assert.True(t, Identical(Primitive("i32"), Int))
	assert.False(t, Identical(ArrayOf(Int), ArrayOf(String)))
	assert.False(t, Identical(FixedArrayOf(Int, 2), FixedArrayOf(Int, 3)))
	assert.False(t, Identical(StructOf(a, Int), StructOf(a, String)))
	assert.True(t, Identical(nil, nil))
	assert.False(t, Identical(Int, nil))
}

func TestAssignable_NumericPromotion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to string
		want     bool
	}{
		{"i8", "i16", true},
		{"i8", "i64", true},
		{"i16", "int", true},
		{"int", "i64", true},
		{"i64", "int", false},
		{"u8", "u64", true},
		{"u8", "i16", true},
		{"u16", "int", true},
		{"u32", "i64", true},
		{"u32", "int", false},
		{"int", "f64", true},
		{"int", "f32", true},
		{"i64", "f32", false},
		{"u64", "f32", false},
		{"u32", "f32", false},
		{"i64", "f64", true},
		{"f32", "f64", true},
		{"f64", "f32", false},
		{"byte", "u16", true},
		{"rune", "i64", true},
		{"int", "i32", true},
		{"bool", "int", false},
	}
	for _, tt := range tests {
		got := Assignable(Primitive(tt.from), Primitive(tt.to), nil)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestAssignable_Wrappers(t *testing.T) {
	t.Parallel()
	point := StructOf(decl("Point", symbols.KindStruct))
	ierror := InterfaceOf(&symbols.Declaration{Name: "IError", Kind: symbols.KindInterface, Module: symbols.BuiltinModule})

	assert.True(t, Assignable(point, OptionalOf(point), nil))
	assert.True(t, Assignable(point, ResultOf(point), nil))
	assert.True(t, Assignable(OptionalOf(nil), OptionalOf(point), nil), "none fits any optional")
	assert.True(t, Assignable(Int, OptionalOf(Primitive("i64")), nil))
	assert.True(t, Assignable(ierror, ResultOf(point), nil), "errors fit results")
	assert.False(t, Assignable(OptionalOf(point), point, nil))
	assert.False(t, Assignable(String, OptionalOf(point), nil))
}

func TestAssignable_AliasesAndContainers(t *testing.T) {
	t.Parallel()
	myInt := AliasOf(decl("MyInt", symbols.KindAlias), Int)
	assert.True(t, Assignable(myInt, Int, nil))
	assert.True(t, Assignable(Int, myInt, nil))
	assert.True(t, Assignable(Primitive("byte"), U8, nil))

	assert.True(t, Assignable(FixedArrayOf(Int, 3), ArrayOf(Int), nil))
	assert.False(t, Assignable(ArrayOf(Int), ArrayOf(Primitive("i64")), nil), "arrays are invariant")
	assert.False(t, Assignable(MapOf(String, Int), MapOf(String, String), nil))

	anything := GenericParamOf(decl("T", symbols.KindGenericParam), nil)
	assert.True(t, Assignable(String, anything, nil))

	figure := decl("Figure", symbols.KindUnion)
	circle := StructOf(decl("Circle", symbols.KindStruct))
	assert.True(t, Assignable(circle, UnionOf(figure, circle, Int), nil))
	assert.False(t, Assignable(String, UnionOf(figure, circle, Int), nil))
}

type fakeMethods struct {
	byType  map[*symbols.Declaration]map[string]*Type
	byIface map[*symbols.Declaration]map[string]*Type
}

func (f fakeMethods) MethodsOf(t *Type) map[string]*Type {
	return f.byType[Deref(t).Decl]
}

func (f fakeMethods) InterfaceMethods(iface *Type) map[string]*Type {
	return f.byIface[iface.Decl]
}

func TestAssignable_StructuralInterface(t *testing.T) {
	t.Parallel()
	shapeDecl := decl("Shape", symbols.KindInterface)
	squareDecl := decl("Square", symbols.KindStruct)
	blobDecl := decl("Blob", symbols.KindStruct)
	area := FunctionOf(nil, F64, false)

	methods := fakeMethods{
		byType: map[*symbols.Declaration]map[string]*Type{
			squareDecl: {"area": area},
			blobDecl:   {"area": FunctionOf(nil, Int, false)},
		},
		byIface: map[*symbols.Declaration]map[string]*Type{
			shapeDecl: {"area": FunctionOf(nil, F64, false)},
		},
	}
	shape := InterfaceOf(shapeDecl)
	assert.True(t, Assignable(StructOf(squareDecl), shape, methods))
	assert.True(t, Assignable(PointerTo(StructOf(squareDecl)), shape, methods))
	assert.False(t, Assignable(StructOf(blobDecl), shape, methods), "signature must match")
	assert.False(t, Assignable(StructOf(squareDecl), shape, nil))
}

func TestPromote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "f64", Promote(Int, F64).String())
	assert.Equal(t, "f64", Promote(F64, Int).String())
	assert.Equal(t, "i64", Promote(Primitive("i64"), Int).String())
	assert.Equal(t, "string", Promote(String, Int).String(), "non-numeric keeps the left operand")
	assert.Same(t, Int, Promote(nil, Int))
}

func TestString(t *testing.T) {
	t.Parallel()
	point := decl("Point", symbols.KindStruct)
	box := decl("Box", symbols.KindStruct)
	circle := &symbols.Declaration{Name: "Circle", Kind: symbols.KindStruct, Module: "geometry.shapes"}
	tests := []struct {
		typ  *Type
		want string
	}{
		{Int, "int"},
		{PointerTo(StructOf(point)), "&Point"},
		{ArrayOf(String), "[]string"},
		{FixedArrayOf(Int, 4), "[4]int"},
		{MapOf(String, ArrayOf(Int)), "map[string][]int"},
		{StructOf(box, Int), "Box[int]"},
		{StructOf(circle), "shapes.Circle"},
		{OptionalOf(Int), "?int"},
		{OptionalOf(nil), "?"},
		{ResultOf(String), "!string"},
		{FunctionOf([]*Type{Int, ArrayOf(String)}, Bool, true), "fn (int, ...string) bool"},
		{FunctionOf(nil, nil, false), "fn ()"},
		{Primitive("byte"), "byte"},
		{TupleOf(Int, String), "(int, string)"},
		{nil, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestSubstituteAndUnify(t *testing.T) {
	t.Parallel()
	tdecl := decl("T", symbols.KindGenericParam)
	udecl := decl("U", symbols.KindGenericParam)
	T := GenericParamOf(tdecl, nil)
	U := GenericParamOf(udecl, nil)

	bindings := map[*symbols.Declaration]*Type{}
	Unify(FunctionOf([]*Type{ArrayOf(T), MapOf(String, U)}, nil, false),
		FunctionOf([]*Type{ArrayOf(Int), MapOf(String, Bool)}, nil, false), bindings)
	require.Len(t, bindings, 2)
	assert.Same(t, Int, bindings[tdecl])
	assert.Same(t, Bool, bindings[udecl])

	sig := FunctionOf([]*Type{T}, OptionalOf(ArrayOf(T)), false)
	got := Substitute(sig, bindings)
	assert.Equal(t, "fn (int) ?[]int", got.String())
	assert.Equal(t, "fn (T) ?[]T", sig.String(), "substitution does not mutate")

	partial := Substitute(MapOf(T, U), map[*symbols.Declaration]*Type{tdecl: String})
	assert.Equal(t, "map[string]U", partial.String())

	first := map[*symbols.Declaration]*Type{}
	Unify(T, Int, first)
	Unify(T, String, first)
	assert.Same(t, Int, first[tdecl], "first binding wins")
}

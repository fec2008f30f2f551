// Package types is the closed set of semantic types the analyser computes.
// Types are immutable values; a nil *Type means no determinable type.
package types

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"

	"github.com/jward/vsense/internal/symbols"
)

type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindPointer
	KindArray
	KindFixedArray
	KindMap
	KindStruct
	KindInterface
	KindEnum
	KindUnion
	KindOptional
	KindResult
	KindFunction
	KindGenericParam
	KindBuiltin
	KindAlias
	KindTuple
)

var kindNames = map[Kind]string{
	KindPrimitive:    "primitive",
	KindPointer:      "pointer",
	KindArray:        "array",
	KindFixedArray:   "fixed_array",
	KindMap:          "map",
	KindStruct:       "struct",
	KindInterface:    "interface",
	KindEnum:         "enum",
	KindUnion:        "union",
	KindOptional:     "optional",
	KindResult:       "result",
	KindFunction:     "function",
	KindGenericParam: "generic_param",
	KindBuiltin:      "builtin",
	KindAlias:        "alias",
	KindTuple:        "tuple",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Type is one semantic type. Which fields are meaningful depends on Kind:
//
//	Primitive      Name
//	Pointer        Elem
//	Array          Elem
//	FixedArray     Elem, Len
//	Map            Key, Elem
//	Struct         Decl, Args (generic arguments)
//	Interface      Decl
//	Enum           Decl
//	Union          Decl, Args (variants)
//	Optional       Elem (nil for a bare "?" or none)
//	Result         Elem (nil for a bare "!")
//	Function       Params, Result, Variadic
//	GenericParam   Name, Decl, Elem (constraint)
//	Builtin        Name, Elem (the aliased type)
//	Alias          Decl, Elem (underlying)
//	Tuple          Args
type Type struct {
	Kind     Kind
	Name     string
	Elem     *Type
	Key      *Type
	Len      int
	Decl     *symbols.Declaration
	Args     []*Type
	Params   []*Type
	Result   *Type
	Variadic bool
}

// Primitive returns the scalar type name. "byte" and "rune" come back as
// builtin aliases of u8 and i32.
func Primitive(name string) *Type {
	switch name {
	case "byte":
		return &Type{Kind: KindBuiltin, Name: name, Elem: &Type{Kind: KindPrimitive, Name: "u8"}}
	case "rune":
		return &Type{Kind: KindBuiltin, Name: name, Elem: &Type{Kind: KindPrimitive, Name: "i32"}}
	}
	return &Type{Kind: KindPrimitive, Name: name}
}

var (
	Int    = Primitive("int")
	F64    = Primitive("f64")
	Bool   = Primitive("bool")
	String = Primitive("string")
	Rune   = Primitive("rune")
	U8     = Primitive("u8")
)

func PointerTo(elem *Type) *Type {
	if elem == nil {
		return nil
	}
	return &Type{Kind: KindPointer, Elem: elem}
}

func ArrayOf(elem *Type) *Type {
	if elem == nil {
		return nil
	}
	return &Type{Kind: KindArray, Elem: elem}
}

func FixedArrayOf(elem *Type, size int) *Type {
	if elem == nil {
		return nil
	}
	return &Type{Kind: KindFixedArray, Elem: elem, Len: size}
}

func MapOf(key, value *Type) *Type {
	if key == nil || value == nil {
		return nil
	}
	return &Type{Kind: KindMap, Key: key, Elem: value}
}

func StructOf(decl *symbols.Declaration, args ...*Type) *Type {
	return &Type{Kind: KindStruct, Decl: decl, Args: args}
}

func InterfaceOf(decl *symbols.Declaration) *Type {
	return &Type{Kind: KindInterface, Decl: decl}
}

func EnumOf(decl *symbols.Declaration) *Type {
	return &Type{Kind: KindEnum, Decl: decl}
}

func UnionOf(decl *symbols.Declaration, variants ...*Type) *Type {
	return &Type{Kind: KindUnion, Decl: decl, Args: variants}
}

// OptionalOf wraps elem. Wrapping an Optional again is a no-op so the
// wrapper never nests directly inside itself.
func OptionalOf(elem *Type) *Type {
	if elem != nil && elem.Kind == KindOptional {
		return elem
	}
	return &Type{Kind: KindOptional, Elem: elem}
}

// ResultOf wraps elem; like OptionalOf it never nests.
func ResultOf(elem *Type) *Type {
	if elem != nil && elem.Kind == KindResult {
		return elem
	}
	return &Type{Kind: KindResult, Elem: elem}
}

func FunctionOf(params []*Type, result *Type, variadic bool) *Type {
	return &Type{Kind: KindFunction, Params: params, Result: result, Variadic: variadic}
}

func GenericParamOf(decl *symbols.Declaration, constraint *Type) *Type {
	t := &Type{Kind: KindGenericParam, Decl: decl, Elem: constraint}
	if decl != nil {
		t.Name = decl.Name
	}
	return t
}

func AliasOf(decl *symbols.Declaration, underlying *Type) *Type {
	return &Type{Kind: KindAlias, Decl: decl, Elem: underlying}
}

func TupleOf(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Args: elems}
}

// Is reports whether t is non-nil and of kind k.
func (t *Type) Is(k Kind) bool {
	return t != nil && t.Kind == k
}

// Underlying strips builtin and user aliases.
func Underlying(t *Type) *Type {
	for t != nil && (t.Kind == KindAlias || t.Kind == KindBuiltin) && t.Elem != nil {
		t = t.Elem
	}
	return t
}

// Deref strips aliases and pointers, for member lookup.
func Deref(t *Type) *Type {
	for {
		t = Underlying(t)
		if t == nil || t.Kind != KindPointer {
			return t
		}
		t = t.Elem
	}
}

// UnwrapOptionalOrResultIf strips one Optional or Result level when cond
// holds. Other types, and every type when cond is false, come back as is.
func UnwrapOptionalOrResultIf(t *Type, cond bool) *Type {
	if cond && t != nil && (t.Kind == KindOptional || t.Kind == KindResult) {
		return t.Elem
	}
	return t
}

// Identical reports structural equality; nominal types compare by
// declaration identity.
func Identical(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindPrimitive:
		return canonical(a.Name) == canonical(b.Name)
	case KindBuiltin:
		return a.Name == b.Name
	case KindPointer, KindArray, KindOptional, KindResult:
		return Identical(a.Elem, b.Elem)
	case KindFixedArray:
		return a.Len == b.Len && Identical(a.Elem, b.Elem)
	case KindMap:
		return Identical(a.Key, b.Key) && Identical(a.Elem, b.Elem)
	case KindStruct:
		return a.Decl == b.Decl && identicalList(a.Args, b.Args)
	case KindInterface, KindEnum, KindUnion, KindAlias:
		return a.Decl == b.Decl
	case KindGenericParam:
		if a.Decl != nil || b.Decl != nil {
			return a.Decl == b.Decl
		}
		return a.Name == b.Name
	case KindFunction:
		return a.Variadic == b.Variadic && identicalList(a.Params, b.Params) && Identical(a.Result, b.Result)
	case KindTuple:
		return identicalList(a.Args, b.Args)
	}
	return false
}

func identicalList(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Identical(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String renders t in source syntax.
func (t *Type) String() string {
	if t == nil {
		return "unknown"
	}
	switch t.Kind {
	case KindPrimitive, KindBuiltin, KindGenericParam:
		return t.Name
	case KindPointer:
		return "&" + t.Elem.String()
	case KindArray:
		return "[]" + t.Elem.String()
	case KindFixedArray:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem)
	case KindMap:
		return fmt.Sprintf("map[%s]%s", t.Key, t.Elem)
	case KindStruct:
		if len(t.Args) > 0 {
			return fmt.Sprintf("%s[%s]", declName(t.Decl), joinTypes(t.Args))
		}
		return declName(t.Decl)
	case KindInterface, KindEnum, KindUnion, KindAlias:
		return declName(t.Decl)
	case KindOptional:
		if t.Elem == nil {
			return "?"
		}
		return "?" + t.Elem.String()
	case KindResult:
		if t.Elem == nil {
			return "!"
		}
		return "!" + t.Elem.String()
	case KindFunction:
		params := gfn.Map(t.Params, func(p *Type) string { return p.String() })
		if t.Variadic && len(params) > 0 {
			last := len(params) - 1
			params[last] = "..." + t.Params[last].Elem.String()
		}
		s := "fn (" + strings.Join(params, ", ") + ")"
		if t.Result != nil {
			s += " " + t.Result.String()
		}
		return s
	case KindTuple:
		return "(" + joinTypes(t.Args) + ")"
	}
	return "unknown"
}

func joinTypes(ts []*Type) string {
	return strings.Join(gfn.Map(ts, func(t *Type) string { return t.String() }), ", ")
}

// declName prefixes declarations outside main and builtin with their
// short module name, as V prints them.
func declName(d *symbols.Declaration) string {
	if d == nil {
		return "unknown"
	}
	switch d.Module {
	case "", symbols.DefaultMainModule, symbols.BuiltinModule:
		return d.Name
	}
	return shortModule(d.Module) + "." + d.Name
}

func shortModule(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Substitute replaces generic parameters bound in bindings. Unbound
// parameters are left in place.
func Substitute(t *Type, bindings map[*symbols.Declaration]*Type) *Type {
	if t == nil || len(bindings) == 0 {
		return t
	}
	switch t.Kind {
	case KindGenericParam:
		if b, ok := bindings[t.Decl]; ok && b != nil {
			return b
		}
		return t
	case KindPrimitive, KindBuiltin, KindInterface, KindEnum, KindAlias:
		return t
	}
	c := *t
	c.Elem = Substitute(t.Elem, bindings)
	c.Key = Substitute(t.Key, bindings)
	c.Result = Substitute(t.Result, bindings)
	if len(t.Args) > 0 {
		c.Args = gfn.Map(t.Args, func(a *Type) *Type { return Substitute(a, bindings) })
	}
	if len(t.Params) > 0 {
		c.Params = gfn.Map(t.Params, func(p *Type) *Type { return Substitute(p, bindings) })
	}
	return &c
}

// Unify binds the generic parameters of param against the concrete arg,
// recording first bindings only. It is best effort: mismatched shapes
// simply bind nothing.
func Unify(param, arg *Type, bindings map[*symbols.Declaration]*Type) {
	if param == nil || arg == nil {
		return
	}
	if param.Kind == KindGenericParam {
		if _, bound := bindings[param.Decl]; !bound && param.Decl != nil && arg.Kind != KindGenericParam {
			bindings[param.Decl] = arg
		}
		return
	}
	arg = Underlying(arg)
	if arg == nil {
		return
	}
	if param.Kind == KindOptional || param.Kind == KindResult {
		Unify(param.Elem, UnwrapOptionalOrResultIf(arg, true), bindings)
		return
	}
	if param.Kind != arg.Kind && !(param.Kind == KindArray && arg.Kind == KindFixedArray) {
		return
	}
	Unify(param.Elem, arg.Elem, bindings)
	Unify(param.Key, arg.Key, bindings)
	Unify(param.Result, arg.Result, bindings)
	for i := 0; i < len(param.Args) && i < len(arg.Args); i++ {
		Unify(param.Args[i], arg.Args[i], bindings)
	}
	for i := 0; i < len(param.Params) && i < len(arg.Params); i++ {
		Unify(param.Params[i], arg.Params[i], bindings)
	}
}

// Package symbols owns the canonical declaration set of a snapshot: module
// membership, qualified lookup, members and methods of types, imports and
// the implicitly visible builtin module.
package symbols

import (
	"unicode"

	"github.com/jward/vsense/internal/syntax"
)

// Kind classifies a Declaration.
type Kind int

const (
	KindFunction Kind = iota + 1
	KindMethod
	KindStruct
	KindField
	KindEnum
	KindEnumField
	KindInterface
	KindInterfaceMethod
	KindInterfaceField
	KindUnion
	KindConst
	KindAlias
	KindParam
	KindReceiver
	KindLocal
	KindGlobal
	KindLabel
	KindGenericParam
	KindImport
	KindErr
)

var kindNames = map[Kind]string{
	KindFunction:        "function",
	KindMethod:          "method",
	KindStruct:          "struct",
	KindField:           "field",
	KindEnum:            "enum",
	KindEnumField:       "enum_field",
	KindInterface:       "interface",
	KindInterfaceMethod: "interface_method",
	KindInterfaceField:  "interface_field",
	KindUnion:           "union",
	KindConst:           "constant",
	KindAlias:           "type_alias",
	KindParam:           "parameter",
	KindReceiver:        "receiver",
	KindLocal:           "variable",
	KindGlobal:          "global",
	KindLabel:           "label",
	KindGenericParam:    "generic_parameter",
	KindImport:          "import",
	KindErr:             "err",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsType reports whether declarations of this kind name a type.
func (k Kind) IsType() bool {
	switch k {
	case KindStruct, KindEnum, KindInterface, KindUnion, KindAlias, KindGenericParam:
		return true
	}
	return false
}

// IsFunc reports whether declarations of this kind are callable
// declarations with a signature.
func (k Kind) IsFunc() bool {
	return k == KindFunction || k == KindMethod || k == KindInterfaceMethod
}

// IsMember reports whether declarations of this kind belong to a type.
func (k Kind) IsMember() bool {
	switch k {
	case KindMethod, KindField, KindEnumField, KindInterfaceMethod, KindInterfaceField:
		return true
	}
	return false
}

// Declaration is a named entity introduced by source code. Identity is
// pointer identity within one Table.
type Declaration struct {
	Name    string
	Kind    Kind
	Module  string
	Public  bool
	Mutable bool

	// Node is the declaring node: FnDecl, StructDecl, FieldDecl, Param,
	// the VarDecl of a local, and so on. NameNode is the identifier that
	// names it, when there is one.
	Node     *syntax.Node
	NameNode *syntax.Node
	File     *syntax.File

	// Parent is the owning type for members, nil otherwise.
	Parent *Declaration

	// Receiver is the receiver type name of a method; Embedded marks an
	// embedded struct field whose Name is the embedded type's name.
	Receiver string
	Embedded bool
}

// Position returns the 0-based start of the declaration's name, falling
// back to the declaring node.
func (d *Declaration) Position() syntax.Point {
	if d.NameNode != nil {
		return d.NameNode.Span.StartPos
	}
	if d.Node != nil {
		return d.Node.Span.StartPos
	}
	return syntax.Point{}
}

// Path returns the declaring file's path, or "" for synthetic declarations.
func (d *Declaration) Path() string {
	if d.File == nil {
		return ""
	}
	return d.File.Path
}

// QualifiedName returns "module.Name" or "module.Type.member".
func (d *Declaration) QualifiedName() string {
	if d.Parent != nil {
		return d.Parent.QualifiedName() + "." + d.Name
	}
	if d.Kind == KindMethod && d.Receiver != "" {
		return d.Module + "." + d.Receiver + "." + d.Name
	}
	return d.Module + "." + d.Name
}

// VisibleFrom reports whether code in module may reference d.
func (d *Declaration) VisibleFrom(module string) bool {
	return d.Public || d.Module == module || d.Module == BuiltinModule
}

// Exported reports whether name follows the capitalised-export convention.
func Exported(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

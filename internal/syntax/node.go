// Package syntax is the tree model the analyser walks: typed nodes with
// parent/child navigation, field roles and source spans.
package syntax

import (
	"sort"
	"strings"
)

// Point is a 0-based line/column position.
type Point struct {
	Line int
	Col  int
}

// Span is a half-open byte range with its start and end points.
type Span struct {
	Start    int
	End      int
	StartPos Point
	EndPos   Point
}

// Contains reports whether offset falls within the span. The end offset is
// included so a caret directly after an identifier still hits it.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset <= s.End
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Node is one element of a syntax tree. A tree is immutable once the parser
// returns it; a source edit produces a fresh tree.
type Node struct {
	Kind     Kind
	Field    string // role within the parent, e.g. "name", "callee"
	Text     string // identifier text, literal text or operator
	Span     Span
	Flags    Flag
	Parent   *Node
	Children []*Node
}

// Has reports whether all bits in f are set on the node.
func (n *Node) Has(f Flag) bool {
	return n != nil && n.Flags&f == f
}

// Is reports whether the node is non-nil and of one of the given kinds.
func (n *Node) Is(kinds ...Kind) bool {
	if n == nil {
		return false
	}
	for _, k := range kinds {
		if n.Kind == k {
			return true
		}
	}
	return false
}

// Append adds child to n, setting its field role and parent link.
func (n *Node) Append(field string, child *Node) {
	if child == nil {
		return
	}
	child.Field = field
	child.Parent = n
	n.Children = append(n.Children, child)
}

// ChildByField returns the first child with the given role, or nil.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns all children with the given role, in source order.
func (n *Node) ChildrenByField(field string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenOfKind returns the direct children of kind k.
func (n *Node) ChildrenOfKind(k Kind) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// Name returns the text of the node's "name" child, or "".
func (n *Node) Name() string {
	if c := n.ChildByField(FieldName); c != nil {
		return c.Text
	}
	return ""
}

// Index returns n's position among its parent's children, or -1.
func (n *Node) Index() int {
	if n == nil || n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// IndexInField returns n's position among siblings sharing its field role.
func (n *Node) IndexInField() int {
	if n == nil || n.Parent == nil {
		return -1
	}
	i := 0
	for _, c := range n.Parent.Children {
		if c == n {
			return i
		}
		if c.Field == n.Field {
			i++
		}
	}
	return -1
}

// NextSibling returns the next child of n's parent, or nil.
func (n *Node) NextSibling() *Node {
	i := n.Index()
	if i < 0 || i+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[i+1]
}

// PrevSibling returns the previous child of n's parent, or nil.
func (n *Node) PrevSibling() *Node {
	i := n.Index()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// Ancestor returns the nearest strict ancestor of one of the given kinds.
func (n *Node) Ancestor(kinds ...Kind) *Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Is(kinds...) {
			return p
		}
	}
	return nil
}

// Root walks up to the tree root.
func (n *Node) Root() *Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Walk visits n and its descendants depth-first in source order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// NodeAt returns the narrowest descendant whose span contains offset.
func (n *Node) NodeAt(offset int) *Node {
	if n == nil || !n.Span.Contains(offset) {
		return nil
	}
	for _, c := range n.Children {
		if hit := c.NodeAt(offset); hit != nil {
			return hit
		}
	}
	return n
}

// String renders the subtree as an s-expression, mostly for tests.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		b.WriteString("()")
		return
	}
	b.WriteByte('(')
	if n.Field != "" {
		b.WriteString(n.Field)
		b.WriteByte(':')
	}
	b.WriteString(n.Kind.String())
	if n.Text != "" {
		b.WriteString(" ")
		b.WriteString(n.Text)
	}
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}

// File is one parsed source file.
type File struct {
	Path   string
	Module string // module path, e.g. "geometry.shapes"
	Source []byte
	Root   *Node

	lineStarts []int
}

// NewFile wraps a parsed root node.
func NewFile(path, module string, src []byte, root *Node) *File {
	f := &File{Path: path, Module: module, Source: src, Root: root}
	f.lineStarts = append(f.lineStarts, 0)
	for i, c := range src {
		if c == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

// Offset converts a 0-based line/column into a byte offset, clamped to the
// file's bounds.
func (f *File) Offset(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(f.lineStarts) {
		return len(f.Source)
	}
	off := f.lineStarts[line] + col
	if off > len(f.Source) {
		off = len(f.Source)
	}
	return off
}

// PointAt converts a byte offset back into a line/column.
func (f *File) PointAt(offset int) Point {
	line := sort.Search(len(f.lineStarts), func(i int) bool { return f.lineStarts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return Point{Line: line, Col: offset - f.lineStarts[line]}
}

// NodeAt returns the narrowest node covering line/col.
func (f *File) NodeAt(line, col int) *Node {
	return f.Root.NodeAt(f.Offset(line, col))
}

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int {
	return len(f.lineStarts)
}

// ShortModule returns the last segment of the module path.
func ShortModule(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

var primitives = map[string]bool{
	"bool": true, "string": true, "rune": true, "byte": true, "char": true,
	"i8": true, "i16": true, "int": true, "i32": true, "i64": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "usize": true,
	"f32": true, "f64": true, "voidptr": true, "byteptr": true, "charptr": true,
}

// IsPrimitive reports whether name is a builtin scalar type name.
func IsPrimitive(name string) bool {
	return primitives[name]
}

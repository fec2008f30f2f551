package types

// widening lists the direct numeric promotions; Promotes follows them
// transitively.
var widening = map[string][]string{
	"i8":  {"i16", "f32", "f64"},
	"i16": {"int", "f32", "f64"},
	"int": {"i64", "f32", "f64"},
	"i64": {"f64"},
	"u8":  {"u16", "i16", "f32", "f64"},
	"u16": {"u32", "int", "f32", "f64"},
	"u32": {"u64", "i64", "f64"},
	"u64": {"f64"},
	"f32": {"f64"},

	"isize": {"i64", "f64"},
	"usize": {"u64", "f64"},
}

var promotions = closure(widening)

func closure(edges map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(edges))
	for from := range edges {
		seen := map[string]bool{}
		stack := append([]string(nil), edges[from]...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, edges[n]...)
		}
		out[from] = seen
	}
	return out
}

// canonical maps alternate spellings onto one primitive name.
func canonical(name string) string {
	switch name {
	case "i32":
		return "int"
	case "byte":
		return "u8"
	case "rune":
		return "int"
	}
	return name
}

// IsNumeric reports whether t (after aliases) is an integer or float.
func IsNumeric(t *Type) bool {
	return IsInteger(t) || IsFloat(t)
}

// IsInteger reports whether t (after aliases) is an integer primitive.
func IsInteger(t *Type) bool {
	t = Underlying(t)
	if !t.Is(KindPrimitive) {
		return false
	}
	switch canonical(t.Name) {
	case "i8", "i16", "int", "i64", "isize", "u8", "u16", "u32", "u64", "usize":
		return true
	}
	return false
}

// IsFloat reports whether t (after aliases) is f32 or f64.
func IsFloat(t *Type) bool {
	t = Underlying(t)
	return t.Is(KindPrimitive) && (t.Name == "f32" || t.Name == "f64")
}

// Promotes reports whether a value of primitive from widens to to without
// an explicit cast.
func Promotes(from, to string) bool {
	from, to = canonical(from), canonical(to)
	return from == to || promotions[from][to]
}

// Promote returns the wider of two operand types for arithmetic. When
// neither widens to the other, or either is not numeric, the left operand
// wins.
func Promote(left, right *Type) *Type {
	if left == nil {
		return right
	}
	if !IsNumeric(left) || !IsNumeric(right) {
		return left
	}
	l, r := Underlying(left), Underlying(right)
	if l.Name != r.Name && Promotes(l.Name, r.Name) {
		return right
	}
	return left
}

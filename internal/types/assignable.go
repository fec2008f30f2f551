package types

import (
	"github.com/jward/vsense/internal/symbols"
)

// MethodSet supplies method signatures for structural interface checks.
// Signatures exclude the receiver.
type MethodSet interface {
	// MethodsOf returns the methods callable on t, by name.
	MethodsOf(t *Type) map[string]*Type
	// InterfaceMethods returns the methods an interface type requires.
	InterfaceMethods(iface *Type) map[string]*Type
}

// Assignable reports whether a value of type from may be used where to is
// expected. With a nil methods, interfaces only accept themselves.
func Assignable(from, to *Type, methods MethodSet) bool {
	if from == nil || to == nil {
		return false
	}
	if Identical(from, to) {
		return true
	}
	if to.Kind == KindGenericParam || from.Kind == KindGenericParam {
		return true
	}

	// Aliases are interchangeable with what they name.
	if from.Kind == KindAlias || from.Kind == KindBuiltin {
		if from.Elem != nil && Assignable(from.Elem, to, methods) {
			return true
		}
	}
	if to.Kind == KindAlias || to.Kind == KindBuiltin {
		if to.Elem != nil && Assignable(from, to.Elem, methods) {
			return true
		}
	}

	switch to.Kind {
	case KindPrimitive:
		f := Underlying(from)
		if f.Is(KindPrimitive) && IsNumeric(f) && IsNumeric(to) {
			return Promotes(f.Name, to.Name)
		}
		if to.Name == "voidptr" {
			return f.Is(KindPointer) || f.Is(KindPrimitive) && (f.Name == "byteptr" || f.Name == "charptr")
		}
		return false

	case KindOptional:
		if from.Kind == KindOptional {
			return from.Elem == nil || to.Elem == nil || Assignable(from.Elem, to.Elem, methods)
		}
		return to.Elem == nil || Assignable(from, to.Elem, methods)

	case KindResult:
		if from.Kind == KindResult {
			return from.Elem == nil || to.Elem == nil || Assignable(from.Elem, to.Elem, methods)
		}
		if isIError(from) {
			return true
		}
		return to.Elem == nil || Assignable(from, to.Elem, methods)

	case KindInterface:
		return implements(from, to, methods)

	case KindUnion:
		for _, v := range to.Args {
			if Identical(from, v) || Identical(Underlying(from), v) {
				return true
			}
		}
		return false

	case KindFixedArray:
		return false

	case KindArray:
		f := Underlying(from)
		return f.Is(KindFixedArray) && Identical(f.Elem, to.Elem)

	case KindPointer:
		f := Underlying(from)
		return f.Is(KindPointer) && Identical(Underlying(f.Elem), Underlying(to.Elem))
	}
	return false
}

func isIError(t *Type) bool {
	t = Deref(t)
	return t.Is(KindInterface) && t.Decl != nil && t.Decl.Name == "IError" && t.Decl.Module == symbols.BuiltinModule
}

// implements reports whether from structurally satisfies the interface to:
// every required method exists on from with an identical signature.
func implements(from, to *Type, methods MethodSet) bool {
	if Identical(Deref(from), to) {
		return true
	}
	if methods == nil {
		return false
	}
	required := methods.InterfaceMethods(to)
	if len(required) == 0 {
		return true
	}
	have := methods.MethodsOf(from)
	for name, sig := range required {
		got, ok := have[name]
		if !ok || !Identical(got, sig) {
			return false
		}
	}
	return true
}

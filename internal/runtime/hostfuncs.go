package runtime

import (
	"context"
	"fmt"
	"os"

	"github.com/risor-io/risor/object"

	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/types"
)

// position reads a (file, line, col) triple starting at args[i].
func position(name string, args []object.Object, i int) (string, int, int, *object.Error) {
	path, err := toString(args[i])
	if err != nil {
		return "", 0, 0, object.Errorf("%s: file: %v", name, err)
	}
	line, err := toInt64(args[i+1])
	if err != nil {
		return "", 0, 0, object.Errorf("%s: line: %v", name, err)
	}
	col, err := toInt64(args[i+2])
	if err != nil {
		return "", 0, 0, object.Errorf("%s: col: %v", name, err)
	}
	return path, int(line), int(col), nil
}

func typeObject(t *types.Type) object.Object {
	if t == nil {
		return object.Nil
	}
	return object.NewString(t.String())
}

// makeTypeAtFn creates the "type_at" host function.
//
// type_at(file, line, col) → string or nil
func makeTypeAtFn(h Host) *object.Builtin {
	return object.NewBuiltin("type_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("type_at", 3, len(args))
		}
		path, line, col, errObj := position("type_at", args, 0)
		if errObj != nil {
			return errObj
		}
		return typeObject(h.TypeAt(path, line, col))
	})
}

// makeExpectedTypeAtFn creates "expected_type_at".
//
// expected_type_at(file, line, col) → string or nil
func makeExpectedTypeAtFn(h Host) *object.Builtin {
	return object.NewBuiltin("expected_type_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("expected_type_at", 3, len(args))
		}
		path, line, col, errObj := position("expected_type_at", args, 0)
		if errObj != nil {
			return errObj
		}
		return typeObject(h.ExpectedTypeAt(path, line, col))
	})
}

// makeDefinitionAtFn creates "definition_at". An ambiguous reference
// yields every candidate.
//
// definition_at(file, line, col) → list of declaration maps
func makeDefinitionAtFn(h Host) *object.Builtin {
	return object.NewBuiltin("definition_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("definition_at", 3, len(args))
		}
		path, line, col, errObj := position("definition_at", args, 0)
		if errObj != nil {
			return errObj
		}
		return declarationsToList(h.DefinitionAt(path, line, col))
	})
}

// makeDeclarationsFn creates "declarations".
//
// declarations(module) → list of declaration maps
func makeDeclarationsFn(h Host) *object.Builtin {
	return object.NewBuiltin("declarations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declarations", 1, len(args))
		}
		module, err := toString(args[0])
		if err != nil {
			return object.Errorf("declarations: %v", err)
		}
		return declarationsToList(h.DeclarationsInModule(module))
	})
}

// makeModulesFn creates "modules".
//
// modules() → list of module paths
func makeModulesFn(h Host) *object.Builtin {
	return object.NewBuiltin("modules", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("modules", 0, len(args))
		}
		mods := h.Modules()
		results := make([]object.Object, 0, len(mods))
		for _, m := range mods {
			results = append(results, object.NewString(m))
		}
		return object.NewList(results)
	})
}

// makeAssignableFn creates "assignable": whether the type at the first
// position may be assigned where the type at the second is required.
// Unknown types are never assignable.
//
// assignable(file, line, col, file2, line2, col2) → bool
func makeAssignableFn(h Host) *object.Builtin {
	return object.NewBuiltin("assignable", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 6 {
			return object.NewArgsError("assignable", 6, len(args))
		}
		fromPath, fromLine, fromCol, errObj := position("assignable", args, 0)
		if errObj != nil {
			return errObj
		}
		toPath, toLine, toCol, errObj := position("assignable", args, 3)
		if errObj != nil {
			return errObj
		}
		from := h.TypeAt(fromPath, fromLine, fromCol)
		to := h.TypeAt(toPath, toLine, toCol)
		if from == nil || to == nil {
			return object.NewBool(false)
		}
		return object.NewBool(h.Assignable(from, to))
	})
}

// declarationsToList converts declarations to a Risor list of maps.
func declarationsToList(decls []*symbols.Declaration) object.Object {
	results := make([]object.Object, 0, len(decls))
	for _, d := range decls {
		pos := d.Position()
		results = append(results, object.NewMap(map[string]object.Object{
			"name":           object.NewString(d.Name),
			"kind":           object.NewString(d.Kind.String()),
			"module":         object.NewString(d.Module),
			"qualified_name": object.NewString(d.QualifiedName()),
			"path":           object.NewString(d.Path()),
			"line":           object.NewInt(int64(pos.Line)),
			"col":            object.NewInt(int64(pos.Col)),
			"public":         object.NewBool(d.Public),
			"mutable":        object.NewBool(d.Mutable),
		}))
	}
	return object.NewList(results)
}

// logObject provides log.info/warn/error methods for Risor scripts.
// Messages go to stderr so script output on stdout stays clean.
type logObject struct {
	prefix string
}

func (l *logObject) Info(msg string) {
	fmt.Fprintf(os.Stderr, "[%s] INFO: %s\n", l.prefix, msg)
}

func (l *logObject) Warn(msg string) {
	fmt.Fprintf(os.Stderr, "[%s] WARN: %s\n", l.prefix, msg)
}

func (l *logObject) Error(msg string) {
	fmt.Fprintf(os.Stderr, "[%s] ERROR: %s\n", l.prefix, msg)
}

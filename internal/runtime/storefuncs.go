package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/vsense/internal/store"
)

// makeFilesFn creates "files", the indexed files in path order.
//
// files() → list of {id, path, module, hash, line_count, parse_errors}
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		out := make([]object.Object, 0, len(files))
		for _, f := range files {
			out = append(out, object.NewMap(map[string]object.Object{
				"id":           object.NewInt(f.ID),
				"path":         object.NewString(f.Path),
				"module":       object.NewString(f.Module),
				"hash":         object.NewString(f.Hash),
				"line_count":   object.NewInt(int64(f.LineCount)),
				"parse_errors": object.NewInt(int64(f.ParseErrors)),
			}))
		}
		return object.NewList(out)
	})
}

// makeIndexedFn creates "indexed", the persisted declarations with a name,
// across every module.
//
// indexed(name) → list of {id, name, kind, module, qualified_name,
// visibility, signature_hash, line, col}
func makeIndexedFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("indexed", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("indexed", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("indexed: %v", err)
		}
		decls, err := s.DeclarationsByName(name)
		if err != nil {
			return object.Errorf("indexed: %v", err)
		}
		out := make([]object.Object, 0, len(decls))
		for _, d := range decls {
			out = append(out, object.NewMap(map[string]object.Object{
				"id":             object.NewInt(d.ID),
				"name":           object.NewString(d.Name),
				"kind":           object.NewString(d.Kind),
				"module":         object.NewString(d.Module),
				"qualified_name": object.NewString(d.QualifiedName),
				"visibility":     object.NewString(d.Visibility),
				"signature_hash": object.NewString(d.SignatureHash),
				"line":           object.NewInt(int64(d.StartLine)),
				"col":            object.NewInt(int64(d.StartCol)),
			}))
		}
		return object.NewList(out)
	})
}

// makeUsagesFn creates "usages", the resolved use sites of a persisted
// declaration.
//
// usages(id) → list of {path, name, context, line, col}
func makeUsagesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("usages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("usages", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("usages: %v", err)
		}
		refs, err := s.ReferencesToDeclaration(id)
		if err != nil {
			return object.Errorf("usages: %v", err)
		}
		paths := make(map[int64]string)
		out := make([]object.Object, 0, len(refs))
		for _, ref := range refs {
			p, ok := paths[ref.FileID]
			if !ok {
				f, err := s.FileByID(ref.FileID)
				if err != nil {
					return object.Errorf("usages: %v", err)
				}
				if f != nil {
					p = f.Path
				}
				paths[ref.FileID] = p
			}
			out = append(out, object.NewMap(map[string]object.Object{
				"path":    object.NewString(p),
				"name":    object.NewString(ref.Name),
				"context": object.NewString(ref.Context),
				"line":    object.NewInt(int64(ref.StartLine)),
				"col":     object.NewInt(int64(ref.StartCol)),
			}))
		}
		return object.NewList(out)
	})
}

// makeDBQueryFn creates "db_query" for ad-hoc reads of the index.
//
// db_query(sql, args...) → list of row maps
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		params := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			params = append(params, toSQLArg(arg))
		}
		rows, err := s.DB().QueryContext(ctx, query, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return object.Errorf("db_query: columns: %v", err)
		}
		out := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = fromSQLValue(values[i])
			}
			out = append(out, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(out)
	})
}

func toSQLArg(obj object.Object) any {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value()
	case *object.Float:
		return v.Value()
	case *object.String:
		return v.Value()
	case *object.Bool:
		return v.Value()
	case *object.NilType:
		return nil
	}
	return obj.Inspect()
}

func fromSQLValue(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	}
	return object.NewString(fmt.Sprint(v))
}

func toInt64(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return int64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// Package vsense provides scope-aware semantic analysis of V source trees:
// go-to-definition, the type of the expression under a caret, and the type
// the surrounding context expects there.
//
// # Pipeline
//
// An [Engine] keeps one immutable snapshot of the project's parsed files.
// Every accepted change produces a new snapshot with a higher version, and
// queries run against the snapshot current when [Engine.Query] was called.
//
//  1. Parse: changed files are parsed by a worker pool.
//  2. Persist: declarations, references and imports of changed files are
//     extracted in parallel and committed to SQLite by a single writer.
//  3. Resolve: references in the blast radius of the change are resolved
//     and the resolved targets are persisted.
//
// # Usage
//
//	e, err := vsense.New(".vsense/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	decls := q.DefinitionAt("main.v", 10, 5)
//	typ := q.TypeAt("main.v", 10, 5)
//
// Lines and columns are 0-based; paths are slash-separated and relative to
// the project root.
//
// # Scripts
//
// [Engine.RunScript] executes a Risor script with the query surface bound
// as globals. See the internal/runtime package for the full set.
package vsense

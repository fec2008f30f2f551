// Package runtime runs Risor scripts against the analysis of a snapshot
// and the persisted project index.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/vsense/internal/store"
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/types"
)

// ScriptExt is the extension of Risor scripts and importable modules.
const ScriptExt = ".risor"

// Host is the analysis surface exposed to scripts. Positions are 0-based
// line and column within a project-relative file path. Unknown outcomes
// are nil or empty, never errors.
type Host interface {
	TypeAt(path string, line, col int) *types.Type
	ExpectedTypeAt(path string, line, col int) *types.Type
	DefinitionAt(path string, line, col int) []*symbols.Declaration
	DeclarationsInModule(module string) []*symbols.Declaration
	Modules() []string
	Assignable(from, to *types.Type) bool
}

// Runtime evaluates scripts with host and store functions bound as
// globals. Scripts and their imports come from a directory or an fs.FS.
type Runtime struct {
	host       Host
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and resolves imports from fsys instead of
// the scripts directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime creates a Runtime over host and s. Either may be nil, which
// leaves the matching globals undefined.
func NewRuntime(host Host, s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{host: host, store: s, scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and evaluates the script at scriptPath. extraGlobals
// are bound after, and override, the standard globals.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource evaluates source directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// LoadScript returns the source of a script. Paths are relative to the
// fs.FS when one is configured, otherwise to the scripts directory
// unless absolute.
func (r *Runtime) LoadScript(p string) (string, error) {
	var (
		data []byte
		err  error
		from string
	)
	if r.fsys != nil {
		from = path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
		if data, err = fs.ReadFile(r.fsys, from); err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", from, err)
		}
		return string(data), nil
	}
	from = p
	if !filepath.IsAbs(p) {
		from = filepath.Join(r.scriptsDir, p)
	}
	if data, err = os.ReadFile(from); err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", from, err)
	}
	return string(data), nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.globals(extraGlobals)
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]risor.Option, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}
	if imp := r.importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// importer resolves import statements from the script source, or returns
// nil when scripts come from neither an fs.FS nor a directory.
func (r *Runtime) importer(globalNames []string) importer.Importer {
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{ScriptExt},
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{ScriptExt},
		})
	}
	return nil
}

// globals returns what scripts see: log always, the analysis functions
// with a host, the index functions with a store, then extra.
func (r *Runtime) globals(extra map[string]any) map[string]any {
	g := map[string]any{
		"log": mustProxy(&logObject{prefix: "vsense"}),
	}
	if h := r.host; h != nil {
		g["type_at"] = makeTypeAtFn(h)
		g["expected_type_at"] = makeExpectedTypeAtFn(h)
		g["definition_at"] = makeDefinitionAtFn(h)
		g["declarations"] = makeDeclarationsFn(h)
		g["modules"] = makeModulesFn(h)
		g["assignable"] = makeAssignableFn(h)
	}
	if s := r.store; s != nil {
		g["files"] = makeFilesFn(s)
		g["indexed"] = makeIndexedFn(s)
		g["usages"] = makeUsagesFn(s)
		g["db_query"] = makeDBQueryFn(s)
	}
	for k, v := range extra {
		g[k] = v
	}
	return g
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

package vsense

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/vsense/internal/analysis"
	"github.com/jward/vsense/internal/runtime"
	"github.com/jward/vsense/internal/store"
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/syntax"
)

// SourceExt is the extension of files the Engine indexes.
const SourceExt = ".v"

// Metadata keys.
const (
	metaSnapshotVersion = "snapshot_version"
	metaMainModule      = "main_module"
)

// Engine orchestrates file discovery, change detection, parsing,
// persistence, resolution and query access.
type Engine struct {
	store       *store.Store
	root        string
	mainModule  string
	exclude     []string
	useParallel bool

	mu     sync.RWMutex
	snap   *symbols.Snapshot
	hashes map[string]string  // path -> hash of the source in snap
	errs   map[string][]error // path -> parse errors of the source in snap
	index  symbols.Index
	memo   *analysis.Memo

	// blastRadius accumulates file IDs that need re-resolution.
	blastRadius map[int64]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMainModule names the module of files at the project root. The
// default is "main".
func WithMainModule(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.mainModule = name
		}
	}
}

// WithExclude adds gitignore-style patterns of paths to skip during
// directory indexing.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithParallel controls the worker pools. When true (default), parsing and
// extraction run concurrently with a single writer committing to SQLite.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New creates an Engine backed by a SQLite database at dbPath. The
// snapshot version continues from the one recorded in the database.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("vsense: create db dir: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("vsense: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("vsense: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		root:        ".",
		mainModule:  symbols.DefaultMainModule,
		useParallel: true,
		hashes:      make(map[string]string),
		errs:        make(map[string][]error),
		memo:        analysis.NewMemo(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var version uint64
	if v, err := s.GetMetadata(metaSnapshotVersion); err == nil && v != "" {
		version, _ = strconv.ParseUint(v, 10, 64)
	}
	e.snap = symbols.NewSnapshot(version, nil)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Root returns the project root that paths are relative to.
func (e *Engine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Version returns the current snapshot version.
func (e *Engine) Version() uint64 {
	return e.Snapshot().Version
}

// ParseErrors returns the parse errors of path in the current snapshot.
func (e *Engine) ParseErrors(path string) []error {
	rel := relPath(e.Root(), path)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errs[rel]
}

// SettingsChanged reports whether the database was built with a different
// main module. Module paths of every file depend on it, so the caller
// should delete the database and reindex from scratch.
func (e *Engine) SettingsChanged() bool {
	stored, err := e.store.GetMetadata(metaMainModule)
	if err != nil {
		return true
	}
	return stored != "" && stored != e.mainModule
}

// Query returns a QueryBuilder over the current snapshot. It keeps
// answering from that snapshot after later changes.
func (e *Engine) Query() *QueryBuilder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &QueryBuilder{store: e.store, an: e.analyzer(e.snap)}
}

// RunScript executes a Risor script with the query surface of the current
// snapshot bound as globals. Imports resolve relative to the script.
func (e *Engine) RunScript(ctx context.Context, scriptPath string, extras map[string]any) error {
	rt := runtime.NewRuntime(e.Query(), e.store, filepath.Dir(scriptPath))
	if err := rt.RunScript(ctx, filepath.Base(scriptPath), extras); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}
	return nil
}

// RunScriptFS is RunScript for a script and its imports held in fsys.
func (e *Engine) RunScriptFS(ctx context.Context, fsys fs.FS, name string, extras map[string]any) error {
	rt := runtime.NewRuntime(e.Query(), e.store, "", runtime.WithRuntimeFS(fsys))
	if err := rt.RunScript(ctx, name, extras); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}
	return nil
}

func (e *Engine) analyzer(snap *symbols.Snapshot) *analysis.Analyzer {
	return analysis.New(snap, e.index.Table(snap), e.memo)
}

// relPath converts p to a slash path relative to root.
func relPath(root, p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}

func (e *Engine) moduleOf(rel string) string {
	return symbols.ModulePath(rel, e.mainModule)
}

// source is one file's content as read for indexing.
type source struct {
	path string
	src  []byte
	hash string
}

// IndexFiles indexes the given paths, relative to the project root or
// absolute. Files whose content is unchanged are not re-parsed, and files
// whose persisted hash matches are not re-extracted.
//
// Unreadable files are reported after the remaining files are indexed.
// Parse errors never fail indexing; see ParseErrors.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	var (
		sources []source
		errs    []error
	)
	root := e.Root()
	for _, p := range paths {
		rel := relPath(root, p)
		src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", rel, err))
			continue
		}
		sources = append(sources, source{path: rel, src: src, hash: store.ContentHash(src)})
	}
	if err := e.apply(ctx, sources); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("vsense: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// SetFile replaces the content of path with src, as an editor buffer
// would, and produces a new snapshot.
func (e *Engine) SetFile(ctx context.Context, path string, src []byte) error {
	rel := relPath(e.Root(), path)
	return e.apply(ctx, []source{{path: rel, src: src, hash: store.ContentHash(src)}})
}

// RemoveFile drops path from the snapshot and the index. Files that
// referenced its declarations are re-resolved.
func (e *Engine) RemoveFile(ctx context.Context, path string) error {
	return e.remove(ctx, []string{relPath(e.Root(), path)})
}

func (e *Engine) remove(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}

	snap := e.snap
	changed := false
	for _, rel := range paths {
		if snap.File(rel) != nil {
			snap = snap.Without(e.snap.Version+1, rel)
			changed = true
		}
		delete(e.hashes, rel)
		delete(e.errs, rel)

		existing, err := e.store.FileByPath(rel)
		if err != nil {
			return fmt.Errorf("vsense: lookup %s: %w", rel, err)
		}
		if existing == nil {
			continue
		}
		if err := e.addDependents(existing, true); err != nil {
			return fmt.Errorf("vsense: blast radius %s: %w", rel, err)
		}
		delete(e.blastRadius, existing.ID)
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return fmt.Errorf("vsense: delete %s: %w", rel, err)
		}
	}
	if changed {
		if err := e.publish(snap); err != nil {
			return err
		}
	}
	return e.resolve(ctx, e.analyzer(e.snap))
}

// publish makes snap current and records its version.
func (e *Engine) publish(snap *symbols.Snapshot) error {
	e.snap = snap
	if err := e.store.SetMetadata(metaSnapshotVersion, strconv.FormatUint(snap.Version, 10)); err != nil {
		return fmt.Errorf("vsense: record version: %w", err)
	}
	if err := e.store.SetMetadata(metaMainModule, e.mainModule); err != nil {
		return fmt.Errorf("vsense: record main module: %w", err)
	}
	return nil
}

// skipDirs are directories never indexed by the walk fallback.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"thirdparty":   true,
}

// IndexDirectory discovers the .v files under root and indexes them.
// If root is a git work tree, git ls-files decides what is tracked;
// otherwise root is walked honouring .gitignore. Excludes apply to both.
// Files that have disappeared since the last run are removed.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()

	excluded := e.ignoreMatcher(root)
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	kept := paths[:0]
	for _, p := range paths {
		if !excluded.MatchesPath(p) {
			kept = append(kept, p)
		}
	}
	sort.Strings(kept)

	if err := e.prune(ctx, kept); err != nil {
		return err
	}
	return e.IndexFiles(ctx, kept)
}

// prune removes indexed files not in present.
func (e *Engine) prune(ctx context.Context, present []string) error {
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	var gone []string
	for _, f := range e.Snapshot().Files() {
		if !keep[f.Path] {
			gone = append(gone, f.Path)
		}
	}
	indexed, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("vsense: list files: %w", err)
	}
	for _, f := range indexed {
		if !keep[f.Path] && e.Snapshot().File(f.Path) == nil {
			gone = append(gone, f.Path)
		}
	}
	if len(gone) == 0 {
		return nil
	}
	return e.remove(ctx, gone)
}

// ignoreMatcher compiles root's .gitignore together with the configured
// excludes.
func (e *Engine) ignoreMatcher(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFileAndLines(filepath.Join(root, ".gitignore"), e.exclude...)
	if err != nil {
		return ignore.CompileIgnoreLines(e.exclude...)
	}
	return gi
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) source files under root.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || filepath.Ext(line) != SourceExt {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, line)); err != nil {
			continue // deleted but still in the git index
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// walkListFiles discovers source files by walking the filesystem, used when
// git is not available. Skips hidden directories and the skipDirs set.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != SourceExt {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vsense: walk directory: %w", err)
	}
	return paths, nil
}

// parsed is the result of parsing one source.
type parsed struct {
	source
	file *syntax.File
	errs []error
}

// apply parses what changed in sources, publishes the new snapshot, then
// persists and re-resolves. A call with nothing new leaves the version
// where it is.
func (e *Engine) apply(ctx context.Context, sources []source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}

	var toParse []source
	for _, s := range sources {
		if e.hashes[s.path] != s.hash || e.snap.File(s.path) == nil {
			toParse = append(toParse, s)
		}
	}
	results := e.parseAll(ctx, toParse)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}

	if len(results) > 0 {
		parsed := make([]*syntax.File, 0, len(results))
		for _, r := range results {
			parsed = append(parsed, r.file)
			e.hashes[r.path] = r.hash
			e.errs[r.path] = r.errs
		}
		if err := e.publish(e.snap.WithFiles(e.snap.Version+1, parsed...)); err != nil {
			return err
		}
	}

	an := e.analyzer(e.snap)
	if err := e.persist(ctx, an, sources); err != nil {
		return err
	}
	return e.resolve(ctx, an)
}

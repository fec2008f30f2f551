package symbols

import (
	"path"
	"sort"
	"strings"

	"github.com/jward/vsense/internal/syntax"
)

// DefaultMainModule names the module of files at the project root.
const DefaultMainModule = "main"

// Snapshot is an immutable view of every parsed file at one version. Any
// source change produces a new Snapshot with a higher Version.
type Snapshot struct {
	Version uint64

	files map[string]*syntax.File
	paths []string
	byMod map[string][]*syntax.File
	mods  []string
}

// NewSnapshot indexes files by path and module.
func NewSnapshot(version uint64, files []*syntax.File) *Snapshot {
	s := &Snapshot{
		Version: version,
		files:   make(map[string]*syntax.File, len(files)),
		byMod:   make(map[string][]*syntax.File),
	}
	for _, f := range files {
		if _, dup := s.files[f.Path]; dup {
			continue
		}
		s.files[f.Path] = f
		s.paths = append(s.paths, f.Path)
	}
	sort.Strings(s.paths)
	for _, p := range s.paths {
		f := s.files[p]
		if _, ok := s.byMod[f.Module]; !ok {
			s.mods = append(s.mods, f.Module)
		}
		s.byMod[f.Module] = append(s.byMod[f.Module], f)
	}
	sort.Strings(s.mods)
	return s
}

// File returns the file at path, or nil.
func (s *Snapshot) File(path string) *syntax.File {
	return s.files[path]
}

// Files returns all files ordered by path.
func (s *Snapshot) Files() []*syntax.File {
	out := make([]*syntax.File, 0, len(s.paths))
	for _, p := range s.paths {
		out = append(out, s.files[p])
	}
	return out
}

// Modules returns the module paths present, sorted.
func (s *Snapshot) Modules() []string {
	return append([]string(nil), s.mods...)
}

// FilesInModule returns a module's files ordered by path.
func (s *Snapshot) FilesInModule(module string) []*syntax.File {
	return s.byMod[module]
}

// With returns a new snapshot at version with f added or replaced.
func (s *Snapshot) With(version uint64, f *syntax.File) *Snapshot {
	return s.WithFiles(version, f)
}

// WithFiles returns a new snapshot at version with every changed file added
// or replaced. Of several files with one path, the first wins.
func (s *Snapshot) WithFiles(version uint64, changed ...*syntax.File) *Snapshot {
	replaced := make(map[string]bool, len(changed))
	files := make([]*syntax.File, 0, len(s.paths)+len(changed))
	for _, f := range changed {
		replaced[f.Path] = true
		files = append(files, f)
	}
	for _, p := range s.paths {
		if !replaced[p] {
			files = append(files, s.files[p])
		}
	}
	return NewSnapshot(version, files)
}

// Without returns a new snapshot at version with path removed.
func (s *Snapshot) Without(version uint64, path string) *Snapshot {
	files := make([]*syntax.File, 0, len(s.paths))
	for _, p := range s.paths {
		if p != path {
			files = append(files, s.files[p])
		}
	}
	return NewSnapshot(version, files)
}

// ModulePath derives a file's module path from its slash-separated path
// relative to the project root: "a/b/x.v" is module "a.b" and files at the
// root belong to mainModule.
func ModulePath(rel, mainModule string) string {
	if mainModule == "" {
		mainModule = DefaultMainModule
	}
	dir := path.Dir(strings.TrimPrefix(path.Clean(rel), "./"))
	if dir == "." || dir == "/" || dir == "" {
		return mainModule
	}
	return strings.ReplaceAll(strings.Trim(dir, "/"), "/", ".")
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, module string) *File {
	t.Helper()
	f := &File{Path: path, Module: module, Hash: "abc123", LineCount: 10, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestDecl inserts a declaration with minimal required fields.
func insertTestDecl(t *testing.T, s *Store, f *File, parentID *int64, name, kind string) *Declaration {
	t.Helper()
	d := &Declaration{
		FileID:        f.ID,
		ParentID:      parentID,
		Name:          name,
		Kind:          kind,
		Module:        f.Module,
		QualifiedName: f.Module + "." + name,
		Visibility:    "public",
		StartLine:     1, StartCol: 3, EndLine: 4, EndCol: 1,
	}
	id, err := s.InsertDeclaration(d)
	require.NoError(t, err)
	require.Positive(t, id)
	return d
}

func insertTestRef(t *testing.T, s *Store, f *File, name string, line int) *Reference {
	t.Helper()
	ref := &Reference{FileID: f.ID, Name: name, StartLine: line, StartCol: 1, EndLine: line, EndCol: 1 + len(name), Context: "call"}
	id, err := s.InsertReference(ref)
	require.NoError(t, err)
	require.Positive(t, id)
	return ref
}

func resolveTo(t *testing.T, s *Store, ref *Reference, d *Declaration) {
	t.Helper()
	_, err := s.InsertResolvedReference(&ResolvedReference{
		ReferenceID:         ref.ID,
		TargetDeclarationID: &d.ID,
		TargetName:          d.QualifiedName,
		TargetKind:          d.Kind,
		ResolutionKind:      "direct",
	})
	require.NoError(t, err)
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "declarations", "references_", "imports", "resolved_references", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// File operations
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := &File{Path: "geometry/shapes.v", Module: "geometry", Hash: "sha256abc", LineCount: 42, ParseErrors: 1, LastIndexed: time.Now()}
	id, err := s.InsertFile(f)
	require.NoError(t, err)

	got, err := s.FileByPath("geometry/shapes.v")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "geometry", got.Module)
	assert.Equal(t, "sha256abc", got.Hash)
	assert.Equal(t, 42, got.LineCount)
	assert.Equal(t, 1, got.ParseErrors)

	byID, err := s.FileByID(id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "geometry/shapes.v", byID.Path)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("missing.v")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_Update(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	f.Hash = "def456"
	f.LineCount = 3
	require.NoError(t, s.UpdateFile(f))

	got, err := s.FileByPath("main.v")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.Hash)
	assert.Equal(t, 3, got.LineCount)
}

func TestFile_ModulesAndListing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "main.v", "main")
	insertTestFile(t, s, "geometry/b.v", "geometry")
	insertTestFile(t, s, "geometry/a.v", "geometry")

	mods, err := s.Modules()
	require.NoError(t, err)
	assert.Equal(t, []string{"geometry", "main"}, mods)

	files, err := s.FilesByModule("geometry")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "geometry/a.v", files[0].Path)

	all, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// Declaration operations
// =============================================================================

func TestDeclaration_InsertAndQueryByFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	point := insertTestDecl(t, s, f, nil, "Point", "struct")
	insertTestDecl(t, s, f, &point.ID, "x", "field")
	insertTestDecl(t, s, f, nil, "origin", "function")

	decls, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, decls, 3)
	assert.Equal(t, "Point", decls[0].Name)
	assert.Nil(t, decls[0].ParentID)
	require.NotNil(t, decls[1].ParentID)
	assert.Equal(t, point.ID, *decls[1].ParentID)

	children, err := s.DeclarationChildren(point.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "x", children[0].Name)
}

func TestDeclaration_ByModuleSkipsMembersAndMethods(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	other := insertTestFile(t, s, "util/u.v", "util")

	point := insertTestDecl(t, s, f, nil, "Point", "struct")
	insertTestDecl(t, s, f, &point.ID, "x", "field")
	insertTestDecl(t, s, f, nil, "len", "method")
	insertTestDecl(t, s, other, nil, "helper", "function")

	decls, err := s.DeclarationsByModule("main")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "Point", decls[0].Name)
	assert.Equal(t, "public", decls[0].Visibility)
}

func TestDeclaration_ByNameAndID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	d := insertTestDecl(t, s, f, nil, "area", "function")

	byName, err := s.DeclarationsByName("area")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, d.ID, byName[0].ID)

	got, err := s.DeclarationByID(d.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "main.area", got.QualifiedName)

	missing, err := s.DeclarationByID(d.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// References & imports
// =============================================================================

func TestReference_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	insertTestRef(t, s, f, "println", 3)
	insertTestRef(t, s, f, "area", 4)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "println", refs[0].Name)
	assert.Equal(t, "call", refs[0].Context)

	byName, err := s.ReferencesByName("area")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, 4, byName[0].StartLine)
}

func TestImport_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	_, err := s.InsertImport(&Import{FileID: f.ID, Source: "geometry.shapes", LocalAlias: "sh", Symbols: []string{"Circle", "area"}})
	require.NoError(t, err)
	_, err = s.InsertImport(&Import{FileID: f.ID, Source: "os", LocalAlias: "os"})
	require.NoError(t, err)

	imps, err := s.ImportsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, imps, 2)
	assert.Equal(t, "sh", imps[0].LocalAlias)
	assert.Equal(t, []string{"Circle", "area"}, imps[0].Symbols)
	assert.Empty(t, imps[1].Symbols)
}

// =============================================================================
// Resolution
// =============================================================================

func TestResolvedReference_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	d := insertTestDecl(t, s, f, nil, "area", "function")
	ref := insertTestRef(t, s, f, "area", 7)
	resolveTo(t, s, ref, d)

	byRef, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	require.NotNil(t, byRef[0].TargetDeclarationID)
	assert.Equal(t, d.ID, *byRef[0].TargetDeclarationID)

	byTarget, err := s.ResolvedReferencesByTarget(d.ID)
	require.NoError(t, err)
	assert.Len(t, byTarget, 1)

	uses, err := s.ReferencesToDeclaration(d.ID)
	require.NoError(t, err)
	require.Len(t, uses, 1)
	assert.Equal(t, 7, uses[0].StartLine)
}

func TestResolvedReference_UnpersistedTarget(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	ref := insertTestRef(t, s, f, "x", 5)

	err := s.InsertResolvedReferences([]*ResolvedReference{{
		ReferenceID:    ref.ID,
		TargetName:     "x",
		TargetKind:     "variable",
		TargetPath:     "main.v",
		TargetLine:     4,
		TargetCol:      1,
		ResolutionKind: "local",
	}})
	require.NoError(t, err)

	got, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].TargetDeclarationID)
	assert.Equal(t, "variable", got[0].TargetKind)
	assert.Equal(t, 4, got[0].TargetLine)
}

func TestBlast_FilesReferencing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	lib := insertTestFile(t, s, "geometry/shapes.v", "geometry")
	user := insertTestFile(t, s, "main.v", "main")
	insertTestFile(t, s, "other.v", "main")

	area := insertTestDecl(t, s, lib, nil, "area", "function")
	resolveTo(t, s, insertTestRef(t, s, user, "area", 3), area)
	resolveTo(t, s, insertTestRef(t, s, lib, "area", 9), area)

	ids, err := s.FilesReferencingFile(lib.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, ids)

	ids, err = s.FilesReferencingDeclarations([]int64{area.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{user.ID, lib.ID}, ids)

	none, err := s.FilesReferencingDeclarations(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.InsertImport(&Import{FileID: user.ID, Source: "geometry", LocalAlias: "geometry"})
	require.NoError(t, err)
	importers, err := s.FilesImportingSource("geometry")
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, importers)
}

func TestDeleteResolutionDataForFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	d := insertTestDecl(t, s, f, nil, "area", "function")
	ref := insertTestRef(t, s, f, "area", 2)
	resolveTo(t, s, ref, d)

	require.NoError(t, s.DeleteResolutionDataForFiles([]int64{f.ID}))

	got, err := s.ResolvedReferencesByRef(ref.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
	// The extraction data survives.
	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

// =============================================================================
// Deletion
// =============================================================================

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	lib := insertTestFile(t, s, "geometry/shapes.v", "geometry")
	user := insertTestFile(t, s, "main.v", "main")

	circle := insertTestDecl(t, s, lib, nil, "Circle", "struct")
	insertTestDecl(t, s, lib, &circle.ID, "radius", "field")
	// A method declared in another file of the module keeps its row.
	method := insertTestDecl(t, s, user, &circle.ID, "area", "method")
	_, err := s.InsertImport(&Import{FileID: lib.ID, Source: "math", LocalAlias: "math"})
	require.NoError(t, err)
	userRef := insertTestRef(t, s, user, "Circle", 5)
	resolveTo(t, s, userRef, circle)

	require.NoError(t, s.DeleteFileData(lib.ID))

	decls, err := s.DeclarationsByFile(lib.ID)
	require.NoError(t, err)
	assert.Empty(t, decls)
	imps, err := s.ImportsByFile(lib.ID)
	require.NoError(t, err)
	assert.Empty(t, imps)

	rrs, err := s.ResolvedReferencesByRef(userRef.ID)
	require.NoError(t, err)
	assert.Empty(t, rrs, "resolutions into the deleted file are dropped")

	kept, err := s.DeclarationByID(method.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Nil(t, kept.ParentID)

	f, err := s.FileByPath("geometry/shapes.v")
	require.NoError(t, err)
	assert.NotNil(t, f, "file row survives DeleteFileData")
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")
	insertTestDecl(t, s, f, nil, "main", "function")
	insertTestRef(t, s, f, "println", 2)

	require.NoError(t, s.DeleteFile(f.ID))

	got, err := s.FileByPath("main.v")
	require.NoError(t, err)
	assert.Nil(t, got)
	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

// =============================================================================
// Metadata & hashing
// =============================================================================

func TestMetadata_SetAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("snapshot_version")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("snapshot_version", "3"))
	require.NoError(t, s.SetMetadata("snapshot_version", "4"))
	v, err = s.GetMetadata("snapshot_version")
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("module main\n"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash([]byte("module main\n")))
	assert.NotEqual(t, a, ContentHash([]byte("module other\n")))
}

func TestSignatureHash(t *testing.T) {
	t.Parallel()
	base := ComputeSignatureHash("Point", "struct", "public", "", []string{"x", "y"})

	assert.Equal(t, base, ComputeSignatureHash("Point", "struct", "public", "", []string{"y", "x"}),
		"member order does not matter")
	assert.NotEqual(t, base, ComputeSignatureHash("Point", "struct", "private", "", []string{"x", "y"}))
	assert.NotEqual(t, base, ComputeSignatureHash("Point", "struct", "public", "", []string{"x"}))
	assert.NotEqual(t, base, ComputeSignatureHash("Pt", "struct", "public", "", []string{"x", "y"}))
}

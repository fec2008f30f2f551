package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_BuffersWithFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	batch := NewBatchedStore()
	id1, err := batch.InsertDeclaration(&Declaration{FileID: f.ID, Name: "Point", Kind: "struct", Module: "main", QualifiedName: "main.Point"})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")
	id2, err := batch.InsertDeclaration(&Declaration{FileID: f.ID, ParentID: &id1, Name: "x", Kind: "field", Module: "main", QualifiedName: "main.Point.x"})
	require.NoError(t, err)
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)

	decls, err := batch.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, decls, 2)

	// Nothing reaches SQLite before the commit.
	committed, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, committed)
}

func TestBatchedStore_DeclarationsByFile_DoesNotReturnOtherFiles(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()
	_, err := batch.InsertDeclaration(&Declaration{FileID: 1, Name: "InFileA", Kind: "function"})
	require.NoError(t, err)
	_, err = batch.InsertDeclaration(&Declaration{FileID: 2, Name: "InFileB", Kind: "function"})
	require.NoError(t, err)

	decls, err := batch.DeclarationsByFile(1)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "InFileA", decls[0].Name)
}

func TestCommitBatch_RemapsParents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	batch := NewBatchedStore()
	parent, err := batch.InsertDeclaration(&Declaration{FileID: f.ID, Name: "Point", Kind: "struct", Module: "main", QualifiedName: "main.Point"})
	require.NoError(t, err)
	_, err = batch.InsertDeclaration(&Declaration{FileID: f.ID, ParentID: ptr(parent), Name: "x", Kind: "field", Module: "main", QualifiedName: "main.Point.x"})
	require.NoError(t, err)
	_, err = batch.InsertReference(&Reference{FileID: f.ID, Name: "Point", StartLine: 3, Context: "struct_literal"})
	require.NoError(t, err)
	_, err = batch.InsertImport(&Import{FileID: f.ID, Source: "math", LocalAlias: "math"})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	decls, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Positive(t, decls[0].ID)
	require.NotNil(t, decls[1].ParentID)
	assert.Equal(t, decls[0].ID, *decls[1].ParentID)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	imps, err := s.ImportsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, imps, 1)
}

func TestCommitBatch_UnknownParentFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.v", "main")

	batch := NewBatchedStore()
	_, err := batch.InsertDeclaration(&Declaration{FileID: f.ID, ParentID: ptr(int64(-42)), Name: "x", Kind: "field", Module: "main", QualifiedName: "x"})
	require.NoError(t, err)

	err = s.CommitBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in fakeToReal")

	decls, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, decls, "failed batch is rolled back")
}

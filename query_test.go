package vsense

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeometryQuery(t *testing.T) *QueryBuilder {
	t.Helper()
	root := copyFixture(t, "geometry")
	e := newTestEngine(t)
	require.NoError(t, e.IndexDirectory(context.Background(), root))
	return e.Query()
}

func TestQuery_TypeAt(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)

	tests := []struct {
		name      string
		line, col int
		want      string
	}{
		{"call result", 5, 1, "shapes.Circle"},
		{"field access", 6, 1, "f64"},
		{"method result", 7, 1, "f64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.TypeAt("main.v", tt.line, tt.col).String())
		})
	}

	assert.Nil(t, q.TypeAt("main.v", 1, 0), "blank line")
	assert.Nil(t, q.TypeAt("missing.v", 0, 0), "unknown file")
	assert.Equal(t, "shapes.Circle", q.TypeAt("./main.v", 5, 1).String(), "paths are cleaned")
}

func TestQuery_ExpectedTypeAt(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)
	assert.Equal(t, "f64", q.ExpectedTypeAt("main.v", 5, 24).String())
	assert.Nil(t, q.ExpectedTypeAt("missing.v", 0, 0))
}

func TestQuery_DefinitionAt(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)

	decls := q.DefinitionAt("main.v", 5, 13)
	require.Len(t, decls, 1)
	assert.Equal(t, "new_circle", decls[0].Name)
	assert.Equal(t, "shapes", decls[0].Module)
	loc := DeclarationLocation(decls[0])
	require.NotNil(t, loc)
	assert.Equal(t, Location{File: "shapes/shapes.v", StartLine: 7, StartCol: 7, EndLine: 7, EndCol: 17}, *loc)

	// Method declared in a different file than its receiver type.
	decls = q.DefinitionAt("main.v", 7, 8)
	require.Len(t, decls, 1)
	assert.Equal(t, "area", decls[0].Name)
	assert.Equal(t, "shapes/area.v", decls[0].Path())
	assert.Equal(t, 4, decls[0].Position().Line)
	assert.Equal(t, 18, decls[0].Position().Col)

	decls = q.DefinitionAt("main.v", 6, 8)
	require.Len(t, decls, 1)
	assert.Equal(t, "radius", decls[0].Name)
	assert.Equal(t, "shapes/shapes.v", decls[0].Path())

	assert.Empty(t, q.DefinitionAt("main.v", 1, 0))
	assert.Empty(t, q.DefinitionAt("missing.v", 0, 0))
}

func TestQuery_ReferencesAt(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)

	// From the declaration of new_circle.
	locs, err := q.ReferencesAt("shapes/shapes.v", 7, 7)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, Location{File: "main.v", StartLine: 5, StartCol: 13, EndLine: 5, EndCol: 23}, locs[0])

	// From a use site of the method.
	locs, err = q.ReferencesAt("main.v", 7, 8)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "main.v", locs[0].File)

	// A local is answered from the snapshot: c is used on lines 6 and 7.
	locs, err = q.ReferencesAt("main.v", 6, 6)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, 6, locs[0].StartLine)
	assert.Equal(t, 7, locs[1].StartLine)

	locs, err = q.ReferencesAt("missing.v", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestQuery_DeclarationsInModule(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)

	var names []string
	for _, d := range q.DeclarationsInModule("shapes") {
		names = append(names, d.Name)
	}
	// File path order (area.v before shapes.v), then source order.
	assert.Equal(t, []string{"pi", "Circle", "new_circle"}, names)
	assert.Empty(t, q.DeclarationsInModule("nowhere"))
}

func TestQuery_Assignable(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)
	circle := q.TypeAt("main.v", 5, 1)
	radius := q.TypeAt("main.v", 6, 1)
	require.NotNil(t, circle)
	require.NotNil(t, radius)

	assert.True(t, q.Assignable(circle, circle))
	assert.True(t, q.Assignable(radius, radius))
	assert.False(t, q.Assignable(circle, radius))

	decls := q.DefinitionAt("main.v", 6, 8)
	require.Len(t, decls, 1)
	assert.True(t, q.Assignable(q.DeclType(decls[0]), radius), "field type matches its access")
}

func TestQuery_ModulesAndFiles(t *testing.T) {
	t.Parallel()
	q := newGeometryQuery(t)
	assert.Equal(t, []string{"main", "shapes"}, q.Modules())

	files, err := q.Files()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "main.v", files[0].Path)
	assert.Equal(t, "main", files[0].Module)
	assert.Equal(t, uint64(1), q.Snapshot().Version)
}

package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeResult parses a JSON envelope, decoding results into out.
func decodeResult(t *testing.T, raw string, out any) CLIResult {
	t.Helper()
	var env struct {
		Command string          `json:"command"`
		Results json.RawMessage `json:"results"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	if out != nil && len(env.Results) > 0 {
		require.NoError(t, json.Unmarshal(env.Results, out))
	}
	return CLIResult{Command: env.Command, Error: env.Error}
}

func TestQueryDefinition_JSON(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "definition", "main.v", "5", "13")
	require.NoError(t, err)

	var decls []CLIDeclaration
	env := decodeResult(t, out, &decls)
	assert.Equal(t, "definition", env.Command)
	assert.Empty(t, env.Error)
	require.Len(t, decls, 1)
	assert.Equal(t, "new_circle", decls[0].Name)
	assert.Equal(t, "shapes.new_circle", decls[0].QualifiedName)
	assert.Equal(t, "public", decls[0].Visibility)
	assert.Equal(t, "shapes/shapes.v", decls[0].File)
	assert.Equal(t, 7, decls[0].StartLine)
	assert.Equal(t, 7, decls[0].StartCol)
}

func TestQueryDefinition_AbsolutePath(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "definition", filepath.Join(dir, "main.v"), "6", "8")
	require.NoError(t, err)

	var decls []CLIDeclaration
	decodeResult(t, out, &decls)
	require.Len(t, decls, 1)
	assert.Equal(t, "radius", decls[0].Name)
	assert.Equal(t, "f64", decls[0].Type)
}

func TestQueryType(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "type", "main.v", "5", "1")
	require.NoError(t, err)
	var typ CLIType
	decodeResult(t, out, &typ)
	assert.Equal(t, CLIType{Type: "shapes.Circle", Known: true}, typ)

	out, _, err = execute(t, "query", "--root", dir, "--format", "text", "type", "main.v", "6", "1")
	require.NoError(t, err)
	assert.Equal(t, "f64\n", out)

	out, _, err = execute(t, "query", "--root", dir, "type", "main.v", "1", "0")
	require.NoError(t, err)
	decodeResult(t, out, &typ)
	assert.False(t, typ.Known, "blank line")
}

func TestQueryExpected(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "--format", "text", "expected", "main.v", "5", "24")
	require.NoError(t, err)
	assert.Equal(t, "f64\n", out)
}

func TestQueryReferences(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "references", "shapes/shapes.v", "7", "7")
	require.NoError(t, err)
	var locs []CLILocation
	decodeResult(t, out, &locs)
	require.Len(t, locs, 1)
	assert.Equal(t, CLILocation{File: "main.v", StartLine: 5, StartCol: 13, EndLine: 5, EndCol: 23}, locs[0])

	out, _, err = execute(t, "query", "--root", dir, "--format", "text", "references", "main.v", "6", "6")
	require.NoError(t, err)
	assert.Equal(t, "main.v:6:6\nmain.v:7:6\n", out)
}

func TestQueryDecls(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "decls", "shapes")
	require.NoError(t, err)
	var decls []CLIDeclaration
	decodeResult(t, out, &decls)
	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"pi", "Circle", "new_circle"}, names)

	out, _, err = execute(t, "query", "--root", dir, "--format", "text", "decls", "shapes")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "shapes.Circle")
	assert.Contains(t, out, "shapes/shapes.v:2:11")
}

func TestQueryModulesAndFiles(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "modules")
	require.NoError(t, err)
	var modules []string
	decodeResult(t, out, &modules)
	assert.Equal(t, []string{"main", "shapes"}, modules)

	out, _, err = execute(t, "query", "--root", dir, "files")
	require.NoError(t, err)
	var files []CLIFile
	decodeResult(t, out, &files)
	require.Len(t, files, 3)
	assert.Equal(t, "main.v", files[0].Path)
	assert.Equal(t, "main", files[0].Module)
	assert.Equal(t, "shapes/area.v", files[1].Path)
	assert.Equal(t, "shapes", files[1].Module)
}

func TestQuery_InvalidPositionIsReportedInEnvelope(t *testing.T) {
	dir := copyGeometry(t)

	out, _, err := execute(t, "query", "--root", dir, "type", "main.v", "x", "0")
	require.Error(t, err)
	env := decodeResult(t, out, nil)
	assert.Equal(t, "type", env.Command)
	assert.Contains(t, env.Error, `invalid line "x"`)
	assert.True(t, errorHandled, "main must not print the error again")
}

func TestQuery_InvalidPositionText(t *testing.T) {
	dir := copyGeometry(t)

	out, stderr, err := execute(t, "query", "--root", dir, "--format", "text", "type", "main.v", "0", "1.5")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, `invalid col "1.5"`)
}

func TestQuery_ExactArgs(t *testing.T) {
	_, _, err := execute(t, "query", "definition", "main.v", "1")
	assert.Error(t, err)
}

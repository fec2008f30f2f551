package main

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/vsense/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// resetFlags restores flag variables, which persist across Execute calls.
func resetFlags() {
	flagDB = ""
	flagFormat = "json"
	flagMainModule = ""
	flagSerial = false
	flagForce = false
	flagRoot = ""
	errorHandled = false
}

// execute runs the CLI in-process and returns its stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// copyGeometry copies the shared fixture project into a temp dir with a
// settings file marking it as the project root.
func copyGeometry(t *testing.T) string {
	t.Helper()
	src := filepath.Join("..", "..", "testdata", "geometry")
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dst, config.FileName), []byte("parallel = false\n"), 0o644))
	return dst
}

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_SettingsFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), nil, 0o644))
	deep := filepath.Join(root, "shapes")
	require.NoError(t, os.Mkdir(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestResolveDBPath(t *testing.T) {
	t.Cleanup(resetFlags)
	cfg := config.Default()

	flagDB = ""
	assert.Equal(t, filepath.Join("/repo", ".vsense", "index.db"), resolveDBPath("/repo", cfg))

	flagDB = "custom.db"
	assert.Equal(t, filepath.Join("/repo", "custom.db"), resolveDBPath("/repo", cfg))

	flagDB = "/abs/index.db"
	assert.Equal(t, "/abs/index.db", resolveDBPath("/repo", cfg))
}

func TestResolveTargetDir_NotADirectory(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "main.v")
	require.NoError(t, os.WriteFile(file, []byte("module main\n"), 0o644))

	_, err := resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")
}

func TestIndex_WritesDatabase(t *testing.T) {
	dir := copyGeometry(t)

	_, stderr, err := execute(t, "index", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Indexed "+dir)
	assert.Contains(t, stderr, "3 files, 0 parse errors")
	assert.FileExists(t, filepath.Join(dir, ".vsense", "index.db"))
}

func TestIndex_DBFlag(t *testing.T) {
	dir := copyGeometry(t)

	_, stderr, err := execute(t, "index", "--db", "out/other.db", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, filepath.Join(dir, "out", "other.db"))
	assert.FileExists(t, filepath.Join(dir, "out", "other.db"))
}

func TestIndex_Force(t *testing.T) {
	dir := copyGeometry(t)

	_, _, err := execute(t, "index", dir)
	require.NoError(t, err)
	_, stderr, err := execute(t, "index", "--force", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "version 1")
}

func TestIndex_MainModuleChangeRebuilds(t *testing.T) {
	dir := copyGeometry(t)

	_, _, err := execute(t, "index", dir)
	require.NoError(t, err)
	_, stderr, err := execute(t, "index", "--main-module", "app", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "version 1", "a rebuilt index starts over")

	out, _, err := execute(t, "query", "--root", dir, "--format", "text", "modules")
	require.NoError(t, err)
	assert.Equal(t, "main\nshapes\n", out, "settings file does not name app, so main is restored")
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "query", "modules")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestScript_RunsAgainstProject(t *testing.T) {
	dir := copyGeometry(t)
	script := filepath.Join("..", "..", "scripts", "summary.risor")

	_, _, err := execute(t, "script", script, dir)
	require.NoError(t, err)
}

func TestScript_Bundled(t *testing.T) {
	dir := copyGeometry(t)

	_, _, err := execute(t, "script", "summary", dir)
	require.NoError(t, err)

	name, ok := bundledScript("summary.risor")
	assert.True(t, ok)
	assert.Equal(t, "summary.risor", name)
	_, ok = bundledScript("nonexistent")
	assert.False(t, ok)
}

func TestScript_ErrorsAreReported(t *testing.T) {
	dir := copyGeometry(t)
	script := filepath.Join(t.TempDir(), "missing.risor")

	_, _, err := execute(t, "script", script, dir)
	assert.ErrorContains(t, err, "vsense:")
}

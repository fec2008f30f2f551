package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	src := "db = cache/vsense.db\nmain_module = app\nexclude = vendor/, *_gen.v , \nparallel = false\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(src), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "cache/vsense.db", cfg.DB)
	assert.Equal(t, "app", cfg.MainModule)
	assert.Equal(t, []string{"vendor/", "*_gen.v"}, cfg.Exclude)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, filepath.Join(root, "cache/vsense.db"), cfg.DBPath(root))
}

func TestFromProperties_PartialOverrides(t *testing.T) {
	t.Parallel()
	p := properties.MustLoadString("main_module = tools\n")
	cfg := FromProperties(p)
	assert.Equal(t, "tools", cfg.MainModule)
	assert.Equal(t, Default().DB, cfg.DB)
	assert.True(t, cfg.Parallel)
	assert.Nil(t, cfg.Exclude)
}

func TestDBPath_Absolute(t *testing.T) {
	t.Parallel()
	abs := filepath.Join(t.TempDir(), "x.db")
	cfg := &Config{DB: abs}
	assert.Equal(t, abs, cfg.DBPath("/elsewhere"))
}

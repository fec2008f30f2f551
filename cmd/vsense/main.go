package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/vsense"
	"github.com/jward/vsense/internal/config"
	"github.com/jward/vsense/internal/runtime"
	"github.com/jward/vsense/scripts"
	"github.com/spf13/cobra"
)

var (
	flagDB         string
	flagFormat     string
	flagMainModule string
	flagSerial     bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "%s %s\n", errorLabel(), err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vsense",
	Short:         "Scope- and type-aware code intelligence for V projects",
	Long:          "vsense parses V sources, records declarations and references in a SQLite index, and answers type, definition and reference queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .vsense/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagMainModule, "main-module", "", "module name of files at the project root (default: main)")
	rootCmd.PersistentFlags().BoolVar(&flagSerial, "serial", false, "disable worker pools")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a V project",
	Long:  "Parses every .v file under the project, persists declarations and references, and resolves them into the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)

	engine, dbPath, err := openEngine(repoRoot, flagForce)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.IndexDirectory(cmd.Context(), targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	files := engine.Snapshot().Files()
	var parseErrors int
	for _, f := range files {
		parseErrors += len(engine.ParseErrors(f.Path))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %s in %s (%d files, %d parse errors, version %d)\n",
		targetDir,
		time.Since(start).Round(time.Millisecond),
		len(files),
		parseErrors,
		engine.Version(),
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", dbPath)
	return nil
}

var scriptCmd = &cobra.Command{
	Use:   "script <file|name> [path]",
	Short: "Run a Risor script against the index",
	Long: "Indexes the project, then runs a Risor script with the query functions bound as globals. " +
		"A name that is not a file on disk runs the bundled script of that name, e.g. \"summary\".",
	Args: cobra.RangeArgs(1, 2),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args[1:])
	if err != nil {
		return err
	}
	engine, err := openIndexed(cmd.Context(), findRepoRoot(targetDir))
	if err != nil {
		return err
	}
	defer engine.Close()

	if name, ok := bundledScript(args[0]); ok {
		return engine.RunScriptFS(cmd.Context(), scripts.FS, name, nil)
	}
	script, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving script %q: %w", args[0], err)
	}
	return engine.RunScript(cmd.Context(), script, nil)
}

// bundledScript returns the embedded script arg names when arg is not a
// file on disk.
func bundledScript(arg string) (string, bool) {
	if _, err := os.Stat(arg); err == nil {
		return "", false
	}
	name := arg
	if !strings.HasSuffix(name, runtime.ScriptExt) {
		name += runtime.ScriptExt
	}
	if _, err := fs.Stat(scripts.FS, name); err != nil {
		return "", false
	}
	return name, true
}

// openEngine opens the engine for repoRoot with settings from its config
// file overridden by flags. A database built with other settings, or force,
// starts the index from scratch.
func openEngine(repoRoot string, force bool) (*vsense.Engine, string, error) {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, "", err
	}
	if flagMainModule != "" {
		cfg.MainModule = flagMainModule
	}
	if flagSerial {
		cfg.Parallel = false
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	if force {
		if err := removeDB(dbPath); err != nil {
			return nil, "", fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	opts := []vsense.Option{
		vsense.WithMainModule(cfg.MainModule),
		vsense.WithExclude(cfg.Exclude...),
		vsense.WithParallel(cfg.Parallel),
	}
	engine, err := vsense.New(dbPath, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("creating engine: %w", err)
	}
	if !force && engine.SettingsChanged() {
		engine.Close()
		fmt.Fprintf(os.Stderr, "Main module changed, rebuilding %s\n", dbPath)
		return openEngine(repoRoot, true)
	}
	return engine, dbPath, nil
}

// openIndexed opens the engine and brings the index up to date with the
// files on disk. Unchanged files are parsed but not re-persisted.
func openIndexed(ctx context.Context, repoRoot string) (*vsense.Engine, error) {
	engine, _, err := openEngine(repoRoot, false)
	if err != nil {
		return nil, err
	}
	if err := engine.IndexDirectory(ctx, repoRoot); err != nil {
		engine.Close()
		return nil, fmt.Errorf("indexing: %w", err)
	}
	return engine, nil
}

// removeDB deletes the database file and its SQLite sidecars.
func removeDB(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or a
// settings file. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// settings file.
func resolveDBPath(repoRoot string, cfg *config.Config) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return cfg.DBPath(repoRoot)
}

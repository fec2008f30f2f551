package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jward/vsense"
	"github.com/spf13/cobra"
)

var flagRoot string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the semantic index",
	Long: "Run queries against an indexed project. All line and column numbers are 0-based. " +
		"Relative file arguments are taken relative to the project root.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: repo root of the working directory)")

	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(typeCmd)
	queryCmd.AddCommand(expectedCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(declsCmd)
	queryCmd.AddCommand(modulesCmd)
	queryCmd.AddCommand(filesCmd)
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the declarations the reference at a position resolves to",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPositionQuery(cmd, "definition", args, func(q *vsense.QueryBuilder, file string, line, col int) (any, error) {
			decls := q.DefinitionAt(file, line, col)
			out := make([]CLIDeclaration, 0, len(decls))
			for _, d := range decls {
				out = append(out, toCLIDeclaration(q, d))
			}
			return out, nil
		})
	},
}

var typeCmd = &cobra.Command{
	Use:   "type <file> <line> <col>",
	Short: "Show the type of the expression at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPositionQuery(cmd, "type", args, func(q *vsense.QueryBuilder, file string, line, col int) (any, error) {
			return toCLIType(q.TypeAt(file, line, col)), nil
		})
	},
}

var expectedCmd = &cobra.Command{
	Use:   "expected <file> <line> <col>",
	Short: "Show the type the context expects at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPositionQuery(cmd, "expected", args, func(q *vsense.QueryBuilder, file string, line, col int) (any, error) {
			return toCLIType(q.ExpectedTypeAt(file, line, col)), nil
		})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "Find every use of what a position names",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPositionQuery(cmd, "references", args, func(q *vsense.QueryBuilder, file string, line, col int) (any, error) {
			locs, err := q.ReferencesAt(file, line, col)
			if err != nil {
				return nil, err
			}
			return toCLILocations(locs), nil
		})
	},
}

var declsCmd = &cobra.Command{
	Use:   "decls <module>",
	Short: "List the top-level declarations of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "decls", func(q *vsense.QueryBuilder) (any, error) {
			decls := q.DeclarationsInModule(args[0])
			out := make([]CLIDeclaration, 0, len(decls))
			for _, d := range decls {
				out = append(out, toCLIDeclaration(q, d))
			}
			return out, nil
		})
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the modules of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "modules", func(q *vsense.QueryBuilder) (any, error) {
			return CLIModules(q.Modules()), nil
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "files", func(q *vsense.QueryBuilder) (any, error) {
			files, err := q.Files()
			if err != nil {
				return nil, err
			}
			out := make([]CLIFile, 0, len(files))
			for _, f := range files {
				out = append(out, CLIFile{
					ID:          f.ID,
					Path:        f.Path,
					Module:      f.Module,
					LineCount:   f.LineCount,
					ParseErrors: f.ParseErrors,
				})
			}
			return out, nil
		})
	},
}

// --- Helpers ---

// queryRoot returns the project root from --root or the working directory.
func queryRoot() (string, error) {
	if flagRoot != "" {
		return resolveTargetDir([]string{flagRoot})
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// runQuery brings the index up to date, runs fn over a fresh QueryBuilder
// and writes the result.
func runQuery(cmd *cobra.Command, command string, fn func(q *vsense.QueryBuilder) (any, error)) error {
	root, err := queryRoot()
	if err != nil {
		return outputError(cmd, command, err)
	}
	engine, err := openIndexed(cmd.Context(), root)
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer engine.Close()

	results, err := fn(engine.Query())
	if err != nil {
		return outputError(cmd, command, err)
	}
	return outputResult(cmd, CLIResult{Command: command, Results: results})
}

// runPositionQuery parses <file> <line> <col> and runs fn at that position.
func runPositionQuery(cmd *cobra.Command, command string, args []string, fn func(q *vsense.QueryBuilder, file string, line, col int) (any, error)) error {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError(cmd, command, err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError(cmd, command, err)
	}
	return runQuery(cmd, command, func(q *vsense.QueryBuilder) (any, error) {
		root, err := queryRoot()
		if err != nil {
			return nil, err
		}
		file, err := projectPath(root, args[0])
		if err != nil {
			return nil, err
		}
		return fn(q, file, line, col)
	})
}

// projectPath converts a file argument to a slash path relative to root.
func projectPath(root, file string) (string, error) {
	if !filepath.IsAbs(file) {
		return filepath.ToSlash(filepath.Clean(file)), nil
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return filepath.ToSlash(rel), nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorLabel(), err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		return encErr
	}
	return err
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	kindColor  = color.New(color.FgCyan).SprintFunc()
	typeColor  = color.New(color.FgGreen).SprintFunc()
	faintColor = color.New(color.Faint).SprintFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintFunc()
)

func errorLabel() string {
	return errorColor("Error:")
}

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatDeclarationsText formats CLIDeclaration results as aligned columns.
func formatDeclarationsText(w io.Writer, decls []CLIDeclaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVISIBILITY\tTYPE\tLOCATION")
	for _, d := range decls {
		loc := faintColor("builtin")
		if d.File != "" {
			loc = fmt.Sprintf("%s:%d:%d", d.File, d.StartLine, d.StartCol)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.QualifiedName, kindColor(d.Kind), d.Visibility, typeColor(d.Type), loc)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tMODULE\tLINES\tERRORS")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", f.ID, f.Path, f.Module, f.LineCount, f.ParseErrors)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIDeclaration:
		formatDeclarationsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIModules:
		for _, m := range v {
			fmt.Fprintln(w, m)
		}
	case CLIType:
		if v.Known {
			fmt.Fprintln(w, typeColor(v.Type))
		} else {
			fmt.Fprintln(w, faintColor(v.Type))
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

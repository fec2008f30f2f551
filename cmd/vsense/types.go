package main

import "github.com/jward/vsense"

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIDeclaration is a JSON-friendly declaration representation.
type CLIDeclaration struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Module        string `json:"module"`
	QualifiedName string `json:"qualified_name"`
	Visibility    string `json:"visibility"`
	Type          string `json:"type,omitempty"`
	File          string `json:"file,omitempty"`
	StartLine     int    `json:"start_line"`
	StartCol      int    `json:"start_col"`
	EndLine       int    `json:"end_line"`
	EndCol        int    `json:"end_col"`
}

// CLILocation is a JSON-friendly source range.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIType is the answer of a type query. Known is false when no type
// could be determined.
type CLIType struct {
	Type  string `json:"type"`
	Known bool   `json:"known"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Module      string `json:"module"`
	LineCount   int    `json:"line_count"`
	ParseErrors int    `json:"parse_errors"`
}

// CLIModules lists module paths.
type CLIModules []string

func toCLIDeclaration(q *vsense.QueryBuilder, d *vsense.Declaration) CLIDeclaration {
	out := CLIDeclaration{
		Name:          d.Name,
		Kind:          d.Kind.String(),
		Module:        d.Module,
		QualifiedName: d.QualifiedName(),
		Visibility:    "private",
	}
	if d.Public {
		out.Visibility = "public"
	}
	if t := q.DeclType(d); t != nil {
		out.Type = t.String()
	}
	if loc := vsense.DeclarationLocation(d); loc != nil {
		out.File = loc.File
		out.StartLine = loc.StartLine
		out.StartCol = loc.StartCol
		out.EndLine = loc.EndLine
		out.EndCol = loc.EndCol
	}
	return out
}

func toCLILocations(locs []vsense.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, CLILocation(l))
	}
	return out
}

func toCLIType(t *vsense.Type) CLIType {
	if t == nil {
		return CLIType{Type: "unknown"}
	}
	return CLIType{Type: t.String(), Known: true}
}

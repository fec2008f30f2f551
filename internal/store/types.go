package store

import "time"

// File is one indexed source file, keyed by its slash-separated path
// relative to the project root.
type File struct {
	ID          int64
	Path        string
	Module      string
	Hash        string
	LineCount   int
	ParseErrors int
	LastIndexed time.Time
}

// Declaration is a persisted module-level declaration, method, member or
// generic parameter. ParentID links members to their owning type.
type Declaration struct {
	ID            int64
	FileID        int64
	ParentID      *int64
	Name          string
	Kind          string
	Module        string
	QualifiedName string
	Visibility    string
	Mutable       bool
	SignatureHash string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}

// Reference is one use site of a name. Context is the kind of the syntax
// node the name appears under, e.g. "call" or "selector".
type Reference struct {
	ID        int64
	FileID    int64
	Name      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Context   string
}

// Import is one import clause of a file.
type Import struct {
	ID         int64
	FileID     int64
	Source     string
	LocalAlias string
	Symbols    []string
}

// ResolvedReference links a reference to what it names. Targets that are
// not persisted as declarations (locals, parameters, builtins) have a nil
// TargetDeclarationID and are described by the remaining target columns.
type ResolvedReference struct {
	ID                  int64
	ReferenceID         int64
	TargetDeclarationID *int64
	TargetName          string
	TargetKind          string
	TargetPath          string
	TargetLine          int
	TargetCol           int
	ResolutionKind      string
}

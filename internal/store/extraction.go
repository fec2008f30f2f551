package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

const fileCols = `id, path, module, hash, line_count, parse_errors, last_indexed`

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files (path, module, hash, line_count, parse_errors, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Path, f.Module, f.Hash, f.LineCount, f.ParseErrors, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites the mutable columns of an existing file row.
func (s *Store) UpdateFile(f *File) error {
	_, err := s.db.Exec(
		`UPDATE files SET module = ?, hash = ?, line_count = ?, parse_errors = ?, last_indexed = ?
		 WHERE id = ?`,
		f.Module, f.Hash, f.LineCount, f.ParseErrors, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

func scanFile(scanner rowScanner) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Module, &f.Hash, &f.LineCount, &f.ParseErrors, &f.LastIndexed)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

// FilesByModule returns a module's files ordered by path.
func (s *Store) FilesByModule(module string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE module = ? ORDER BY path", module)
}

// Modules returns the distinct module paths of indexed files, sorted.
func (s *Store) Modules() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT module FROM files ORDER BY module")
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	defer rows.Close()
	var mods []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// --- Declaration operations ---

// DeclarationCols is the column list for declaration queries, exported for
// use by QueryBuilder.
const DeclarationCols = `id, file_id, parent_id, name, kind, module, qualified_name, visibility,
	mutable, signature_hash, start_line, start_col, end_line, end_col`

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	res, err := s.db.Exec(insertDeclarationSQL, declarationArgs(d)...)
	if err != nil {
		return 0, fmt.Errorf("insert declaration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

const insertDeclarationSQL = `INSERT INTO declarations (file_id, parent_id, name, kind, module, qualified_name,
	visibility, mutable, signature_hash, start_line, start_col, end_line, end_col)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func declarationArgs(d *Declaration) []any {
	return []any{
		d.FileID, d.ParentID, d.Name, d.Kind, d.Module, d.QualifiedName,
		d.Visibility, boolToInt(d.Mutable), d.SignatureHash,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	}
}

// ScanDeclarationRow scans a single row into a Declaration. Exported for use
// by QueryBuilder.
func ScanDeclarationRow(scanner rowScanner) (*Declaration, error) {
	d := &Declaration{}
	err := scanner.Scan(
		&d.ID, &d.FileID, &d.ParentID, &d.Name, &d.Kind, &d.Module, &d.QualifiedName,
		&d.Visibility, &d.Mutable, &d.SignatureHash,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) queryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d, err := ScanDeclarationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	return s.queryDeclarations("SELECT "+DeclarationCols+" FROM declarations WHERE file_id = ? ORDER BY id", fileID)
}

// DeclarationsByModule returns a module's top-level declarations, those
// without a parent, in file then source order.
func (s *Store) DeclarationsByModule(module string) ([]*Declaration, error) {
	return s.queryDeclarations(
		`SELECT `+qualify("d", DeclarationCols)+`
		 FROM declarations d JOIN files f ON f.id = d.file_id
		 WHERE d.module = ? AND d.parent_id IS NULL AND d.kind != 'method'
		 ORDER BY f.path, d.start_line, d.start_col`,
		module,
	)
}

func (s *Store) DeclarationsByName(name string) ([]*Declaration, error) {
	return s.queryDeclarations("SELECT "+DeclarationCols+" FROM declarations WHERE name = ? ORDER BY id", name)
}

// DeclarationChildren returns the members and generic parameters of a
// declaration.
func (s *Store) DeclarationChildren(id int64) ([]*Declaration, error) {
	return s.queryDeclarations("SELECT "+DeclarationCols+" FROM declarations WHERE parent_id = ? ORDER BY id", id)
}

func (s *Store) DeclarationByID(id int64) (*Declaration, error) {
	d, err := ScanDeclarationRow(s.db.QueryRow("SELECT "+DeclarationCols+" FROM declarations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declaration by id: %w", err)
	}
	return d, nil
}

// --- Reference operations ---

const referenceCols = `id, file_id, name, start_line, start_col, end_line, end_col, context`

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	res, err := s.db.Exec(insertReferenceSQL, referenceArgs(ref)...)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ref.ID = id
	return id, nil
}

const insertReferenceSQL = `INSERT INTO references_ (file_id, name, start_line, start_col, end_line, end_col, context)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

func referenceArgs(ref *Reference) []any {
	return []any{ref.FileID, ref.Name, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol, ref.Context}
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		ref := &Reference{}
		if err := rows.Scan(&ref.ID, &ref.FileID, &ref.Name, &ref.StartLine, &ref.StartCol,
			&ref.EndLine, &ref.EndCol, &ref.Context); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE name = ? ORDER BY id", name)
}

// ReferencesToDeclaration returns the persisted use sites resolved to a
// declaration.
func (s *Store) ReferencesToDeclaration(declID int64) ([]*Reference, error) {
	return s.queryReferences(
		`SELECT `+qualify("r", referenceCols)+`
		 FROM references_ r JOIN resolved_references rr ON rr.reference_id = r.id
		 WHERE rr.target_declaration_id = ?
		 ORDER BY r.file_id, r.start_line, r.start_col`,
		declID,
	)
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	res, err := s.db.Exec(insertImportSQL, importArgs(imp)...)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

const insertImportSQL = `INSERT INTO imports (file_id, source, local_alias, symbols) VALUES (?, ?, ?, ?)`

func importArgs(imp *Import) []any {
	return []any{imp.FileID, imp.Source, imp.LocalAlias, marshalStrings(imp.Symbols)}
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, source, local_alias, symbols FROM imports WHERE file_id = ? ORDER BY id", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		var syms string
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.LocalAlias, &syms); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imp.Symbols = unmarshalStrings(syms)
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

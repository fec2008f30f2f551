package store

import "fmt"

func (s *Store) queryFileIDs(query string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// FilesReferencingDeclarations returns file IDs that have resolved
// references targeting any of the given declarations.
func (s *Store) FilesReferencingDeclarations(declIDs []int64) ([]int64, error) {
	if len(declIDs) == 0 {
		return nil, nil
	}
	ids, err := s.queryFileIDs(
		`SELECT DISTINCT r.file_id
		 FROM resolved_references rr
		 JOIN references_ r ON r.id = rr.reference_id
		 WHERE rr.target_declaration_id IN (`+placeholderList(len(declIDs))+`)`,
		int64sToArgs(declIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files referencing declarations: %w", err)
	}
	return ids, nil
}

// FilesReferencingFile returns file IDs, other than fileID itself, whose
// references resolve into declarations of fileID.
func (s *Store) FilesReferencingFile(fileID int64) ([]int64, error) {
	ids, err := s.queryFileIDs(
		`SELECT DISTINCT r.file_id
		 FROM resolved_references rr
		 JOIN references_ r ON r.id = rr.reference_id
		 JOIN declarations d ON d.id = rr.target_declaration_id
		 WHERE d.file_id = ? AND r.file_id != ?`,
		fileID, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("files referencing file: %w", err)
	}
	return ids, nil
}

// FilesImportingSource returns file IDs that import the given module path.
func (s *Store) FilesImportingSource(source string) ([]int64, error) {
	ids, err := s.queryFileIDs("SELECT DISTINCT file_id FROM imports WHERE source = ?", source)
	if err != nil {
		return nil, fmt.Errorf("files importing source: %w", err)
	}
	return ids, nil
}

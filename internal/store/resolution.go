package store

import (
	"database/sql"
	"fmt"
)

// --- ResolvedReference operations ---

const insertResolvedRefSQL = `INSERT INTO resolved_references (reference_id, target_declaration_id,
	target_name, target_kind, target_path, target_line, target_col, resolution_kind)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func resolvedRefArgs(rr *ResolvedReference) []any {
	return []any{
		rr.ReferenceID, rr.TargetDeclarationID, rr.TargetName, rr.TargetKind,
		rr.TargetPath, rr.TargetLine, rr.TargetCol, rr.ResolutionKind,
	}
}

func (s *Store) InsertResolvedReference(rr *ResolvedReference) (int64, error) {
	res, err := s.db.Exec(insertResolvedRefSQL, resolvedRefArgs(rr)...)
	if err != nil {
		return 0, fmt.Errorf("insert resolved reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rr.ID = id
	return id, nil
}

// InsertResolvedReferences writes a whole resolution pass in one transaction.
func (s *Store) InsertResolvedReferences(rrs []*ResolvedReference) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert resolved references: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertResolvedRefSQL)
	if err != nil {
		return fmt.Errorf("insert resolved references: prepare: %w", err)
	}
	defer stmt.Close()
	for _, rr := range rrs {
		res, err := stmt.Exec(resolvedRefArgs(rr)...)
		if err != nil {
			return fmt.Errorf("insert resolved reference to %q: %w", rr.TargetName, err)
		}
		if rr.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return tx.Commit()
}

const resolvedRefCols = `id, reference_id, target_declaration_id, target_name, target_kind,
	target_path, target_line, target_col, resolution_kind`

func (s *Store) queryResolvedRefs(query string, args ...any) ([]*ResolvedReference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*ResolvedReference
	for rows.Next() {
		rr := &ResolvedReference{}
		var target sql.NullInt64
		if err := rows.Scan(&rr.ID, &rr.ReferenceID, &target, &rr.TargetName, &rr.TargetKind,
			&rr.TargetPath, &rr.TargetLine, &rr.TargetCol, &rr.ResolutionKind); err != nil {
			return nil, fmt.Errorf("scan resolved reference: %w", err)
		}
		if target.Valid {
			rr.TargetDeclarationID = &target.Int64
		}
		refs = append(refs, rr)
	}
	return refs, rows.Err()
}

func (s *Store) ResolvedReferencesByRef(referenceID int64) ([]*ResolvedReference, error) {
	return s.queryResolvedRefs(
		"SELECT "+resolvedRefCols+" FROM resolved_references WHERE reference_id = ? ORDER BY id", referenceID,
	)
}

func (s *Store) ResolvedReferencesByTarget(declID int64) ([]*ResolvedReference, error) {
	return s.queryResolvedRefs(
		"SELECT "+resolvedRefCols+" FROM resolved_references WHERE target_declaration_id = ? ORDER BY id", declID,
	)
}

// DeleteResolutionDataForFiles removes the resolutions of every reference
// that lives in one of the given files.
func (s *Store) DeleteResolutionDataForFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM resolved_references WHERE reference_id IN
			(SELECT id FROM references_ WHERE file_id IN (`+placeholderList(len(fileIDs))+`))`,
		int64sToArgs(fileIDs)...,
	)
	if err != nil {
		return fmt.Errorf("delete resolution data for files: %w", err)
	}
	return nil
}

package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and parent links within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Declarations (parents are buffered before their members)
//  2. References
//  3. Imports
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	for _, d := range batch.Declarations {
		if d.ParentID != nil && *d.ParentID < 0 {
			realID, ok := fakeToReal[*d.ParentID]
			if !ok {
				return fmt.Errorf("commit batch: declaration %q has parent_id=%d not in fakeToReal map", d.Name, *d.ParentID)
			}
			d.ParentID = &realID
		}
		realID, err := insertTx(tx, insertDeclarationSQL, declarationArgs(&d))
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	for _, ref := range batch.References {
		if _, err := insertTx(tx, insertReferenceSQL, referenceArgs(&ref)); err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
	}

	for _, imp := range batch.Imports {
		if _, err := insertTx(tx, insertImportSQL, importArgs(&imp)); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Source, err)
		}
	}

	return tx.Commit()
}

func insertTx(tx *sql.Tx, query string, args []any) (int64, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

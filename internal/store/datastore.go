package store

// DataStore is the interface for extraction-phase writes. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement it.
type DataStore interface {
	// Extraction inserts, each returns the assigned ID.
	InsertDeclaration(d *Declaration) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertImport(imp *Import) (int64, error)

	// DeclarationsByFile lists what has been written for a file so far.
	DeclarationsByFile(fileID int64) ([]*Declaration, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)

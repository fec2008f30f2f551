package vsense

import (
	"github.com/jward/vsense/internal/store"
	"github.com/jward/vsense/internal/symbols"
	"github.com/jward/vsense/internal/types"
)

// Public aliases for internal types used in the Engine and QueryBuilder
// API. No conversion is needed between an alias and its target.

type Store = store.Store
type File = store.File
type Declaration = symbols.Declaration
type Snapshot = symbols.Snapshot
type Type = types.Type

package symbols

import (
	_ "embed"
	"sync"

	"github.com/jward/vsense/internal/parser"
	"github.com/jward/vsense/internal/syntax"
)

// BuiltinModule is implicitly visible from every module without an import.
const BuiltinModule = "builtin"

//go:embed builtin.v
var builtinSource []byte

var (
	builtinOnce sync.Once
	builtinFile *syntax.File
)

// Builtin returns the parsed builtin module file. It is parsed once and
// shared by every snapshot.
func Builtin() *syntax.File {
	builtinOnce.Do(func() {
		builtinFile, _ = parser.ParseFile("<builtin>/builtin.v", BuiltinModule, builtinSource)
	})
	return builtinFile
}

package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ContentHash returns the hex sha256 of a file's contents.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// ComputeSignatureHash computes a deterministic hash from a declaration's
// semantic identity: name, kind, visibility, its type or signature text and
// its member names. Location changes do NOT affect the hash.
func ComputeSignatureHash(name, kind, visibility, signature string, members []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "visibility:%s\n", visibility)
	fmt.Fprintf(h, "signature:%s\n", signature)

	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	fmt.Fprintf(h, "members:%s\n", strings.Join(sorted, ","))

	return fmt.Sprintf("%x", h.Sum(nil))
}

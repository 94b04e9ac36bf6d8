package hash

import (
	"crypto/sha256"

	"github.com/chazu/lya/compiler"
)

// HashProgram computes the SHA-256 content hash of a parsed program.
//
// The hash is computed over a deterministic serialization of the tree
// with names lower-cased and positions dropped. Two sources that differ
// only in layout, comments or the case of names produce the same hash.
func HashProgram(prog *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(prog))
}

// HashSource parses src and hashes the result. It returns false when src
// does not parse; such sources are keyed by their raw bytes instead.
func HashSource(src string) ([32]byte, bool) {
	prog, errs := compiler.Parse(src)
	if len(errs) > 0 {
		return sha256.Sum256([]byte(src)), false
	}
	return HashProgram(prog), true
}

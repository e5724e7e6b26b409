// Checksum algorithms for chunk fingerprints.
//
// The sharder fingerprints the raw bytes of every chunk so that Verify can
// later detect a source file that changed underneath its shards. Three
// algorithms are supported, selectable via ShardOptions.Algorithm.
package linechunk

import (
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm names.
const (
	AlgXXHash3 = "xxh3"    // Default, fastest
	AlgFNV1a   = "fnv1a"   // No external dependencies
	AlgBlake2b = "blake2b" // Cryptographic, 256-bit
)

// newChecksum returns a streaming hash for the named algorithm.
func newChecksum(alg string) (hash.Hash, error) {
	switch alg {
	case AlgXXHash3:
		return xxh3.New(), nil
	case AlgFNV1a:
		return fnv.New64a(), nil
	case AlgBlake2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

func digest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

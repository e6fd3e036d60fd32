package binary

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// RollingChecksum computes the block checksum stored in a DELILA file footer.
//
// The recorder hashes every chunk it writes (a block's 4-byte length prefix
// and its payload are two separate chunks) with xxHash64 at seed 0 and folds
// the chunk hashes into a running state:
//
//	state = rotl64(state, 5) ^ xxh64(chunk)
//
// The final checksum is state ^ totalBytes.
type RollingChecksum struct {
	state uint64
	n     uint64
}

// Update folds one chunk into the checksum. Empty chunks are ignored.
func (c *RollingChecksum) Update(p []byte) {
	if len(p) == 0 {
		return
	}
	c.state = bits.RotateLeft64(c.state, 5) ^ xxhash.Sum64(p)
	c.n += uint64(len(p))
}

// Sum64 returns the checksum over all chunks seen so far.
func (c *RollingChecksum) Sum64() uint64 {
	return c.state ^ c.n
}

// BytesProcessed returns the total number of bytes folded in.
func (c *RollingChecksum) BytesProcessed() uint64 {
	return c.n
}

// Reset returns the checksum to its initial state.
func (c *RollingChecksum) Reset() {
	c.state = 0
	c.n = 0
}

package delila

import (
	"errors"
	"fmt"

	"github.com/delila-daq/go-delila/internal/binary"
)

// Common errors
var (
	// ErrBadMagic means the 8-byte file magic did not match "DELILA02".
	// A footer magic mismatch is reported as a warning instead, since
	// interrupted writes legitimately leave the footer missing or corrupt.
	ErrBadMagic = errors.New("not a DELILA data file")

	// ErrInvalidBlockLength means a block length prefix was zero or above
	// the sanity ceiling. Fatal for the whole file: the stream can no
	// longer be trusted.
	ErrInvalidBlockLength = errors.New("invalid block length")

	// ErrSchemaViolation means an array arity or MessagePack tag did not
	// match the DELILA batch schema. Fatal for the current block.
	ErrSchemaViolation = errors.New("batch schema violation")

	// ErrUnexpectedEOF means the data ran out mid-read.
	ErrUnexpectedEOF = binary.ErrUnexpectedEOF

	// ErrClosed is returned by operations on a closed file.
	ErrClosed = errors.New("file is closed")
)

// MaxBlockLength is the sanity ceiling on a block's declared payload length.
// Anything above it is treated as stream corruption before allocation.
const MaxBlockLength = 100_000_000

// DecodeError reports where decoding stopped. Events emitted before the
// failure remain valid.
type DecodeError struct {
	Block  int   // block index within the data region
	Event  int   // event index within the block, -1 if not event-level
	Offset int64 // absolute file offset of the failure
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Event >= 0 {
		return fmt.Sprintf("block %d, event %d, offset %d: %v", e.Block, e.Event, e.Offset, e.Err)
	}
	return fmt.Sprintf("block %d, offset %d: %v", e.Block, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

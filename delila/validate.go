package delila

import (
	"fmt"

	"github.com/delila-daq/go-delila/internal/binary"
)

// ValidationResult summarizes a file integrity check.
type ValidationResult struct {
	// Valid means the footer is present and complete and the recomputed
	// checksum matches it.
	Valid bool

	// Complete reflects the footer's write_complete flag.
	Complete bool

	// ChecksumOK means the recomputed block checksum matches the footer.
	// Always false when the footer is missing.
	ChecksumOK bool

	// RecoverableBlocks and RecoverableEvents count how much of the data
	// region decodes cleanly, regardless of footer state. Useful for
	// files whose write was interrupted.
	RecoverableBlocks int
	RecoverableEvents uint64

	Errors []string
}

// NeedsRecovery reports whether the file is invalid but still carries
// decodable data.
func (r ValidationResult) NeedsRecovery() bool {
	return !r.Valid && r.RecoverableBlocks > 0
}

// Validate walks the whole data region independently of the streaming state:
// it recomputes the block checksum, counts cleanly decodable blocks and
// events, and cross-checks the footer.
func (f *File) Validate() ValidationResult {
	var r ValidationResult

	if f.footer == nil {
		r.Errors = append(r.Errors, "missing or unreadable footer")
	} else {
		r.Complete = f.footer.WriteComplete
		if !r.Complete {
			r.Errors = append(r.Errors, "file incomplete (crash during write)")
		}
	}

	var sum binary.RollingChecksum
	counting := true
	pos := f.dataStart

	for pos < f.dataEnd {
		lenBuf, err := f.readAt(pos, 4)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("block length unreadable at offset %d: %v", pos, err))
			break
		}
		blockLen, _ := binary.NewCursor(lenBuf).ReadUint32LE()
		if blockLen == 0 || blockLen > MaxBlockLength {
			r.Errors = append(r.Errors, fmt.Sprintf("invalid block length %d at offset %d", blockLen, pos))
			break
		}
		if pos+4+int64(blockLen) > f.dataEnd {
			r.Errors = append(r.Errors, fmt.Sprintf("block at offset %d runs past data region", pos))
			break
		}
		payload, err := f.readAt(pos+4, int(blockLen))
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("block unreadable at offset %d: %v", pos, err))
			break
		}

		sum.Update(lenBuf)
		sum.Update(payload)

		// Recoverability stops at the first undecodable block, but the
		// checksum walk keeps going: it covers raw block bytes only.
		if counting {
			batch, _, _, err := decodeBlock(payload, false, 0)
			if err != nil {
				r.Errors = append(r.Errors, fmt.Sprintf("block %d does not decode: %v", r.RecoverableBlocks, err))
				counting = false
			} else {
				r.RecoverableBlocks++
				r.RecoverableEvents += uint64(len(batch.Events))
			}
		}

		pos += 4 + int64(blockLen)
	}

	if f.footer != nil {
		r.ChecksumOK = sum.Sum64() == f.footer.DataChecksum
		if !r.ChecksumOK {
			r.Errors = append(r.Errors, fmt.Sprintf("checksum mismatch: footer %016x, computed %016x",
				f.footer.DataChecksum, sum.Sum64()))
		}
		r.Valid = r.Complete && r.ChecksumOK
	}

	return r
}

package delila

import (
	"fmt"
	"math"

	"github.com/delila-daq/go-delila/internal/binary"
)

// File format constants.
const (
	// FileMagic opens every DELILA v2 data file.
	FileMagic = "DELILA02"

	// FooterMagic opens the fixed trailer. It differs from the file magic
	// so truncation is detectable.
	FooterMagic = "DLEND002"

	// FooterSize is the fixed size of the trailer in bytes.
	FooterSize = 64
)

// Footer is the fixed 64-byte trailer summarizing a file's contents.
// All numeric fields are little-endian, including the two float64 timestamps.
// That is the opposite byte order from the MessagePack payloads.
type Footer struct {
	DataChecksum     uint64
	TotalEvents      uint64
	DataBytes        uint64
	FirstEventTimeNs float64
	LastEventTimeNs  float64
	FileEndTimeNs    uint64
	WriteComplete    bool
}

// parseFooter decodes a 64-byte trailer. A magic mismatch is an error here;
// the framing layer downgrades it to a warning.
func parseFooter(buf []byte) (*Footer, error) {
	if len(buf) != FooterSize {
		return nil, fmt.Errorf("footer is %d bytes, want %d: %w", len(buf), FooterSize, ErrUnexpectedEOF)
	}
	if string(buf[:8]) != FooterMagic {
		return nil, fmt.Errorf("footer magic %q: %w", buf[:8], ErrBadMagic)
	}

	c := binary.NewCursor(buf[8:])
	var f Footer

	// Fixed-size reads over a fixed-size buffer cannot fail.
	f.DataChecksum, _ = c.ReadUint64LE()
	f.TotalEvents, _ = c.ReadUint64LE()
	f.DataBytes, _ = c.ReadUint64LE()

	bits, _ := c.ReadUint64LE()
	f.FirstEventTimeNs = math.Float64frombits(bits)
	bits, _ = c.ReadUint64LE()
	f.LastEventTimeNs = math.Float64frombits(bits)

	f.FileEndTimeNs, _ = c.ReadUint64LE()
	flag, _ := c.ReadUint8()
	f.WriteComplete = flag == 1

	return &f, nil
}

// appendTo encodes the footer into its fixed 64-byte layout.
func (f *Footer) appendTo(b []byte) []byte {
	b = append(b, FooterMagic...)
	b = appendUint64LE(b, f.DataChecksum)
	b = appendUint64LE(b, f.TotalEvents)
	b = appendUint64LE(b, f.DataBytes)
	b = appendUint64LE(b, math.Float64bits(f.FirstEventTimeNs))
	b = appendUint64LE(b, math.Float64bits(f.LastEventTimeNs))
	b = appendUint64LE(b, f.FileEndTimeNs)
	if f.WriteComplete {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return append(b, 0, 0, 0, 0, 0, 0, 0) // reserved
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(b []byte, v uint64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// Package binary provides low-level binary I/O operations for DELILA file parsing.
package binary

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEOF is returned when a read would run past the end of the
// buffer. The cursor position is left unchanged in that case.
var ErrUnexpectedEOF = errors.New("unexpected end of data")

// Cursor is a bounds-checked, forward-only reader over an in-memory buffer.
//
// The DELILA format mixes two byte orders: file framing and the footer are
// little-endian, while everything inside MessagePack payloads is big-endian.
// Each width therefore gets one primitive per byte order so the two can never
// be conflated at a call site.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates a cursor positioned at the start of buf.
// The buffer is not copied; the caller must not mutate it while decoding.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Next consumes and returns the next n bytes. The returned slice aliases the
// underlying buffer. If fewer than n bytes remain, the position is unchanged
// and the error wraps ErrUnexpectedEOF.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d at offset %d: %w", n, c.pos, ErrUnexpectedEOF)
	}
	if c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w",
			n, c.pos, c.Remaining(), ErrUnexpectedEOF)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns the next byte without advancing the position.
func (c *Cursor) Peek() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, fmt.Errorf("peek at offset %d: %w", c.pos, ErrUnexpectedEOF)
	}
	return c.buf[c.pos], nil
}

// Skip advances the position by n bytes without interpreting them.
func (c *Cursor) Skip(n int) error {
	_, err := c.Next(n)
	return err
}

// ReadUint8 reads an unsigned 8-bit integer.
func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.Next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16LE reads an unsigned 16-bit little-endian integer.
func (c *Cursor) ReadUint16LE() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// ReadUint16BE reads an unsigned 16-bit big-endian integer.
func (c *Cursor) ReadUint16BE() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadUint32LE reads an unsigned 32-bit little-endian integer.
func (c *Cursor) ReadUint32LE() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadUint32BE reads an unsigned 32-bit big-endian integer.
func (c *Cursor) ReadUint32BE() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadUint64LE reads an unsigned 64-bit little-endian integer.
func (c *Cursor) ReadUint64LE() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

// ReadUint64BE reads an unsigned 64-bit big-endian integer.
func (c *Cursor) ReadUint64BE() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]), nil
}

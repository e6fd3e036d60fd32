// Package msgpack implements the subset of the MessagePack encoding used by
// DELILA event batches: arrays, maps, unsigned/signed integers, float64,
// binary byte strings, strings and booleans. Values decode directly into
// typed fields; there is no generic intermediate representation.
package msgpack

import (
	"errors"
	"fmt"
	"math"

	"github.com/delila-daq/go-delila/internal/binary"
)

// ErrUnexpectedTag is returned when the next byte is not a valid tag for the
// value being decoded.
var ErrUnexpectedTag = errors.New("unexpected msgpack tag")

// Format tags. Integers and lengths following a tag are big-endian per the
// MessagePack specification.
const (
	tagFalse   = 0xc2
	tagTrue    = 0xc3
	tagBin8    = 0xc4
	tagBin16   = 0xc5
	tagBin32   = 0xc6
	tagFloat32 = 0xca
	tagFloat64 = 0xcb
	tagUint8   = 0xcc
	tagUint16  = 0xcd
	tagUint32  = 0xce
	tagUint64  = 0xcf
	tagInt8    = 0xd0
	tagInt16   = 0xd1
	tagInt32   = 0xd2
	tagInt64   = 0xd3
	tagStr8    = 0xd9
	tagStr16   = 0xda
	tagStr32   = 0xdb
	tagArray16 = 0xdc
	tagArray32 = 0xdd
	tagMap16   = 0xde
	tagMap32   = 0xdf
)

func tagErr(what string, b byte, c *binary.Cursor) error {
	return fmt.Errorf("%s: tag 0x%02x at offset %d: %w", what, b, c.Pos(), ErrUnexpectedTag)
}

// ReadArrayHeader decodes an array header and returns the element count.
// Recognizes fixarray, array16 and array32.
func ReadArrayHeader(c *binary.Cursor) (int, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, err
	}
	switch {
	case b&0xf0 == 0x90: // fixarray
		c.Skip(1)
		return int(b & 0x0f), nil
	case b == tagArray16:
		c.Skip(1)
		n, err := c.ReadUint16BE()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case b == tagArray32:
		c.Skip(1)
		n, err := c.ReadUint32BE()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, tagErr("array header", b, c)
	}
}

// ReadMapHeader decodes a map header and returns the entry count.
// Recognizes fixmap, map16 and map32.
func ReadMapHeader(c *binary.Cursor) (int, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, err
	}
	switch {
	case b&0xf0 == 0x80: // fixmap
		c.Skip(1)
		return int(b & 0x0f), nil
	case b == tagMap16:
		c.Skip(1)
		n, err := c.ReadUint16BE()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case b == tagMap32:
		c.Skip(1)
		n, err := c.ReadUint32BE()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, tagErr("map header", b, c)
	}
}

// ReadUint decodes an unsigned integer: positive fixint or uint8/16/32/64.
func ReadUint(c *binary.Cursor) (uint64, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, err
	}
	switch {
	case b <= 0x7f: // positive fixint
		c.Skip(1)
		return uint64(b), nil
	case b == tagUint8:
		c.Skip(1)
		v, err := c.ReadUint8()
		return uint64(v), err
	case b == tagUint16:
		c.Skip(1)
		v, err := c.ReadUint16BE()
		return uint64(v), err
	case b == tagUint32:
		c.Skip(1)
		v, err := c.ReadUint32BE()
		return uint64(v), err
	case b == tagUint64:
		c.Skip(1)
		return c.ReadUint64BE()
	default:
		return 0, tagErr("uint", b, c)
	}
}

// ReadInt decodes a signed integer: positive/negative fixint or int8/16/32.
// Non-negative values encoded on the unsigned side (the smallest-representation
// rule encoders follow for small magnitudes) fall back to the unsigned path.
func ReadInt(c *binary.Cursor) (int64, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= 0xe0: // negative fixint
		c.Skip(1)
		return int64(int8(b)), nil
	case b == tagInt8:
		c.Skip(1)
		v, err := c.ReadUint8()
		return int64(int8(v)), err
	case b == tagInt16:
		c.Skip(1)
		v, err := c.ReadUint16BE()
		return int64(int16(v)), err
	case b == tagInt32:
		c.Skip(1)
		v, err := c.ReadUint32BE()
		return int64(int32(v)), err
	default:
		v, err := ReadUint(c)
		if err != nil {
			return 0, err
		}
		return int64(v), nil
	}
}

// ReadFloat64 decodes a big-endian IEEE-754 64-bit float (tag 0xcb only).
func ReadFloat64(c *binary.Cursor) (float64, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if b != tagFloat64 {
		return 0, tagErr("float64", b, c)
	}
	c.Skip(1)
	bits, err := c.ReadUint64BE()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// ReadBool decodes a boolean.
func ReadBool(c *binary.Cursor) (bool, error) {
	b, err := c.Peek()
	if err != nil {
		return false, err
	}
	switch b {
	case tagTrue:
		c.Skip(1)
		return true, nil
	case tagFalse:
		c.Skip(1)
		return false, nil
	default:
		return false, tagErr("bool", b, c)
	}
}

// ReadString decodes a UTF-8 string: fixstr or str8/16/32.
func ReadString(c *binary.Cursor) (string, error) {
	b, err := c.Peek()
	if err != nil {
		return "", err
	}
	var n int
	switch {
	case b&0xe0 == 0xa0: // fixstr
		c.Skip(1)
		n = int(b & 0x1f)
	case b == tagStr8:
		c.Skip(1)
		v, err := c.ReadUint8()
		if err != nil {
			return "", err
		}
		n = int(v)
	case b == tagStr16:
		c.Skip(1)
		v, err := c.ReadUint16BE()
		if err != nil {
			return "", err
		}
		n = int(v)
	case b == tagStr32:
		c.Skip(1)
		v, err := c.ReadUint32BE()
		if err != nil {
			return "", err
		}
		n = int(v)
	default:
		return "", tagErr("string", b, c)
	}
	buf, err := c.Next(n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadUint8Seq decodes a sample sequence that encoders may emit either as a
// raw binary byte string (bin8/16/32) or as an array of unsigned integers.
// It returns the declared sample count and at most max retained samples;
// samples past the cap are consumed from the stream but not kept.
func ReadUint8Seq(c *binary.Cursor, max int) (int, []uint8, error) {
	b, err := c.Peek()
	if err != nil {
		return 0, nil, err
	}

	if b == tagBin8 || b == tagBin16 || b == tagBin32 {
		c.Skip(1)
		var n int
		switch b {
		case tagBin8:
			v, err := c.ReadUint8()
			if err != nil {
				return 0, nil, err
			}
			n = int(v)
		case tagBin16:
			v, err := c.ReadUint16BE()
			if err != nil {
				return 0, nil, err
			}
			n = int(v)
		case tagBin32:
			v, err := c.ReadUint32BE()
			if err != nil {
				return 0, nil, err
			}
			n = int(v)
		}
		raw, err := c.Next(n)
		if err != nil {
			return 0, nil, err
		}
		kept := n
		if kept > max {
			kept = max
		}
		out := make([]uint8, kept)
		copy(out, raw[:kept])
		return n, out, nil
	}

	n, err := ReadArrayHeader(c)
	if err != nil {
		return 0, nil, err
	}
	kept := n
	if kept > max {
		kept = max
	}
	out := make([]uint8, 0, kept)
	for i := 0; i < n; i++ {
		v, err := ReadUint(c)
		if err != nil {
			return 0, nil, err
		}
		if i < max {
			out = append(out, uint8(v))
		}
	}
	return n, out, nil
}

// ReadInt16Seq decodes an array of signed integers coerced to int16, with the
// same declared-count/cap contract as ReadUint8Seq.
func ReadInt16Seq(c *binary.Cursor, max int) (int, []int16, error) {
	n, err := ReadArrayHeader(c)
	if err != nil {
		return 0, nil, err
	}
	kept := n
	if kept > max {
		kept = max
	}
	out := make([]int16, 0, kept)
	for i := 0; i < n; i++ {
		v, err := ReadInt(c)
		if err != nil {
			return 0, nil, err
		}
		if i < max {
			out = append(out, int16(v))
		}
	}
	return n, out, nil
}

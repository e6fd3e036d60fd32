package msgpack

import "math"

// Append functions encode values in their smallest MessagePack representation,
// matching the recorder's serializer. Each appends to b and returns the
// extended slice.

// AppendArrayHeader appends an array header for n elements.
func AppendArrayHeader(b []byte, n int) []byte {
	switch {
	case n < 16:
		return append(b, 0x90|byte(n))
	case n <= math.MaxUint16:
		return append(b, tagArray16, byte(n>>8), byte(n))
	default:
		return append(b, tagArray32, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// AppendMapHeader appends a map header for n entries.
func AppendMapHeader(b []byte, n int) []byte {
	switch {
	case n < 16:
		return append(b, 0x80|byte(n))
	case n <= math.MaxUint16:
		return append(b, tagMap16, byte(n>>8), byte(n))
	default:
		return append(b, tagMap32, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// AppendUint appends an unsigned integer.
func AppendUint(b []byte, v uint64) []byte {
	switch {
	case v <= 0x7f:
		return append(b, byte(v))
	case v <= math.MaxUint8:
		return append(b, tagUint8, byte(v))
	case v <= math.MaxUint16:
		return append(b, tagUint16, byte(v>>8), byte(v))
	case v <= math.MaxUint32:
		return append(b, tagUint32, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(b, tagUint64,
			byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// AppendInt appends a signed integer. Non-negative values use the unsigned
// forms, which is what the recorder's serializer emits for them.
func AppendInt(b []byte, v int64) []byte {
	if v >= 0 {
		return AppendUint(b, uint64(v))
	}
	switch {
	case v >= -32:
		return append(b, byte(v))
	case v >= math.MinInt8:
		return append(b, tagInt8, byte(v))
	case v >= math.MinInt16:
		return append(b, tagInt16, byte(uint16(v)>>8), byte(v))
	case v >= math.MinInt32:
		u := uint32(v)
		return append(b, tagInt32, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	default:
		u := uint64(v)
		return append(b, tagInt64,
			byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
			byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	}
}

// AppendFloat64 appends a float64 (tag 0xcb, big-endian bit pattern).
func AppendFloat64(b []byte, f float64) []byte {
	u := math.Float64bits(f)
	return append(b, tagFloat64,
		byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// AppendBool appends a boolean.
func AppendBool(b []byte, v bool) []byte {
	if v {
		return append(b, tagTrue)
	}
	return append(b, tagFalse)
}

// AppendString appends a UTF-8 string.
func AppendString(b []byte, s string) []byte {
	n := len(s)
	switch {
	case n < 32:
		b = append(b, 0xa0|byte(n))
	case n <= math.MaxUint8:
		b = append(b, tagStr8, byte(n))
	case n <= math.MaxUint16:
		b = append(b, tagStr16, byte(n>>8), byte(n))
	default:
		b = append(b, tagStr32, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(b, s...)
}

// AppendBin appends a raw binary byte string (bin8/16/32).
func AppendBin(b []byte, p []byte) []byte {
	n := len(p)
	switch {
	case n <= math.MaxUint8:
		b = append(b, tagBin8, byte(n))
	case n <= math.MaxUint16:
		b = append(b, tagBin16, byte(n>>8), byte(n))
	default:
		b = append(b, tagBin32, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(b, p...)
}

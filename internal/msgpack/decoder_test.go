package msgpack

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/delila-daq/go-delila/internal/binary"
)

func TestReadArrayHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"fixarray empty", []byte{0x90}, 0},
		{"fixarray max", []byte{0x9f}, 15},
		{"array16", []byte{0xdc, 0x01, 0x00}, 256},
		{"array32", []byte{0xdd, 0x00, 0x01, 0x00, 0x00}, 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ReadArrayHeader(binary.NewCursor(tt.data))
			if err != nil {
				t.Fatalf("ReadArrayHeader failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("expected %d, got %d", tt.want, n)
			}
		})
	}
}

func TestReadArrayHeaderBadTag(t *testing.T) {
	c := binary.NewCursor([]byte{0xcc, 0x01})
	if _, err := ReadArrayHeader(c); !errors.Is(err, ErrUnexpectedTag) {
		t.Fatalf("expected ErrUnexpectedTag, got %v", err)
	}
	// A rejected tag must not be consumed.
	if c.Pos() != 0 {
		t.Errorf("bad tag consumed, pos=%d", c.Pos())
	}
}

// Round-trips through the encoder cover every tag boundary the decoder
// distinguishes: max fixint, the first value forced into each explicit width,
// and the width maxima.
func TestReadUintBoundaries(t *testing.T) {
	values := []uint64{
		0, 1, 0x7f, // positive fixint range
		0x80, 0xff, // uint8
		0x100, 0xffff, // uint16
		0x10000, 0xffffffff, // uint32
		0x100000000, math.MaxUint64, // uint64
	}

	for _, v := range values {
		buf := AppendUint(nil, v)
		got, err := ReadUint(binary.NewCursor(buf))
		if err != nil {
			t.Fatalf("ReadUint(%d) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d round-tripped as %d (encoded % x)", v, got, buf)
		}
	}
}

func TestReadUintEncodedWidths(t *testing.T) {
	// Explicit-width encodings, including non-minimal ones an encoder could emit.
	tests := []struct {
		data []byte
		want uint64
	}{
		{[]byte{0x7f}, 0x7f},
		{[]byte{0xcc, 0x80}, 0x80},
		{[]byte{0xcc, 0x05}, 5}, // non-minimal uint8
		{[]byte{0xcd, 0x12, 0x34}, 0x1234},
		{[]byte{0xce, 0x12, 0x34, 0x56, 0x78}, 0x12345678},
		{[]byte{0xcf, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}, 0x123456789abcdef0},
	}

	for _, tt := range tests {
		got, err := ReadUint(binary.NewCursor(tt.data))
		if err != nil {
			t.Fatalf("ReadUint(% x) failed: %v", tt.data, err)
		}
		if got != tt.want {
			t.Errorf("% x: expected 0x%x, got 0x%x", tt.data, tt.want, got)
		}
	}
}

func TestReadIntBoundaries(t *testing.T) {
	values := []int64{
		0, 1, 127, // positive fixint via unsigned fallback
		-1, -32, // negative fixint
		-33, -128, // int8
		-129, -32768, // int16
		-32769, math.MinInt32, // int32
		128, 255, 256, 65535, // positive values on the unsigned side
	}

	for _, v := range values {
		buf := AppendInt(nil, v)
		got, err := ReadInt(binary.NewCursor(buf))
		if err != nil {
			t.Fatalf("ReadInt(%d) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d round-tripped as %d (encoded % x)", v, got, buf)
		}
	}
}

func TestReadIntExplicitWidths(t *testing.T) {
	tests := []struct {
		data []byte
		want int64
	}{
		{[]byte{0xff}, -1},       // negative fixint min magnitude
		{[]byte{0xe0}, -32},      // negative fixint max magnitude
		{[]byte{0xd0, 0x80}, -128},
		{[]byte{0xd1, 0xff, 0x00}, -256},
		{[]byte{0xd2, 0xff, 0xff, 0xff, 0x00}, -256},
		{[]byte{0xcc, 0xff}, 255}, // unsigned fallback in a signed position
	}

	for _, tt := range tests {
		got, err := ReadInt(binary.NewCursor(tt.data))
		if err != nil {
			t.Fatalf("ReadInt(% x) failed: %v", tt.data, err)
		}
		if got != tt.want {
			t.Errorf("% x: expected %d, got %d", tt.data, tt.want, got)
		}
	}
}

func TestReadFloat64(t *testing.T) {
	values := []float64{0, 1234.5, -0.25, math.MaxFloat64, math.SmallestNonzeroFloat64}

	for _, v := range values {
		buf := AppendFloat64(nil, v)
		if buf[0] != 0xcb {
			t.Fatalf("float64 must use tag 0xcb, got 0x%02x", buf[0])
		}
		got, err := ReadFloat64(binary.NewCursor(buf))
		if err != nil {
			t.Fatalf("ReadFloat64(%g) failed: %v", v, err)
		}
		// Bit-exact comparison.
		if math.Float64bits(got) != math.Float64bits(v) {
			t.Errorf("value %g round-tripped as %g", v, got)
		}
	}
}

func TestReadFloat64BigEndian(t *testing.T) {
	// 1.0 = 0x3FF0000000000000, stored big-endian after the tag.
	data := []byte{0xcb, 0x3f, 0xf0, 0, 0, 0, 0, 0, 0}
	got, err := ReadFloat64(binary.NewCursor(data))
	if err != nil {
		t.Fatalf("ReadFloat64 failed: %v", err)
	}
	if got != 1.0 {
		t.Errorf("expected 1.0, got %g", got)
	}
}

func TestReadFloat64RejectsFloat32(t *testing.T) {
	data := []byte{0xca, 0x3f, 0x80, 0, 0}
	if _, err := ReadFloat64(binary.NewCursor(data)); !errors.Is(err, ErrUnexpectedTag) {
		t.Fatalf("expected ErrUnexpectedTag for float32, got %v", err)
	}
}

func TestReadUint8SeqBinAndArrayAgree(t *testing.T) {
	samples := []uint8{0, 1, 0x7f, 0x80, 0xff, 42}

	asBin := AppendBin(nil, samples)
	asArray := AppendArrayHeader(nil, len(samples))
	for _, s := range samples {
		asArray = AppendUint(asArray, uint64(s))
	}

	nBin, fromBin, err := ReadUint8Seq(binary.NewCursor(asBin), 1024)
	if err != nil {
		t.Fatalf("bin decode failed: %v", err)
	}
	nArr, fromArr, err := ReadUint8Seq(binary.NewCursor(asArray), 1024)
	if err != nil {
		t.Fatalf("array decode failed: %v", err)
	}

	if nBin != len(samples) || nArr != len(samples) {
		t.Errorf("declared counts: bin=%d array=%d, want %d", nBin, nArr, len(samples))
	}
	if !reflect.DeepEqual(fromBin, fromArr) {
		t.Errorf("representations disagree: bin=%v array=%v", fromBin, fromArr)
	}
	if !reflect.DeepEqual(fromBin, samples) {
		t.Errorf("expected %v, got %v", samples, fromBin)
	}
}

func TestReadUint8SeqCap(t *testing.T) {
	samples := make([]uint8, 100)
	for i := range samples {
		samples[i] = uint8(i)
	}

	for _, encode := range []struct {
		name string
		data []byte
	}{
		{"bin", AppendBin(nil, samples)},
		{"array", func() []byte {
			b := AppendArrayHeader(nil, len(samples))
			for _, s := range samples {
				b = AppendUint(b, uint64(s))
			}
			return b
		}()},
	} {
		t.Run(encode.name, func(t *testing.T) {
			// Append a trailing marker to prove the full sequence was consumed.
			data := AppendUint(encode.data, 0x7b)

			c := binary.NewCursor(data)
			n, out, err := ReadUint8Seq(c, 10)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if n != 100 {
				t.Errorf("declared count: expected 100, got %d", n)
			}
			if len(out) != 10 {
				t.Errorf("retained samples: expected 10, got %d", len(out))
			}
			if !reflect.DeepEqual(out, samples[:10]) {
				t.Errorf("expected %v, got %v", samples[:10], out)
			}

			marker, err := ReadUint(c)
			if err != nil {
				t.Fatalf("cursor misaligned after capped decode: %v", err)
			}
			if marker != 0x7b {
				t.Errorf("expected trailing marker 0x7b, got 0x%x", marker)
			}
		})
	}
}

func TestReadInt16Seq(t *testing.T) {
	samples := []int16{0, -1, 127, 128, -32768, 32767, -300}

	buf := AppendArrayHeader(nil, len(samples))
	for _, s := range samples {
		buf = AppendInt(buf, int64(s))
	}

	n, out, err := ReadInt16Seq(binary.NewCursor(buf), 1024)
	if err != nil {
		t.Fatalf("ReadInt16Seq failed: %v", err)
	}
	if n != len(samples) {
		t.Errorf("declared count: expected %d, got %d", len(samples), n)
	}
	if !reflect.DeepEqual(out, samples) {
		t.Errorf("expected %v, got %v", samples, out)
	}
}

func TestReadStringRoundTrip(t *testing.T) {
	values := []string{"", "run", "a somewhat longer experiment name that exceeds fixstr's 31-byte limit"}

	for _, v := range values {
		buf := AppendString(nil, v)
		got, err := ReadString(binary.NewCursor(buf))
		if err != nil {
			t.Fatalf("ReadString(%q) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("expected %q, got %q", v, got)
		}
	}
}

func TestReadBool(t *testing.T) {
	for _, v := range []bool{true, false} {
		got, err := ReadBool(binary.NewCursor(AppendBool(nil, v)))
		if err != nil {
			t.Fatalf("ReadBool(%v) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("expected %v, got %v", v, got)
		}
	}
}

func TestReadMapHeader(t *testing.T) {
	n, err := ReadMapHeader(binary.NewCursor(AppendMapHeader(nil, 3)))
	if err != nil {
		t.Fatalf("ReadMapHeader failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestTruncatedPayloads(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"uint16 payload cut", []byte{0xcd, 0x12}},
		{"uint64 payload cut", []byte{0xcf, 0x01, 0x02}},
		{"float64 payload cut", []byte{0xcb, 0x3f}},
		{"array16 length cut", []byte{0xdc, 0x01}},
		{"bin8 payload cut", []byte{0xc4, 0x05, 0x01, 0x02}},
		{"str8 payload cut", []byte{0xd9, 0x04, 'a', 'b'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := binary.NewCursor(tt.data)
			var err error
			switch tt.name[0] {
			case 'u':
				_, err = ReadUint(c)
			case 'f':
				_, err = ReadFloat64(c)
			case 'a':
				_, err = ReadArrayHeader(c)
			case 'b':
				_, _, err = ReadUint8Seq(c, 16)
			case 's':
				_, err = ReadString(c)
			}
			if !errors.Is(err, binary.ErrUnexpectedEOF) {
				t.Errorf("expected ErrUnexpectedEOF, got %v", err)
			}
		})
	}
}

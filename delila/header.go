package delila

import (
	"fmt"

	"github.com/delila-daq/go-delila/internal/binary"
	"github.com/delila-daq/go-delila/internal/msgpack"
)

// RunMetadata is the recorder's header payload: a compact (array-encoded)
// MessagePack struct of ten fields describing the run this file belongs to.
// The decoder does not need it; framing treats the payload as opaque and
// parses it best-effort.
type RunMetadata struct {
	Version         uint32
	RunNumber       uint32
	ExpName         string
	FileSequence    uint32
	FileStartTimeNs uint64
	Comment         string
	SortMarginRatio float64
	IsSorted        bool
	SourceIDs       []uint32
	Metadata        map[string]string
}

const runMetadataArity = 10

// parseRunMetadata decodes the header payload.
func parseRunMetadata(payload []byte) (*RunMetadata, error) {
	c := binary.NewCursor(payload)

	arity, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return nil, err
	}
	if arity != runMetadataArity {
		return nil, fmt.Errorf("header array has %d elements, want %d: %w",
			arity, runMetadataArity, ErrSchemaViolation)
	}

	var m RunMetadata

	v, err := msgpack.ReadUint(c)
	if err != nil {
		return nil, err
	}
	m.Version = uint32(v)

	if v, err = msgpack.ReadUint(c); err != nil {
		return nil, err
	}
	m.RunNumber = uint32(v)

	if m.ExpName, err = msgpack.ReadString(c); err != nil {
		return nil, err
	}

	if v, err = msgpack.ReadUint(c); err != nil {
		return nil, err
	}
	m.FileSequence = uint32(v)

	if m.FileStartTimeNs, err = msgpack.ReadUint(c); err != nil {
		return nil, err
	}

	if m.Comment, err = msgpack.ReadString(c); err != nil {
		return nil, err
	}

	if m.SortMarginRatio, err = msgpack.ReadFloat64(c); err != nil {
		return nil, err
	}

	if m.IsSorted, err = msgpack.ReadBool(c); err != nil {
		return nil, err
	}

	n, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return nil, err
	}
	// A corrupt header can declare an absurd count; cap the initial
	// allocation by what the payload could possibly hold.
	m.SourceIDs = make([]uint32, 0, clampReserve(n, c))
	for i := 0; i < n; i++ {
		id, err := msgpack.ReadUint(c)
		if err != nil {
			return nil, err
		}
		m.SourceIDs = append(m.SourceIDs, uint32(id))
	}

	n, err = msgpack.ReadMapHeader(c)
	if err != nil {
		return nil, err
	}
	m.Metadata = make(map[string]string, clampReserve(n, c))
	for i := 0; i < n; i++ {
		k, err := msgpack.ReadString(c)
		if err != nil {
			return nil, err
		}
		val, err := msgpack.ReadString(c)
		if err != nil {
			return nil, err
		}
		m.Metadata[k] = val
	}

	return &m, nil
}

// clampReserve bounds a declared element count by the bytes actually left in
// the payload, since every element occupies at least one byte.
func clampReserve(n int, c *binary.Cursor) int {
	if max := c.Remaining(); n > max {
		return max
	}
	return n
}

// appendMsgpack encodes the metadata the way the recorder does.
func (m *RunMetadata) appendMsgpack(b []byte) []byte {
	b = msgpack.AppendArrayHeader(b, runMetadataArity)
	b = msgpack.AppendUint(b, uint64(m.Version))
	b = msgpack.AppendUint(b, uint64(m.RunNumber))
	b = msgpack.AppendString(b, m.ExpName)
	b = msgpack.AppendUint(b, uint64(m.FileSequence))
	b = msgpack.AppendUint(b, m.FileStartTimeNs)
	b = msgpack.AppendString(b, m.Comment)
	b = msgpack.AppendFloat64(b, m.SortMarginRatio)
	b = msgpack.AppendBool(b, m.IsSorted)
	b = msgpack.AppendArrayHeader(b, len(m.SourceIDs))
	for _, id := range m.SourceIDs {
		b = msgpack.AppendUint(b, uint64(id))
	}
	b = msgpack.AppendMapHeader(b, len(m.Metadata))
	for k, v := range m.Metadata {
		b = msgpack.AppendString(b, k)
		b = msgpack.AppendString(b, v)
	}
	return b
}

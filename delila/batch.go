package delila

import (
	"errors"
	"fmt"

	"github.com/delila-daq/go-delila/internal/binary"
	"github.com/delila-daq/go-delila/internal/msgpack"
)

// Batch schema, as serialized by the recorder:
//
//	batch    := [source_id, sequence_number, timestamp, [event*]]
//	event    := [module, channel, energy, energy_short, timestamp_ns, flags]
//	          | [module, channel, energy, energy_short, timestamp_ns, flags, waveform]
//	waveform := [analog1, analog2, digital1, digital2, digital3, digital4,
//	             time_resolution, trigger_threshold]
//
// The event arity (6 or 7) is the only discriminant for waveform presence.
// Digital probes are either a bin byte string or an array of unsigned ints,
// depending on the encoder configuration.

const (
	batchArity    = 4
	eventArity    = 6
	waveformArity = 8
)

// asSchemaErr marks unrecognized-tag failures as schema violations while
// keeping truncation errors on the ErrUnexpectedEOF path.
func asSchemaErr(err error) error {
	if errors.Is(err, msgpack.ErrUnexpectedTag) {
		return fmt.Errorf("%v: %w", err, ErrSchemaViolation)
	}
	return err
}

// decodeBatchHeader reads the 4-element batch envelope up to and including the
// events array header. The sequence number and batch timestamp are parsed to
// keep the cursor aligned but not retained.
func decodeBatchHeader(c *binary.Cursor) (sourceID uint32, numEvents int, err error) {
	arity, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return 0, 0, asSchemaErr(err)
	}
	if arity != batchArity {
		return 0, 0, fmt.Errorf("batch array has %d elements, want %d: %w",
			arity, batchArity, ErrSchemaViolation)
	}

	src, err := msgpack.ReadUint(c)
	if err != nil {
		return 0, 0, asSchemaErr(err)
	}
	if _, err := msgpack.ReadUint(c); err != nil { // sequence_number
		return 0, 0, asSchemaErr(err)
	}
	if _, err := msgpack.ReadUint(c); err != nil { // timestamp
		return 0, 0, asSchemaErr(err)
	}

	n, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return 0, 0, asSchemaErr(err)
	}
	return uint32(src), n, nil
}

// decodeEvent reads one event record. With keepWaveform false the waveform
// fields are still consumed so the cursor stays aligned for the next event,
// but no samples are retained.
func decodeEvent(c *binary.Cursor, keepWaveform bool, sampleCap int) (Event, error) {
	var ev Event

	arity, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return ev, asSchemaErr(err)
	}
	if arity != eventArity && arity != eventArity+1 {
		return ev, fmt.Errorf("event array has %d elements, want %d or %d: %w",
			arity, eventArity, eventArity+1, ErrSchemaViolation)
	}

	v, err := msgpack.ReadUint(c)
	if err != nil {
		return ev, asSchemaErr(err)
	}
	ev.Module = uint8(v)

	if v, err = msgpack.ReadUint(c); err != nil {
		return ev, asSchemaErr(err)
	}
	ev.Channel = uint8(v)

	if v, err = msgpack.ReadUint(c); err != nil {
		return ev, asSchemaErr(err)
	}
	ev.Energy = uint16(v)

	if v, err = msgpack.ReadUint(c); err != nil {
		return ev, asSchemaErr(err)
	}
	ev.EnergyShort = uint16(v)

	if ev.TimestampNs, err = msgpack.ReadFloat64(c); err != nil {
		return ev, asSchemaErr(err)
	}

	if ev.Flags, err = msgpack.ReadUint(c); err != nil {
		return ev, asSchemaErr(err)
	}

	if arity == eventArity+1 {
		wf, err := decodeWaveform(c, keepWaveform, sampleCap)
		if err != nil {
			return ev, err
		}
		ev.Waveform = wf
	}
	return ev, nil
}

// decodeWaveform reads the fixed 8-element waveform array. With keep false it
// returns nil after consuming the full encoding.
func decodeWaveform(c *binary.Cursor, keep bool, sampleCap int) (*Waveform, error) {
	arity, err := msgpack.ReadArrayHeader(c)
	if err != nil {
		return nil, asSchemaErr(err)
	}
	if arity != waveformArity {
		return nil, fmt.Errorf("waveform array has %d elements, want %d: %w",
			arity, waveformArity, ErrSchemaViolation)
	}

	limit := sampleCap
	if !keep {
		limit = 0
	}

	var wf Waveform
	truncated := false

	readAnalog := func(dst *[]int16) error {
		n, samples, err := msgpack.ReadInt16Seq(c, limit)
		if err != nil {
			return asSchemaErr(err)
		}
		if n > limit {
			truncated = true
		}
		*dst = samples
		return nil
	}
	readDigital := func(dst *[]uint8) error {
		n, samples, err := msgpack.ReadUint8Seq(c, limit)
		if err != nil {
			return asSchemaErr(err)
		}
		if n > limit {
			truncated = true
		}
		*dst = samples
		return nil
	}

	if err := readAnalog(&wf.Analog1); err != nil {
		return nil, err
	}
	if err := readAnalog(&wf.Analog2); err != nil {
		return nil, err
	}
	if err := readDigital(&wf.Digital1); err != nil {
		return nil, err
	}
	if err := readDigital(&wf.Digital2); err != nil {
		return nil, err
	}
	if err := readDigital(&wf.Digital3); err != nil {
		return nil, err
	}
	if err := readDigital(&wf.Digital4); err != nil {
		return nil, err
	}

	v, err := msgpack.ReadUint(c)
	if err != nil {
		return nil, asSchemaErr(err)
	}
	wf.TimeResolution = uint8(v)

	if v, err = msgpack.ReadUint(c); err != nil {
		return nil, asSchemaErr(err)
	}
	wf.TriggerThreshold = uint16(v)

	if !keep {
		return nil, nil
	}
	wf.Truncated = truncated
	return &wf, nil
}

// decodeBlock decodes one block payload. On failure it returns the events
// decoded before the failure along with the event index (-1 for header-level
// failures) and the cursor offset within the payload; remaining events in the
// block are abandoned since cursor alignment can no longer be trusted.
func decodeBlock(payload []byte, keepWaveforms bool, sampleCap int) (batch *Batch, failedEvent int, offset int, err error) {
	c := binary.NewCursor(payload)

	sourceID, numEvents, err := decodeBatchHeader(c)
	if err != nil {
		return nil, -1, c.Pos(), err
	}

	// A corrupt header can declare an absurd count; cap the initial
	// allocation by what the payload could possibly hold.
	batch = &Batch{
		SourceID: sourceID,
		Events:   make([]Event, 0, clampReserve(numEvents, c)),
	}
	for i := 0; i < numEvents; i++ {
		ev, err := decodeEvent(c, keepWaveforms, sampleCap)
		if err != nil {
			return batch, i, c.Pos(), err
		}
		batch.Events = append(batch.Events, ev)
	}
	return batch, -1, c.Pos(), nil
}

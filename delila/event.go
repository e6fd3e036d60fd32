// Package delila provides a pure Go reader and writer for DELILA v2 data
// files, the binary event-stream format written by the DELILA acquisition
// recorder.
package delila

// DefaultSampleCap is the default per-probe cap on retained waveform samples.
// It matches the fixed buffer size used by downstream columnar sinks. Excess
// samples are consumed from the stream but not retained.
const DefaultSampleCap = 16384

// Event is one detector event record.
type Event struct {
	Module      uint8
	Channel     uint8
	Energy      uint16
	EnergyShort uint16
	TimestampNs float64
	Flags       uint64

	// Waveform is nil for events recorded without waveform data, and for
	// all events when decoding in summary mode (WithoutWaveforms).
	Waveform *Waveform
}

// Waveform holds the probe samples attached to an event.
type Waveform struct {
	Analog1 []int16
	Analog2 []int16

	Digital1 []uint8
	Digital2 []uint8
	Digital3 []uint8
	Digital4 []uint8

	TimeResolution   uint8
	TriggerThreshold uint16

	// Truncated is set when any probe declared more samples than the
	// configured cap. The dropped samples were consumed from the stream,
	// so cursor alignment is unaffected.
	Truncated bool
}

// Batch is one group of events written as a single length-prefixed block.
type Batch struct {
	SourceID  uint32
	Sequence  uint64
	Timestamp uint64
	Events    []Event
}

package delila

import (
	"io"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/delila-daq/go-delila/internal/binary"
	"github.com/delila-daq/go-delila/internal/msgpack"
)

// Writer writes DELILA v2 data files: header, length-prefixed batch blocks,
// and the fixed 64-byte footer with checksum and statistics on Close.
type Writer struct {
	w   io.Writer
	sum binary.RollingChecksum

	totalEvents uint64
	firstTs     float64
	lastTs      float64

	scratch []byte
	closed  bool
}

// NewWriter writes the file header and returns a Writer for the data region.
// meta may be nil, in which case the header carries an empty payload.
func NewWriter(w io.Writer, meta *RunMetadata) (*Writer, error) {
	hdr := append([]byte(nil), FileMagic...)
	var payload []byte
	if meta != nil {
		payload = meta.appendMsgpack(nil)
	}
	hdr = appendUint32LE(hdr, uint32(len(payload)))
	hdr = append(hdr, payload...)

	if _, err := w.Write(hdr); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	// Timestamp range starts inverted and narrows as events arrive,
	// matching the recorder's footer defaults for empty files.
	return &Writer{
		w:       w,
		firstTs: math.MaxFloat64,
		lastTs:  -math.MaxFloat64,
	}, nil
}

// WriteBatch encodes one batch as a length-prefixed block and folds it into
// the running checksum and footer statistics.
func (w *Writer) WriteBatch(b *Batch) error {
	if w.closed {
		return ErrClosed
	}

	payload := appendBatch(w.scratch[:0], b)
	w.scratch = payload[:0]

	lenBytes := appendUint32LE(nil, uint32(len(payload)))
	if _, err := w.w.Write(lenBytes); err != nil {
		return errors.Wrap(err, "writing block length")
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.Wrap(err, "writing block payload")
	}

	// The checksum covers the length prefix and payload as separate chunks.
	w.sum.Update(lenBytes)
	w.sum.Update(payload)

	w.totalEvents += uint64(len(b.Events))
	for i := range b.Events {
		ts := b.Events[i].TimestampNs
		if ts < w.firstTs {
			w.firstTs = ts
		}
		if ts > w.lastTs {
			w.lastTs = ts
		}
	}
	return nil
}

// Close finalizes and writes the footer. The underlying writer is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	footer := Footer{
		DataChecksum:     w.sum.Sum64(),
		TotalEvents:      w.totalEvents,
		DataBytes:        w.sum.BytesProcessed(),
		FirstEventTimeNs: w.firstTs,
		LastEventTimeNs:  w.lastTs,
		FileEndTimeNs:    uint64(time.Now().UnixNano()),
		WriteComplete:    true,
	}
	if _, err := w.w.Write(footer.appendTo(nil)); err != nil {
		return errors.Wrap(err, "writing footer")
	}
	return nil
}

func appendBatch(b []byte, batch *Batch) []byte {
	b = msgpack.AppendArrayHeader(b, batchArity)
	b = msgpack.AppendUint(b, uint64(batch.SourceID))
	b = msgpack.AppendUint(b, batch.Sequence)
	b = msgpack.AppendUint(b, batch.Timestamp)
	b = msgpack.AppendArrayHeader(b, len(batch.Events))
	for i := range batch.Events {
		b = appendEvent(b, &batch.Events[i])
	}
	return b
}

func appendEvent(b []byte, ev *Event) []byte {
	arity := eventArity
	if ev.Waveform != nil {
		arity++
	}
	b = msgpack.AppendArrayHeader(b, arity)
	b = msgpack.AppendUint(b, uint64(ev.Module))
	b = msgpack.AppendUint(b, uint64(ev.Channel))
	b = msgpack.AppendUint(b, uint64(ev.Energy))
	b = msgpack.AppendUint(b, uint64(ev.EnergyShort))
	b = msgpack.AppendFloat64(b, ev.TimestampNs)
	b = msgpack.AppendUint(b, ev.Flags)
	if ev.Waveform != nil {
		b = appendWaveform(b, ev.Waveform)
	}
	return b
}

func appendWaveform(b []byte, wf *Waveform) []byte {
	b = msgpack.AppendArrayHeader(b, waveformArity)
	for _, analog := range [2][]int16{wf.Analog1, wf.Analog2} {
		b = msgpack.AppendArrayHeader(b, len(analog))
		for _, s := range analog {
			b = msgpack.AppendInt(b, int64(s))
		}
	}
	// Digital probes use the dense binary form.
	b = msgpack.AppendBin(b, wf.Digital1)
	b = msgpack.AppendBin(b, wf.Digital2)
	b = msgpack.AppendBin(b, wf.Digital3)
	b = msgpack.AppendBin(b, wf.Digital4)
	b = msgpack.AppendUint(b, uint64(wf.TimeResolution))
	b = msgpack.AppendUint(b, uint64(wf.TriggerThreshold))
	return b
}

package delila

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/delila-daq/go-delila/internal/binary"
)

// File is an open DELILA data file positioned for streaming decode.
//
// The framing is linear with no backtracking: magic and header length are
// validated at open, then Next walks the length-prefixed blocks of the data
// region [end of header, size-64) and the fixed footer is read from the tail.
// A decode failure never invalidates events already handed out; it only stops
// the remaining work.
type File struct {
	path   string
	r      io.ReaderAt
	size   int64
	closer io.Closer

	opts *fileOptions
	log  zerolog.Logger

	meta      *RunMetadata
	dataStart int64
	dataEnd   int64
	footer    *Footer
	warnings  []string

	// streaming state
	pos        int64
	blockIndex int
	queue      []Event
	pending    error
	emitted    uint64
	done       bool
	closed     bool
}

// Open opens a DELILA data file for reading.
func Open(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat file")
	}

	df, err := NewFile(f, st.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	df.path = path
	df.closer = f
	return df, nil
}

// NewFile opens a DELILA data file over an arbitrary io.ReaderAt.
// size must be the total byte length of the underlying data.
func NewFile(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}

	f := &File{
		r:    r,
		size: size,
		opts: o,
		log:  o.log,
	}

	if size < int64(len(FileMagic))+4 {
		return nil, fmt.Errorf("file of %d bytes cannot hold a header: %w", size, ErrUnexpectedEOF)
	}

	magic, err := f.readAt(0, len(FileMagic))
	if err != nil {
		return nil, err
	}
	if string(magic) != FileMagic {
		return nil, fmt.Errorf("file magic %q, want %q: %w", magic, FileMagic, ErrBadMagic)
	}

	lenBuf, err := f.readAt(8, 4)
	if err != nil {
		return nil, err
	}
	headerLen, _ := binary.NewCursor(lenBuf).ReadUint32LE()

	f.dataStart = 12 + int64(headerLen)
	if f.dataStart > size {
		return nil, fmt.Errorf("header of %d bytes exceeds file size %d: %w",
			headerLen, size, ErrUnexpectedEOF)
	}

	// The header payload is opaque to the framing layer; parse the run
	// metadata best-effort and keep going if it does not decode.
	if headerLen > 0 {
		payload, err := f.readAt(12, int(headerLen))
		if err != nil {
			return nil, err
		}
		meta, err := parseRunMetadata(payload)
		if err != nil {
			f.warnf("header metadata did not decode: %v", err)
		} else {
			f.meta = meta
		}
	}

	f.dataEnd = size - FooterSize
	if f.dataEnd < f.dataStart {
		f.dataEnd = f.dataStart
		f.warnf("file too small for a footer; treating data region as empty")
	} else {
		f.readFooter()
	}
	f.pos = f.dataStart

	return f, nil
}

// readFooter decodes the fixed trailer. Footer problems are warnings, not
// errors: a file whose write was interrupted still carries decodable data.
func (f *File) readFooter() {
	buf, err := f.readAt(f.size-FooterSize, FooterSize)
	if err != nil {
		f.warnf("footer unreadable: %v", err)
		return
	}
	footer, err := parseFooter(buf)
	if err != nil {
		f.warnf("footer invalid: %v", err)
		return
	}
	f.footer = footer
	if !footer.WriteComplete {
		f.warnf("footer marks write as incomplete")
	}
}

// Next returns the next decoded event, or io.EOF at the end of the stream.
// After a decode failure the same error is returned on every subsequent call;
// events decoded before the failure have already been handed out.
func (f *File) Next() (*Event, error) {
	if f.closed {
		return nil, ErrClosed
	}

	// The limit applies to emitted events, not fetched blocks: a block may
	// have queued more events than the caller wants.
	if f.opts.maxEvents > 0 && f.emitted >= f.opts.maxEvents {
		f.done = true
		return nil, io.EOF
	}

	for len(f.queue) == 0 {
		if f.pending != nil {
			return nil, f.pending
		}
		if f.done {
			return nil, io.EOF
		}
		if f.pos >= f.dataEnd {
			f.checkFooterCounts()
			f.done = true
			return nil, io.EOF
		}
		f.fillBlock()
	}

	ev := f.queue[0]
	f.queue = f.queue[1:]
	f.emitted++
	return &ev, nil
}

// fillBlock reads and decodes the block at the current position, appending
// its events to the queue. Failures land in f.pending so that events decoded
// before the failure drain first.
func (f *File) fillBlock() {
	blockOff := f.pos

	lenBuf, err := f.readAt(blockOff, 4)
	if err != nil {
		f.pending = &DecodeError{Block: f.blockIndex, Event: -1, Offset: blockOff, Err: err}
		return
	}
	blockLen, _ := binary.NewCursor(lenBuf).ReadUint32LE()

	// Reject corrupt lengths before touching (or allocating) the payload.
	if blockLen == 0 || blockLen > MaxBlockLength {
		f.pending = &DecodeError{
			Block:  f.blockIndex,
			Event:  -1,
			Offset: blockOff,
			Err:    fmt.Errorf("declared length %d: %w", blockLen, ErrInvalidBlockLength),
		}
		return
	}

	payloadOff := blockOff + 4
	if payloadOff+int64(blockLen) > f.dataEnd {
		f.pending = &DecodeError{
			Block:  f.blockIndex,
			Event:  -1,
			Offset: blockOff,
			Err: fmt.Errorf("block of %d bytes runs past data region end %d: %w",
				blockLen, f.dataEnd, ErrUnexpectedEOF),
		}
		return
	}

	payload, err := f.readAt(payloadOff, int(blockLen))
	if err != nil {
		f.pending = &DecodeError{Block: f.blockIndex, Event: -1, Offset: payloadOff, Err: err}
		return
	}

	batch, evIdx, cursorOff, err := decodeBlock(payload, f.opts.keepWaveforms, f.opts.sampleCap)
	if batch != nil {
		f.queue = append(f.queue, batch.Events...)
	}
	if err != nil {
		f.log.Warn().
			Int("block", f.blockIndex).
			Int("event", evIdx).
			Int64("offset", payloadOff+int64(cursorOff)).
			Err(err).
			Msg("aborting decode")
		f.pending = &DecodeError{
			Block:  f.blockIndex,
			Event:  evIdx,
			Offset: payloadOff + int64(cursorOff),
			Err:    err,
		}
		return
	}

	f.pos = payloadOff + int64(blockLen)
	f.blockIndex++
}

// checkFooterCounts cross-validates the event count once the data region is
// exhausted. A mismatch is a warning: interrupted writes leave stale footers.
func (f *File) checkFooterCounts() {
	if f.footer == nil {
		return
	}
	total := f.emitted + uint64(len(f.queue))
	if f.footer.TotalEvents != total {
		f.warnf("footer reports %d events, decoded %d", f.footer.TotalEvents, total)
	}
}

// Footer returns the decoded trailer, or nil when it was missing or invalid
// (see Warnings).
func (f *File) Footer() *Footer {
	return f.footer
}

// Meta returns the run metadata from the file header, or nil when the header
// payload was empty or did not decode.
func (f *File) Meta() *RunMetadata {
	return f.meta
}

// Warnings returns the non-fatal problems observed so far.
func (f *File) Warnings() []string {
	return f.warnings
}

// EventCount returns the number of events handed out by Next so far.
func (f *File) EventCount() uint64 {
	return f.emitted
}

// Path returns the file path, or "" when opened via NewFile.
func (f *File) Path() string {
	return f.path
}

// Close releases the underlying file when opened via Open. Closing a File
// built with NewFile is a no-op on the reader.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

func (f *File) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	f.warnings = append(f.warnings, msg)
	f.log.Warn().Msg(msg)
}

// readAt reads exactly n bytes at the given offset.
func (f *File) readAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := f.r.ReadAt(buf, off)
	if err != nil && !(got == n && err == io.EOF) {
		return nil, errors.Wrapf(err, "reading %d bytes at offset %d", n, off)
	}
	return buf, nil
}

package delila

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/delila-daq/go-delila/internal/binary"
)

// BlockRange locates one block's payload within the file.
type BlockRange struct {
	Index  int
	Offset int64 // payload start (past the length prefix)
	Length int
}

// ScanBlocks walks the block length prefixes sequentially and returns the
// byte range of every block payload, without decoding them. On a framing
// error the ranges found so far are returned alongside the error.
func (f *File) ScanBlocks() ([]BlockRange, error) {
	var ranges []BlockRange
	pos := f.dataStart

	for pos < f.dataEnd {
		idx := len(ranges)
		lenBuf, err := f.readAt(pos, 4)
		if err != nil {
			return ranges, &DecodeError{Block: idx, Event: -1, Offset: pos, Err: err}
		}
		blockLen, _ := binary.NewCursor(lenBuf).ReadUint32LE()
		if blockLen == 0 || blockLen > MaxBlockLength {
			return ranges, &DecodeError{
				Block:  idx,
				Event:  -1,
				Offset: pos,
				Err:    fmt.Errorf("declared length %d: %w", blockLen, ErrInvalidBlockLength),
			}
		}
		if pos+4+int64(blockLen) > f.dataEnd {
			return ranges, &DecodeError{
				Block:  idx,
				Event:  -1,
				Offset: pos,
				Err: fmt.Errorf("block of %d bytes runs past data region end %d: %w",
					blockLen, f.dataEnd, ErrUnexpectedEOF),
			}
		}
		ranges = append(ranges, BlockRange{Index: idx, Offset: pos + 4, Length: int(blockLen)})
		pos += 4 + int64(blockLen)
	}
	return ranges, nil
}

// ReadAll decodes the whole data region and returns the events in original
// block order. With workers > 1 blocks are decoded concurrently: block
// boundaries are pre-scanned sequentially, each payload is decoded on its own
// goroutine, and results merge back in file order. io.ReaderAt permits the
// parallel reads.
//
// On failure the events decoded before the failing point are returned with
// the error, mirroring Next's partial-result contract.
func (f *File) ReadAll(workers int) ([]Event, error) {
	ranges, scanErr := f.ScanBlocks()

	type blockOut struct {
		batch *Batch
		err   error
	}
	results := make([]blockOut, len(ranges))

	decodeOne := func(i int) {
		br := ranges[i]
		payload, err := f.readAt(br.Offset, br.Length)
		if err != nil {
			results[i] = blockOut{err: &DecodeError{Block: br.Index, Event: -1, Offset: br.Offset, Err: err}}
			return
		}
		batch, evIdx, cursorOff, err := decodeBlock(payload, f.opts.keepWaveforms, f.opts.sampleCap)
		if err != nil {
			err = &DecodeError{
				Block:  br.Index,
				Event:  evIdx,
				Offset: br.Offset + int64(cursorOff),
				Err:    err,
			}
		}
		results[i] = blockOut{batch: batch, err: err}
	}

	if workers <= 1 {
		for i := range ranges {
			decodeOne(i)
		}
	} else {
		if workers > len(ranges) {
			workers = len(ranges)
		}
		var next int64
		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func() {
				defer wg.Done()
				for {
					i := int(atomic.AddInt64(&next, 1)) - 1
					if i >= len(ranges) {
						return
					}
					decodeOne(i)
				}
			}()
		}
		wg.Wait()
	}

	var events []Event
	limit := f.opts.maxEvents
	for i := range results {
		if results[i].batch != nil {
			events = append(events, results[i].batch.Events...)
		}
		if results[i].err != nil {
			return truncateEvents(events, limit), results[i].err
		}
	}
	return truncateEvents(events, limit), scanErr
}

func truncateEvents(events []Event, limit uint64) []Event {
	if limit > 0 && uint64(len(events)) > limit {
		return events[:limit]
	}
	return events
}

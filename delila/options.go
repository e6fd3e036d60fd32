package delila

import "github.com/rs/zerolog"

// Option configures file decoding.
type Option func(*fileOptions)

type fileOptions struct {
	maxEvents     uint64
	keepWaveforms bool
	sampleCap     int
	log           zerolog.Logger
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		keepWaveforms: true,
		sampleCap:     DefaultSampleCap,
		log:           zerolog.Nop(),
	}
}

// WithMaxEvents stops decoding after n events without reading the remainder
// of the stream. Zero means no limit.
func WithMaxEvents(n uint64) Option {
	return func(o *fileOptions) {
		o.maxEvents = n
	}
}

// WithoutWaveforms enables summary decoding: waveform bytes are still
// consumed to keep cursor alignment, but no samples are retained and
// Event.Waveform stays nil.
func WithoutWaveforms() Option {
	return func(o *fileOptions) {
		o.keepWaveforms = false
	}
}

// WithSampleCap sets the per-probe cap on retained waveform samples.
func WithSampleCap(n int) Option {
	return func(o *fileOptions) {
		if n >= 0 {
			o.sampleCap = n
		}
	}
}

// WithLogger routes decode warnings (footer problems, truncated waveforms,
// aborted blocks) to the given logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *fileOptions) {
		o.log = log
	}
}

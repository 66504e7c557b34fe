// Package quantizer converts normalized float audio frames into 16-bit PCM
// frames and hands each one to a downstream sink.
//
// A FrameQuantizer is built to be driven from a real-time audio callback:
// Process does no I/O, takes no locks, logs nothing, and draws its output
// buffers from a pre-allocated frame.Pool.
package quantizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/google/uuid"
)

const (
	// Attenuation applied before clipping unless configured otherwise.
	DefaultGain = 0.8

	// 20 ms at 16 kHz.
	DefaultFrameSize = 320

	DefaultPoolSize = 16
)

var (
	// The sink refused a frame. This is fatal to the stream: the owner
	// should tear the audio session down rather than retry.
	ErrSinkUnavailable = errors.New("pcm sink unavailable")

	ErrInvalidGain = errors.New("gain must be finite and non-negative")
	ErrNilSink     = errors.New("nil sink")
)

// The downstream handoff of a FrameQuantizer.
//
// Accept takes ownership of pcm: the quantizer never touches it again.
// A sink that needs the data after Accept returns must keep the buffer
// (or copy it) and may return it to the shared frame.Pool when done.
//
// Accept is called on the audio callback and must not block.
// A non-nil error means the sink is gone for good.
type Sink interface {
	Accept(pcm frame.PCM16Frame) error
}

// Configuration of a FrameQuantizer.
type Config struct {
	// Multiplicative gain applied before clipping, values below 1.0 attenuate.
	Gain float64
	// Mapping of clipped samples to the int16 grid.
	Rounding Rounding
	// Expected samples per frame, used to size the default pool.
	FrameSize int
	// Buffers in the default pool.
	PoolSize int
}

func DefaultConfig() Config {
	return Config{
		Gain:      DefaultGain,
		Rounding:  RoundingTruncate,
		FrameSize: DefaultFrameSize,
		PoolSize:  DefaultPoolSize,
	}
}

func (c Config) Validate() error {
	if math.IsNaN(c.Gain) || math.IsInf(c.Gain, 0) || c.Gain < 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidGain, c.Gain)
	}
	if _, err := ParseRounding(string(c.Rounding)); err != nil {
		return err
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", c.FrameSize)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size must not be negative, got %d", c.PoolSize)
	}
	return nil
}

type Option func(*FrameQuantizer)

// Draw output buffers from pool instead of a private one.
// Share the pool with the sink so it can recycle buffers.
func WithPool(pool *frame.Pool) Option {
	return func(q *FrameQuantizer) {
		q.pool = pool
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *FrameQuantizer) {
		q.logger = logger
	}
}

// Converts float frames to PCM16 frames and delivers them to a Sink.
//
// Apart from its counters, a FrameQuantizer holds no per-stream state:
// the same input always yields the same output. Process is not safe for
// concurrent use; a stream has exactly one producer.
type FrameQuantizer struct {
	logger *slog.Logger

	gain     float64
	rounding Rounding
	pool     *frame.Pool
	sink     Sink

	framesDelivered atomic.Int64
	framesSkipped   atomic.Int64
	samplesClipped  atomic.Int64
	invalidSamples  atomic.Int64
}

// Create a new FrameQuantizer delivering to sink.
//
// Unless WithPool is given, a private pool of cfg.PoolSize buffers of
// cfg.FrameSize samples is allocated here, which is the only allocation
// a FrameQuantizer makes in steady state.
func New(sink Sink, cfg Config, opts ...Option) (*FrameQuantizer, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	q := &FrameQuantizer{
		gain:     cfg.Gain,
		rounding: cfg.Rounding,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default().With("quantizer uuid", uuid.New())
	}
	if q.pool == nil {
		q.pool = frame.NewPool(cfg.FrameSize, cfg.PoolSize)
	}

	q.logger.Debug(
		"created frame quantizer",
		"gain", q.gain,
		"rounding", q.rounding,
		"frameSize", q.pool.FrameSize(),
	)
	return q, nil
}

// Process one input frame.
//
// An empty or nil frame is not an error: nothing is delivered and
// (false, nil) is returned, and the next call proceeds normally.
// Otherwise the frame is quantized into a pool buffer and handed to the
// sink exactly once; (true, nil) is returned on success.
//
// If the sink refuses the frame the buffer goes back to the pool and the
// returned error wraps ErrSinkUnavailable.
func (q *FrameQuantizer) Process(input frame.PCMFrame) (bool, error) {
	if len(input) == 0 {
		q.framesSkipped.Add(1)
		return false, nil
	}

	buf := q.pool.Get(len(input))
	buf, block := Quantize(buf, input, q.gain, q.rounding)
	if block.Clipped > 0 {
		q.samplesClipped.Add(int64(block.Clipped))
	}
	if block.Invalid > 0 {
		q.invalidSamples.Add(int64(block.Invalid))
	}

	if err := q.sink.Accept(buf); err != nil {
		q.pool.Put(buf)
		return false, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	q.framesDelivered.Add(1)
	return true, nil
}

func (q *FrameQuantizer) Gain() float64 {
	return q.gain
}

func (q *FrameQuantizer) Rounding() Rounding {
	return q.rounding
}

func (q *FrameQuantizer) Pool() *frame.Pool {
	return q.pool
}

type Stats struct {
	FramesDelivered int64 `json:"frames_delivered"`
	FramesSkipped   int64 `json:"frames_skipped"`
	SamplesClipped  int64 `json:"samples_clipped"`
	InvalidSamples  int64 `json:"invalid_samples"`
	PoolAllocations int64 `json:"pool_allocations"`
}

// Counters since creation. Safe to call from any goroutine.
func (q *FrameQuantizer) Stats() Stats {
	return Stats{
		FramesDelivered: q.framesDelivered.Load(),
		FramesSkipped:   q.framesSkipped.Load(),
		SamplesClipped:  q.samplesClipped.Load(),
		InvalidSamples:  q.invalidSamples.Load(),
		PoolAllocations: q.pool.Allocations(),
	}
}

package sink

import (
	"sync"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

// A Sink that forwards frames on a bounded channel to a single consumer.
//
// If the consumer falls behind and the channel is full, the frame is dropped,
// its buffer recycled and the drop counted as an overrun. Dropping keeps the
// audio callback on time; the consumer sees a gap instead of a late frame.
//
// The consumer owns each frame it receives from GetStream and should pass it
// to Release once done.
type ChannelSink struct {
	pool   *frame.Pool
	stream chan frame.PCM16Frame

	closed       atomic.Bool
	shutdownOnce sync.Once

	accepted atomic.Int64
	overruns atomic.Int64
}

// Create a new ChannelSink buffering up to queueSize frames.
// pool may be nil, in which case dropped and released frames are left to the GC.
func NewChannelSink(queueSize int, pool *frame.Pool) *ChannelSink {
	return &ChannelSink{
		pool:   pool,
		stream: make(chan frame.PCM16Frame, max(queueSize, 0)),
	}
}

func (s *ChannelSink) Accept(pcm frame.PCM16Frame) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	select {
	case s.stream <- pcm:
		s.accepted.Add(1)
	default:
		s.overruns.Add(1)
		release(s.pool, pcm)
	}
	return nil
}

// Get the stream of accepted frames.
// The channel is closed once Close is called and all queued frames are read.
func (s *ChannelSink) GetStream() <-chan frame.PCM16Frame {
	return s.stream
}

// Return a frame received from GetStream to the pool.
func (s *ChannelSink) Release(pcm frame.PCM16Frame) {
	release(s.pool, pcm)
}

// Stop accepting frames and close the stream.
// Must be called by the producer, never concurrently with Accept.
func (s *ChannelSink) Close() error {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		close(s.stream)
	})
	return nil
}

func (s *ChannelSink) Accepted() int64 {
	return s.accepted.Load()
}

func (s *ChannelSink) Overruns() int64 {
	return s.overruns.Load()
}

package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/google/uuid"
)

// Writes one frame to the underlying transport. Runs on the writer goroutine,
// so it may block and do I/O. pcm is only valid for the duration of the call.
type WriteFunc func(pcm frame.PCM16Frame) error

// A Sink that queues frames and writes them out from a dedicated goroutine.
//
// This is how a blocking transport (a network connection, a file) is put
// behind the non-blocking Accept contract. The first write error marks the
// sink as failed: queued frames are discarded and every later Accept returns
// an error wrapping ErrSinkClosed, so the stream is torn down rather than
// retried.
type AsyncSink struct {
	logger *slog.Logger
	uuid   uuid.UUID

	queue     *ChannelSink
	write     WriteFunc
	closeFunc func() error

	failed  atomic.Bool
	errMu   sync.Mutex
	err     error
	written atomic.Int64

	writerDone   chan struct{}
	shutdownOnce sync.Once
	closeErr     error
}

// Create a new AsyncSink and start its writer goroutine.
//
// name is used only to tag the logger. closeFunc, if not nil, is called once
// after the writer goroutine has drained the queue, to flush or close the
// underlying transport.
func NewAsyncSink(name string, write WriteFunc, closeFunc func() error, queueSize int, pool *frame.Pool) *AsyncSink {
	uuid := uuid.New()
	s := &AsyncSink{
		logger: slog.Default().With(
			name+" sink uuid", uuid,
		),
		uuid:       uuid,
		queue:      NewChannelSink(queueSize, pool),
		write:      write,
		closeFunc:  closeFunc,
		writerDone: make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *AsyncSink) writeLoop() {
	defer close(s.writerDone)
	for pcm := range s.queue.GetStream() {
		if s.failed.Load() {
			s.queue.Release(pcm)
			continue
		}
		err := s.write(pcm)
		s.queue.Release(pcm)
		if err != nil {
			s.logger.Error("error while writing frame", "err", err)
			s.fail(err)
			continue
		}
		s.written.Add(1)
	}
	s.logger.Debug("queue closed")
}

// Mark the sink as failed with cause. Only the first cause is kept.
func (s *AsyncSink) fail(cause error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = cause
		s.failed.Store(true)
	}
}

func (s *AsyncSink) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *AsyncSink) Accept(pcm frame.PCM16Frame) error {
	if s.failed.Load() {
		return fmt.Errorf("%w: %w", ErrSinkClosed, s.Err())
	}
	return s.queue.Accept(pcm)
}

// Close the queue, wait for the writer to drain it and close the transport.
// Returns the first write error, if any, joined with the error of closing the transport.
func (s *AsyncSink) Close() error {
	s.shutdownOnce.Do(func() {
		s.queue.Close()
		<-s.writerDone
		var closeErr error
		if s.closeFunc != nil {
			closeErr = s.closeFunc()
		}
		s.closeErr = errors.Join(s.Err(), closeErr)
		s.logger.Debug("closed", "written", s.written.Load(), "overruns", s.queue.Overruns())
	})
	return s.closeErr
}

type AsyncSinkStats struct {
	Written  int64 `json:"written"`
	Overruns int64 `json:"overruns"`
	Failed   bool  `json:"failed"`
}

func (s *AsyncSink) Stats() AsyncSinkStats {
	return AsyncSinkStats{
		Written:  s.written.Load(),
		Overruns: s.queue.Overruns(),
		Failed:   s.failed.Load(),
	}
}

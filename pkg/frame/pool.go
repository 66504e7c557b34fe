package frame

import "sync/atomic"

// A bounded free list of PCM16Frame buffers.
//
// The audio callback takes buffers with Get and hands them to a sink, the sink
// returns them with Put once it no longer needs the data. Neither call blocks.
//
// Get and Put may be called from different goroutines.
type Pool struct {
	frameSize int
	free      chan PCM16Frame

	allocations atomic.Int64
}

// Create a new Pool holding capacity buffers of frameSize samples each.
// All buffers are allocated up front.
//
// A non-positive capacity gives a pool that always allocates,
// which is only useful in tests.
func NewPool(frameSize int, capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	p := &Pool{
		frameSize: frameSize,
		free:      make(chan PCM16Frame, capacity),
	}
	for range capacity {
		p.free <- make(PCM16Frame, frameSize)
	}
	return p
}

// Get a buffer of length n.
//
// If no pooled buffer is free, or the free buffer is too small for n samples,
// a new buffer is allocated and counted in Allocations. In steady state
// (sinks returning buffers as fast as the callback takes them) Get never allocates.
func (p *Pool) Get(n int) PCM16Frame {
	select {
	case buf := <-p.free:
		if cap(buf) >= n {
			return buf[:n]
		}
		// Too small for n, but still good for smaller frames.
		select {
		case p.free <- buf:
		default:
		}
	default:
	}
	p.allocations.Add(1)
	return make(PCM16Frame, n, max(n, p.frameSize))
}

// Return a buffer to the pool. The caller must not touch buf afterwards.
// If the pool is already full the buffer is dropped.
func (p *Pool) Put(buf PCM16Frame) {
	if buf == nil {
		return
	}
	select {
	case p.free <- buf[:cap(buf)]:
	default:
	}
}

// The number of buffers Get has had to allocate since the pool was created.
func (p *Pool) Allocations() int64 {
	return p.allocations.Load()
}

// The number of buffers currently free.
func (p *Pool) Free() int {
	return len(p.free)
}

// The nominal buffer size in samples.
func (p *Pool) FrameSize() int {
	return p.frameSize
}

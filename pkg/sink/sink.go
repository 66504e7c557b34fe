// Package sink provides the downstream side of a FrameQuantizer: places a
// quantized PCM16 frame can be handed to without blocking the audio callback.
//
// Every sink takes ownership of the frame passed to Accept. Sinks built with
// a frame.Pool return buffers to it once the data has been written out, so
// the quantizer and its sinks should share one pool.
//
// Accept and Close on the same sink must be called from the same goroutine,
// the one producing frames. Closing cascades downstream, as with the
// source/sink devices of this module.
package sink

import (
	"errors"
	"io"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

var (
	// The sink was closed, or its transport failed. Returned (possibly wrapped)
	// from Accept; the stream it feeds should be torn down.
	ErrSinkClosed = errors.New("sink closed")
)

type Sink interface {
	// Take ownership of pcm. Must not block.
	Accept(pcm frame.PCM16Frame) error
	io.Closer
}

func release(pool *frame.Pool, pcm frame.PCM16Frame) {
	if pool != nil {
		pool.Put(pcm)
	}
}

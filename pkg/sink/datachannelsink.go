package sink

import (
	"errors"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/encoderdecoder"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/pion/webrtc/v4"
)

var (
	errDataChannelNotOpen = errors.New("data channel is not open")
	errDataChannelClosed  = errors.New("data channel closed")
)

type dataChannelSender interface {
	Send(data []byte) error
}

// The parts of *webrtc.DataChannel a DataChannelSink uses.
type dataChannel interface {
	dataChannelSender
	Label() string
	ReadyState() webrtc.DataChannelState
	OnClose(f func())
}

// Create a Sink sending each frame as one message on an open WebRTC data
// channel, encoded by encdec. A nil encdec sends little-endian PCM16 bytes.
//
// When the data channel closes the sink fails, so the next Accept
// reports the stream as gone.
func NewDataChannelSink(dc *webrtc.DataChannel, encdec encoderdecoder.EncoderDecoder, queueSize int, pool *frame.Pool) (*AsyncSink, error) {
	return attachDataChannel(dc, encdec, queueSize, pool)
}

func attachDataChannel(dc dataChannel, encdec encoderdecoder.EncoderDecoder, queueSize int, pool *frame.Pool) (*AsyncSink, error) {
	s := newDataChannelSink(dc, encdec, queueSize, pool)
	dc.OnClose(func() {
		s.logger.Info("data channel closed", "label", dc.Label())
		s.fail(errDataChannelClosed)
	})
	// Checked only once OnClose is registered, so a close in between still fails the sink.
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		s.fail(errDataChannelNotOpen)
		s.Close()
		return nil, errDataChannelNotOpen
	}
	s.logger.Debug("attached to data channel", "label", dc.Label())
	return s, nil
}

func newDataChannelSink(sender dataChannelSender, encdec encoderdecoder.EncoderDecoder, queueSize int, pool *frame.Pool) *AsyncSink {
	if encdec == nil {
		encdec = encoderdecoder.PCM16LEEncoderDecoder{}
	}
	var buf frame.EncodedFrame
	write := func(pcm frame.PCM16Frame) error {
		var err error
		buf, err = encdec.Encode(buf, pcm)
		if err != nil {
			return err
		}
		return sender.Send(buf)
	}
	return NewAsyncSink("datachannel", write, nil, queueSize, pool)
}

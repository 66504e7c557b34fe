package sink

import (
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/encoderdecoder"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/gorilla/websocket"
)

// Anything that can write a websocket message. *websocket.Conn satisfies this,
// as does a client that serialises writers onto one connection.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Create a Sink sending each frame as one binary websocket message,
// encoded by encdec. A nil encdec sends little-endian PCM16 bytes.
//
// The connection itself is not closed by the sink; its owner does that.
func NewWebSocketSink(conn MessageWriter, encdec encoderdecoder.EncoderDecoder, queueSize int, pool *frame.Pool) *AsyncSink {
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
		return conn.WriteMessage(websocket.BinaryMessage, buf)
	}
	return NewAsyncSink("websocket", write, nil, queueSize, pool)
}

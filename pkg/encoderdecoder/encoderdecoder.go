package encoderdecoder

import (
	"errors"
	"fmt"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

type EncoderDecoderTypeEnum string

var (
	EncoderDecoderTypeNotImplemented EncoderDecoderTypeEnum = "not implemented"
	EncoderDecoderTypePCM16LE        EncoderDecoderTypeEnum = "pcm16le"
)

var (
	errEncoderDecoderTypeNotImplemented = errors.New("specified encoderdecoder type is not implemented")
)

// Wire encoder/decoder interface.
// Used to encode PCM16 frames to the bytes sent to a transport,
// and decode those bytes back to PCM16 frames.
//
// Both methods write into dst when it has enough capacity,
// so a caller that keeps dst across calls does not allocate.
type EncoderDecoder interface {
	Encode(dst frame.EncodedFrame, pcmData frame.PCM16Frame) (frame.EncodedFrame, error)
	Decode(dst frame.PCM16Frame, encodedData frame.EncodedFrame) (frame.PCM16Frame, error)
}

// Create a new encoder/decoder of the given type.
// If the type has no implementation a nil EncoderDecoder and an error is returned.
func NewEncoderDecoder(encoderdecoderID EncoderDecoderTypeEnum) (EncoderDecoder, error) {
	switch encoderdecoderID {
	case EncoderDecoderTypePCM16LE:
		return PCM16LEEncoderDecoder{}, nil
	case EncoderDecoderTypeNotImplemented:
		return nil, errEncoderDecoderTypeNotImplemented
	default:
		return nil, fmt.Errorf("%w: %q", errEncoderDecoderTypeNotImplemented, encoderdecoderID)
	}
}

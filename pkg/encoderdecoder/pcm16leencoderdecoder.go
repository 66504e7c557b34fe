package encoderdecoder

import (
	"encoding/binary"
	"errors"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

var (
	errOddLength = errors.New("encoded pcm16 data has odd length")
)

// Raw 16-bit PCM, two bytes per sample, little-endian regardless of host byte order.
// This is the format the voice backend expects on its binary websocket messages.
type PCM16LEEncoderDecoder struct{}

func (encdec PCM16LEEncoderDecoder) Encode(dst frame.EncodedFrame, pcmData frame.PCM16Frame) (frame.EncodedFrame, error) {
	n := 2 * len(pcmData)
	if cap(dst) < n {
		dst = make(frame.EncodedFrame, n)
	}
	dst = dst[:n]
	for i, s := range pcmData {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
	return dst, nil
}

func (encdec PCM16LEEncoderDecoder) Decode(dst frame.PCM16Frame, encodedData frame.EncodedFrame) (frame.PCM16Frame, error) {
	if len(encodedData)%2 != 0 {
		return nil, errOddLength
	}
	n := len(encodedData) / 2
	if cap(dst) < n {
		dst = make(frame.PCM16Frame, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(encodedData[2*i:]))
	}
	return dst, nil
}

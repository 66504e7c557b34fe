package sink

import (
	"errors"
	"os"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Create a Sink recording frames to a 16-bit mono .WAV file at audioFilePath.
// The file is only a valid .WAV once the sink is closed.
func NewWAVSink(audioFilePath string, sampleRate int, queueSize int, pool *frame.Pool) (*AsyncSink, error) {
	if sampleRate <= 0 {
		return nil, errors.New("non-positive sample rate")
	}
	f, err := os.Create(audioFilePath)
	if err != nil {
		return nil, err
	}

	encoder := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		SourceBitDepth: 16,
	}

	write := func(pcm frame.PCM16Frame) error {
		if cap(buf.Data) < len(pcm) {
			buf.Data = make([]int, len(pcm))
		}
		buf.Data = buf.Data[:len(pcm)]
		for i, s := range pcm {
			buf.Data[i] = int(s)
		}
		return encoder.Write(buf)
	}
	closeFunc := func() error {
		errEnc := encoder.Close()
		errSync := f.Sync()
		errClose := f.Close()
		return errors.Join(errEnc, errSync, errClose)
	}

	s := NewAsyncSink("wav", write, closeFunc, queueSize, pool)
	s.logger.Debug("recording to file", "audioFile", audioFilePath, "sampleRate", sampleRate)
	return s, nil
}

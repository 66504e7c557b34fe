package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

var (
	errUnsupportedBitDepth = errors.New("unsupported bit depth")
)

// --------------------------------------------------------------------------------
// FileAudioInputDevice

// Define an AudioSourceDevice that reads a .WAV file and sends it as fixed-size frames,
// standing in for a microphone.
//
// Samples are normalized to [-1.0, 1.0] by the full scale of the file's bit depth.
type FileAudioInputDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	shutdownOnce sync.Once

	errMu sync.Mutex
	err   error

	decoder         *wav.Decoder
	fileHandle      *os.File
	samplesPerFrame int
	frameDuration   time.Duration
	paced           bool
	sinkStream      chan frame.PCMFrame
}

// Make a new FileAudioInputDevice from a .WAV file (on the audioFilePath).
//
// Every frame holds samplesPerFrame samples (interleaved, if the file is not mono),
// except possibly the last, which holds whatever remains.
// If paced is true, frames are sent at the rate they would arrive from a
// capture device; otherwise they are sent as fast as the receiver takes them.
func NewFileAudioInputDevice(
	audioFilePath string,
	samplesPerFrame int,
	paced bool,
) (*FileAudioInputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file input device uuid", uuid,
	)

	if samplesPerFrame <= 0 {
		logger.Error("non-positive samples per frame", "samplesPerFrame", samplesPerFrame)
		return nil, errors.New("non-positive samples per frame")
	}

	f, err := os.Open(audioFilePath)
	if err != nil {
		logger.Error(
			"could not open audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	decoder := wav.NewDecoder(f)

	if !decoder.IsValidFile() {
		logger.Error(
			"could not decode audio file",
			"audioFile", audioFilePath,
			"err", decoder.Err(),
		)
		f.Close()
		return nil, errors.New("error while decoding audio file")
	}

	samplesPerSecond := int(decoder.SampleRate) * int(decoder.NumChans)
	if samplesPerSecond <= 0 {
		f.Close()
		return nil, errors.New("audio file has no samples per second")
	}
	frameDuration := time.Duration(samplesPerFrame) * time.Second / time.Duration(samplesPerSecond)

	logger.Debug(
		"loaded audio file",
		"audioFile", audioFilePath,
		"sampleRate", decoder.SampleRate,
		"channels", decoder.NumChans,
		"bitDepth", decoder.BitDepth,
		"samplesPerFrame", samplesPerFrame,
		"frameDuration", frameDuration,
	)

	return &FileAudioInputDevice{
		logger:          logger,
		uuid:            uuid,
		decoder:         decoder,
		fileHandle:      f,
		samplesPerFrame: samplesPerFrame,
		frameDuration:   frameDuration,
		paced:           paced,
		sinkStream:      make(chan frame.PCMFrame),
	}, nil
}

// Play the audio file loaded by this input device.
// The device closes itself when the file is exhausted.
// If the context is canceled, the playback stops.
func (d *FileAudioInputDevice) Play(ctx context.Context) {
	d.logger.Debug("playing audio")
	go func() {
		defer d.Close()

		buf, err := d.decoder.FullPCMBuffer()
		if err != nil {
			d.logger.Error(
				"could not get full PCM buffer from audio file",
				"err", err,
			)
			d.setErr(fmt.Errorf("could not decode audio file: %w", err))
			return
		}
		if buf.SourceBitDepth < 2 {
			d.logger.Error("unsupported bit depth", "bitDepth", buf.SourceBitDepth)
			d.setErr(fmt.Errorf("%w: %d", errUnsupportedBitDepth, buf.SourceBitDepth))
			return
		}
		fullScale := float32(int(1)<<(buf.SourceBitDepth-1) - 1)

		// The stream is unbuffered, so once a send of one buffer completes the
		// receiver is done with the other. Two buffers are enough.
		frames := [2]frame.PCMFrame{
			make(frame.PCMFrame, d.samplesPerFrame),
			make(frame.PCMFrame, d.samplesPerFrame),
		}

		var ticks <-chan time.Time
		if d.paced {
			ticker := time.NewTicker(d.frameDuration)
			defer ticker.Stop()
			ticks = ticker.C
		}

		for n, frameStart := 0, 0; frameStart < len(buf.Data); n, frameStart = n+1, frameStart+d.samplesPerFrame {
			frameEnd := min(frameStart+d.samplesPerFrame, len(buf.Data))
			pcmFrame := frames[n%2][:frameEnd-frameStart]
			for i := range pcmFrame {
				pcmFrame[i] = float32(buf.Data[frameStart+i]) / fullScale
			}

			if ticks != nil {
				select {
				case <-ticks:
				case <-ctx.Done():
					return
				}
			}
			select {
			case d.sinkStream <- pcmFrame:
			case <-ctx.Done():
				return
			}
		}
		d.logger.Debug("finished playing")
	}()
}

func (d *FileAudioInputDevice) setErr(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	d.err = err
}

// The error that ended playback early, or nil if the file played out
// (or playback was canceled). Meaningful once the stream is closed.
func (d *FileAudioInputDevice) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *FileAudioInputDevice) Close() {
	d.logger.Debug("shutdown called")
	d.shutdownOnce.Do(func() {
		close(d.sinkStream)
		d.fileHandle.Close()
	})
}

func (d *FileAudioInputDevice) GetStream() <-chan frame.PCMFrame {
	return d.sinkStream
}

func (d *FileAudioInputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return audiodevice.DeviceProperties{
		SampleRate:  int(d.decoder.SampleRate),
		NumChannels: int(d.decoder.NumChans),
	}
}

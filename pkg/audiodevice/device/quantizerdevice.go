package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/quantizer"
	"github.com/google/uuid"
)

var (
	errNotMono = errors.New("quantizer device requires single channel audio")
)

// An AudioSinkDevice driving a FrameQuantizer: every frame arriving on the
// source stream is processed once, in arrival order, on one goroutine.
//
// This is the host side of the quantizer. It stands where a platform audio
// callback would; the goroutine does nothing but call Process.
//
// If the quantizer reports its sink as unavailable the device records the
// error, closes Failed, and from then on drains the source stream without
// processing, so the upstream never blocks. The owner should react to Failed
// by closing the upstream source, which closes this device.
type QuantizerDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	properties audiodevice.DeviceProperties
	quantizer  *quantizer.FrameQuantizer

	ctx           context.Context
	ctxCancelFunc context.CancelFunc

	failOnce sync.Once
	failed   chan struct{}
	err      error

	discarded atomic.Int64
}

// Create a new QuantizerDevice. The device will only start processing once SetStream is called.
func NewQuantizerDevice(
	q *quantizer.FrameQuantizer,
	properties audiodevice.DeviceProperties,
) (*QuantizerDevice, error) {
	if properties.NumChannels != 1 {
		return nil, errNotMono
	}

	uuid := uuid.New()
	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	return &QuantizerDevice{
		logger: slog.Default().With(
			"quantizer device uuid", uuid,
		),
		uuid:          uuid,
		properties:    properties,
		quantizer:     q,
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		failed:        make(chan struct{}),
	}, nil
}

// --------------------------------------------------------------------------------
// AudioSinkDevice Interface

// Set the source channel of this audio device, i.e. where data comes from.
//
// When this stream is closed the device is done; WaitForClose returns.
func (d *QuantizerDevice) SetStream(sourceStream <-chan frame.PCMFrame) {
	go func() {
		defer d.ctxCancelFunc()
		for pcmFrame := range sourceStream {
			select {
			case <-d.failed:
				d.discarded.Add(1)
				continue
			default:
			}

			if _, err := d.quantizer.Process(pcmFrame); err != nil {
				d.fail(err)
			}
		}
		stats := d.quantizer.Stats()
		d.logger.Debug(
			"source stream closed",
			"framesDelivered", stats.FramesDelivered,
			"framesSkipped", stats.FramesSkipped,
			"samplesClipped", stats.SamplesClipped,
			"invalidSamples", stats.InvalidSamples,
			"poolAllocations", stats.PoolAllocations,
			"discarded", d.discarded.Load(),
		)
	}()
}

func (d *QuantizerDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// --------------------------------------------------------------------------------

func (d *QuantizerDevice) fail(err error) {
	d.failOnce.Do(func() {
		d.logger.Error("stream failed, discarding further frames", "err", err)
		d.err = err
		close(d.failed)
	})
}

// Closed when the quantizer's sink has become unavailable.
func (d *QuantizerDevice) Failed() <-chan struct{} {
	return d.failed
}

// The error that failed the stream, or nil.
// Only meaningful once Failed is closed or WaitForClose has returned.
func (d *QuantizerDevice) Err() error {
	select {
	case <-d.failed:
		return d.err
	default:
		return nil
	}
}

// Wait for the source stream to close and all frames to be handled.
func (d *QuantizerDevice) WaitForClose() {
	<-d.ctx.Done()
}

// Frames received after the stream failed and dropped without processing.
func (d *QuantizerDevice) Discarded() int64 {
	return d.discarded.Load()
}

func (d *QuantizerDevice) Quantizer() *quantizer.FrameQuantizer {
	return d.quantizer
}

package device

import (
	"context"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

// An AudioSourceDevice that plays a fixed list of frames, then closes.
//
// A minimal example of the architecture of an AudioSourceDevice, useful in testing.
type DummyAudioSourceDevice struct {
	properties   audiodevice.DeviceProperties
	frames       []frame.PCMFrame
	shutdownOnce sync.Once
	sinkStream   chan frame.PCMFrame
}

func NewDummyAudioSourceDevice(properties audiodevice.DeviceProperties, frames ...frame.PCMFrame) *DummyAudioSourceDevice {
	return &DummyAudioSourceDevice{
		properties: properties,
		frames:     frames,
		sinkStream: make(chan frame.PCMFrame),
	}
}

// Send every frame in order, then close the device.
// If the context is canceled, the playback stops and the device is closed.
func (d *DummyAudioSourceDevice) Play(ctx context.Context) {
	go func() {
		defer d.Close()
		for _, f := range d.frames {
			select {
			case d.sinkStream <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *DummyAudioSourceDevice) Close() {
	d.shutdownOnce.Do(func() {
		close(d.sinkStream)
	})
}

func (d *DummyAudioSourceDevice) GetStream() <-chan frame.PCMFrame {
	return d.sinkStream
}

func (d *DummyAudioSourceDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

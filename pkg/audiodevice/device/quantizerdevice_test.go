package device

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/quantizer"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/sink"
)

var monoProperties = audiodevice.DeviceProperties{SampleRate: 16000, NumChannels: 1}

func waitForClose(t *testing.T, d *QuantizerDevice) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		d.WaitForClose()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quantizer device to close")
	}
}

func TestQuantizerDevice_ProcessesStreamInOrder(t *testing.T) {
	pool := frame.NewPool(5, 4)
	out := sink.NewChannelSink(8, pool)
	q, err := quantizer.New(out, quantizer.DefaultConfig(), quantizer.WithPool(pool))
	if err != nil {
		t.Fatalf("quantizer.New failed: %v", err)
	}
	d, err := NewQuantizerDevice(q, monoProperties)
	if err != nil {
		t.Fatalf("NewQuantizerDevice failed: %v", err)
	}

	source := NewDummyAudioSourceDevice(
		monoProperties,
		frame.PCMFrame{0.0, 1.0, -1.0, 1.25, -1.25},
		frame.PCMFrame{},
		frame.PCMFrame{0.5},
	)
	d.SetStream(source.GetStream())
	source.Play(context.Background())
	waitForClose(t, d)
	out.Close()

	var got []frame.PCM16Frame
	for pcm := range out.GetStream() {
		got = append(got, slices.Clone(pcm))
		out.Release(pcm)
	}

	want := []frame.PCM16Frame{
		{0, 26213, -26213, 32767, -32767},
		{13106},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(got))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("frame %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if d.Err() != nil {
		t.Errorf("expected no error, got %v", d.Err())
	}
	if stats := q.Stats(); stats.FramesDelivered != 2 || stats.FramesSkipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestQuantizerDevice_SinkUnavailableDrains(t *testing.T) {
	out := sink.NewChannelSink(8, nil)
	out.Close()
	q, err := quantizer.New(out, quantizer.DefaultConfig())
	if err != nil {
		t.Fatalf("quantizer.New failed: %v", err)
	}
	d, err := NewQuantizerDevice(q, monoProperties)
	if err != nil {
		t.Fatalf("NewQuantizerDevice failed: %v", err)
	}

	source := NewDummyAudioSourceDevice(
		monoProperties,
		frame.PCMFrame{0.1},
		frame.PCMFrame{0.2},
		frame.PCMFrame{0.3},
	)
	d.SetStream(source.GetStream())
	source.Play(context.Background())

	select {
	case <-d.Failed():
	case <-time.After(2 * time.Second):
		t.Fatal("expected device to fail")
	}
	waitForClose(t, d)

	if !errors.Is(d.Err(), quantizer.ErrSinkUnavailable) {
		t.Errorf("expected ErrSinkUnavailable, got %v", d.Err())
	}
	if !errors.Is(d.Err(), sink.ErrSinkClosed) {
		t.Errorf("expected cause ErrSinkClosed, got %v", d.Err())
	}
	if d.Discarded() != 2 {
		t.Errorf("expected 2 discarded frames, got %d", d.Discarded())
	}
}

func TestNewQuantizerDevice_RequiresMono(t *testing.T) {
	q, err := quantizer.New(sink.NewChannelSink(1, nil), quantizer.DefaultConfig())
	if err != nil {
		t.Fatalf("quantizer.New failed: %v", err)
	}
	stereo := audiodevice.DeviceProperties{SampleRate: 16000, NumChannels: 2}
	if _, err := NewQuantizerDevice(q, stereo); !errors.Is(err, errNotMono) {
		t.Errorf("expected errNotMono, got %v", err)
	}
}

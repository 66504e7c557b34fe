package sink

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/go-audio/wav"
)

func TestWAVSink_RecordsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s, err := NewWAVSink(path, 16000, 8, nil)
	if err != nil {
		t.Fatalf("NewWAVSink failed: %v", err)
	}

	frames := []frame.PCM16Frame{
		{0, 100, -100},
		{32767, -32767},
	}
	for _, pcm := range frames {
		if err := s.Accept(pcm); err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer failed: %v", err)
	}
	if decoder.SampleRate != 16000 || decoder.NumChans != 1 || decoder.BitDepth != 16 {
		t.Errorf("unexpected format: rate=%d chans=%d depth=%d", decoder.SampleRate, decoder.NumChans, decoder.BitDepth)
	}

	want := []int{0, 100, -100, 32767, -32767}
	if !slices.Equal(buf.Data, want) {
		t.Errorf("expected %v, got %v", want, buf.Data)
	}
}

func TestNewWAVSink_RejectsBadSampleRate(t *testing.T) {
	if _, err := NewWAVSink(filepath.Join(t.TempDir(), "x.wav"), 0, 1, nil); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

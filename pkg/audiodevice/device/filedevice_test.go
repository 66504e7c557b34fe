package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, sampleRate int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	encoder := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("encoder Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func collect(t *testing.T, stream <-chan frame.PCMFrame) []frame.PCMFrame {
	t.Helper()
	var frames []frame.PCMFrame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-stream:
			if !ok {
				return frames
			}
			frames = append(frames, slices.Clone(f))
		case <-timeout:
			t.Fatal("timed out reading stream")
		}
	}
}

func TestFileAudioInputDevice_Frames(t *testing.T) {
	path := writeTestWAV(t, 16000, []int{0, 32767, -32767, 16384, 1})

	d, err := NewFileAudioInputDevice(path, 2, false)
	if err != nil {
		t.Fatalf("NewFileAudioInputDevice failed: %v", err)
	}
	props := d.GetDeviceProperties()
	if props.SampleRate != 16000 || props.NumChannels != 1 {
		t.Errorf("unexpected properties %+v", props)
	}

	d.Play(context.Background())
	frames := collect(t, d.GetStream())

	want := []frame.PCMFrame{
		{0, 1},
		{-1, 16384.0 / 32767},
		{1.0 / 32767},
	}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i := range want {
		if !slices.Equal(frames[i], want[i]) {
			t.Errorf("frame %d: expected %v, got %v", i, want[i], frames[i])
		}
	}
}

func TestFileAudioInputDevice_Paced(t *testing.T) {
	// 4 frames of 10ms each
	path := writeTestWAV(t, 16000, make([]int, 640))

	d, err := NewFileAudioInputDevice(path, 160, true)
	if err != nil {
		t.Fatalf("NewFileAudioInputDevice failed: %v", err)
	}
	start := time.Now()
	d.Play(context.Background())
	frames := collect(t, d.GetStream())

	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected paced playback to take at least 30ms, took %v", elapsed)
	}
}

func TestFileAudioInputDevice_CancelStops(t *testing.T) {
	path := writeTestWAV(t, 16000, make([]int, 16000))

	d, err := NewFileAudioInputDevice(path, 160, true)
	if err != nil {
		t.Fatalf("NewFileAudioInputDevice failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.Play(ctx)
	<-d.GetStream()
	cancel()

	frames := collect(t, d.GetStream())
	if len(frames) > 2 {
		t.Errorf("expected playback to stop after cancel, got %d more frames", len(frames))
	}
}

func TestNewFileAudioInputDevice_Errors(t *testing.T) {
	if _, err := NewFileAudioInputDevice(filepath.Join(t.TempDir(), "missing.wav"), 160, false); err == nil {
		t.Error("expected error for missing file")
	}

	notWAV := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(notWAV, []byte("definitely not riff"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileAudioInputDevice(notWAV, 160, false); err == nil {
		t.Error("expected error for invalid file")
	}

	path := writeTestWAV(t, 16000, []int{1})
	if _, err := NewFileAudioInputDevice(path, 0, false); err == nil {
		t.Error("expected error for zero frame size")
	}
}

// A well-formed header for 12-bit mono PCM, which the decoder accepts but cannot decode.
func write12BitWAV(t *testing.T) string {
	t.Helper()
	data := []byte{0x10, 0x00, 0x20, 0x00}
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))     // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1))     // channels
	binary.Write(&b, binary.LittleEndian, uint32(16000)) // sample rate
	binary.Write(&b, binary.LittleEndian, uint32(32000)) // bytes per second
	binary.Write(&b, binary.LittleEndian, uint16(2))     // block align
	binary.Write(&b, binary.LittleEndian, uint16(12))    // bits per sample
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)

	path := filepath.Join(t.TempDir(), "12bit.wav")
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileAudioInputDevice_DecodeErrorIsReported(t *testing.T) {
	d, err := NewFileAudioInputDevice(write12BitWAV(t), 160, false)
	if err != nil {
		t.Fatalf("NewFileAudioInputDevice failed: %v", err)
	}
	d.Play(context.Background())
	if frames := collect(t, d.GetStream()); len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
	if d.Err() == nil {
		t.Error("expected a decode error after the stream closed")
	}
}

func TestFileAudioInputDevice_NoErrOnFullPlayback(t *testing.T) {
	d, err := NewFileAudioInputDevice(writeTestWAV(t, 16000, []int{1, 2, 3}), 2, false)
	if err != nil {
		t.Fatalf("NewFileAudioInputDevice failed: %v", err)
	}
	d.Play(context.Background())
	collect(t, d.GetStream())
	if err := d.Err(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

package sink

import (
	"errors"
	"slices"
	"testing"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

func TestTee_CopiesToSecondaries(t *testing.T) {
	pool := frame.NewPool(3, 4)
	primary := NewChannelSink(2, pool)
	secondary := NewChannelSink(2, pool)
	tee := NewTee(pool, primary, secondary)

	pcm := pool.Get(3)
	copy(pcm, frame.PCM16Frame{1, 2, 3})
	if err := tee.Accept(pcm); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := tee.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	p := <-primary.GetStream()
	s := <-secondary.GetStream()
	if &p[0] != &pcm[0] {
		t.Error("expected primary to receive the original buffer")
	}
	if &s[0] == &pcm[0] {
		t.Error("expected secondary to receive a copy")
	}
	if !slices.Equal(p, s) {
		t.Errorf("copy differs: %v vs %v", p, s)
	}
}

func TestTee_SecondaryFailure(t *testing.T) {
	pool := frame.NewPool(1, 2)
	primary := NewChannelSink(2, pool)
	secondary := NewChannelSink(2, pool)
	secondary.Close()
	tee := NewTee(pool, primary, secondary)

	if err := tee.Accept(pool.Get(1)); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
	if primary.Accepted() != 0 {
		t.Error("expected primary not to receive a frame")
	}
}

package sink

import (
	"errors"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
)

// A Sink duplicating every frame to several sinks.
//
// The primary sink receives the original buffer; each secondary receives a
// copy drawn from the pool, so every sink owns the buffer it is given.
//
// A failure of any sink fails the Tee.
type Tee struct {
	pool        *frame.Pool
	primary     Sink
	secondaries []Sink
}

func NewTee(pool *frame.Pool, primary Sink, secondaries ...Sink) *Tee {
	if pool == nil {
		pool = frame.NewPool(0, 0)
	}
	return &Tee{
		pool:        pool,
		primary:     primary,
		secondaries: secondaries,
	}
}

func (t *Tee) Accept(pcm frame.PCM16Frame) error {
	for _, s := range t.secondaries {
		cp := t.pool.Get(len(pcm))
		copy(cp, pcm)
		if err := s.Accept(cp); err != nil {
			t.pool.Put(cp)
			return err
		}
	}
	return t.primary.Accept(pcm)
}

// Close every sink, secondaries first.
func (t *Tee) Close() error {
	errs := make([]error, 0, len(t.secondaries)+1)
	for _, s := range t.secondaries {
		errs = append(errs, s.Close())
	}
	errs = append(errs, t.primary.Close())
	return errors.Join(errs...)
}

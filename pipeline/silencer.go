package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// silencerChunkFrames is the length of each synthesised block: small enough
// that real audio arriving mid-gap resumes promptly, large enough that an
// idle driver isn't spun on per-sample allocations.
const silencerChunkFrames = 1024

// Silencer wraps the pipeline head for drivers that must never block: when
// no message is ready, Pull synthesises a zeroed Playable at the last seen
// stream format instead of parking the driver thread. Before the first
// Playable has established a format, Pull blocks normally; there is
// nothing sensible to synthesise.
//
// It is an active element: Run ferries messages from upstream on its own
// goroutine so Pull can distinguish "nothing ready" from "upstream slow".
type Silencer struct {
	upstream Supply
	factory  *msg.Factory
	ch       chan msg.Message

	mu         sync.Mutex
	sampleRate uint32
	channels   uint32
}

func NewSilencer(upstream Supply, f *msg.Factory) *Silencer {
	return &Silencer{upstream: upstream, factory: f, ch: make(chan msg.Message, 4)}
}

// Run pulls from upstream until a Quit passes through or upstream returns
// nil. Intended for its own goroutine, started alongside the driver.
func (s *Silencer) Run() {
	for {
		m := s.upstream.Pull()
		if m == nil {
			close(s.ch)
			return
		}
		s.ch <- m
		if _, ok := m.(*msg.Quit); ok {
			close(s.ch)
			return
		}
	}
}

func (s *Silencer) Pull() msg.Message {
	s.mu.Lock()
	rate, channels := s.sampleRate, s.channels
	s.mu.Unlock()

	if rate == 0 {
		m, ok := <-s.ch
		if !ok {
			return nil
		}
		s.observe(m)
		return m
	}

	select {
	case m, ok := <-s.ch:
		if !ok {
			return nil
		}
		s.observe(m)
		return m
	default:
		samples := make([]int16, silencerChunkFrames*int(channels))
		return s.factory.NewPlayable(samples, silencerChunkFrames, rate, channels)
	}
}

func (s *Silencer) observe(m msg.Message) {
	if pl, ok := m.(*msg.Playable); ok && pl.SampleRate != 0 {
		s.mu.Lock()
		s.sampleRate, s.channels = pl.SampleRate, pl.Channels
		s.mu.Unlock()
	}
}

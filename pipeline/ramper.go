package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Ramper ramps the first audio of an unsolicited mid-stream start up from
// silence: a DecodedStream whose SampleStart is nonzero or
// whose Live flag is set began somewhere other than a clean silence-to-audio
// transition already handled by Stopper/Seeker, so its first rampDuration
// worth of audio is ramped up the same way Stopper ramps up from a halt.
// Everything else passes straight through; this is a passive element.
type Ramper struct {
	mu       sync.Mutex
	upstream Supply
	rampDur  uint64

	ramping   bool
	current   uint32
	remaining uint64
}

func NewRamper(upstream Supply, rampDurationJiffies uint64) *Ramper {
	return &Ramper{upstream: upstream, rampDur: rampDurationJiffies}
}

func (r *Ramper) Pull() msg.Message {
	m := r.upstream.Pull()
	switch v := m.(type) {
	case *msg.DecodedStream:
		if v.SampleStart > 0 || v.Live {
			r.mu.Lock()
			r.ramping = true
			r.current = msg.RampMin
			r.remaining = r.rampDur
			r.mu.Unlock()
		}
		return v
	case *msg.AudioPcm:
		r.apply(v.Jiffies(), func(rr msg.Ramp) { v.Ramp = rr })
		return v
	case *msg.Silence:
		r.apply(v.Jiffies(), func(rr msg.Ramp) { v.Ramp = rr })
		return v
	default:
		return v
	}
}

func (r *Ramper) apply(span uint64, set func(msg.Ramp)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ramping {
		return
	}
	ramp, boundary, remaining, done := msg.ComputeRamp(r.current, r.remaining, span, msg.RampUp)
	set(ramp)
	r.current, r.remaining = boundary, remaining
	if done {
		r.ramping = false
	}
}

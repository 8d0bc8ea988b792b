package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Muter forces output silent regardless of the ramp state elsewhere in the
// chain. Muting and unmuting still ramp, so toggling mute never
// produces a click.
type Muter struct {
	mu       sync.Mutex
	muted    bool
	ramping  bool
	rampUp   bool
	current  uint32
	remain   uint64
	rampDur  uint64

	upstream Supply
}

func NewMuter(upstream Supply, rampDurationJiffies uint64) *Muter {
	return &Muter{upstream: upstream, rampDur: rampDurationJiffies, current: msg.RampMax}
}

// SetMuted begins ramping to/from silence; Pull applies the ramp to audio
// as it passes.
func (m *Muter) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.muted == muted {
		return
	}
	m.muted = muted
	m.ramping = true
	m.rampUp = !muted
	m.remain = m.rampDur
}

func (m *Muter) Pull() msg.Message {
	out := m.upstream.Pull()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.muted && !m.ramping {
		switch v := out.(type) {
		case *msg.AudioPcm:
			v.Ramp = msg.Ramp{Enabled: true, Start: msg.RampMin, End: msg.RampMin, Direction: msg.RampDown}
		case *msg.Silence:
			v.Ramp = msg.Ramp{Enabled: true, Start: msg.RampMin, End: msg.RampMin, Direction: msg.RampDown}
		}
		return out
	}
	if !m.ramping {
		return out
	}
	dir := msg.RampDown
	if m.rampUp {
		dir = msg.RampUp
	}
	switch v := out.(type) {
	case *msg.AudioPcm:
		r, boundary, after, done := msg.ComputeRamp(m.current, m.remain, v.Jiffies(), dir)
		v.Ramp = r
		m.current, m.remain = boundary, after
		if done {
			m.ramping = false
		}
	case *msg.Silence:
		r, boundary, after, done := msg.ComputeRamp(m.current, m.remain, v.Jiffies(), dir)
		v.Ramp = r
		m.current, m.remain = boundary, after
		if done {
			m.ramping = false
		}
	}
	return out
}

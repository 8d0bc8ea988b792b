package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/jiffies"
	"github.com/linn-oss/ohmediapipeline/msg"
)

// variableDelayEditRampJiffies is the ramp applied around a delay edit, so
// neither silence insertion nor audio dropping produces an audible click.
const variableDelayEditRampJiffies = 5 * jiffies.PerMs

// VariableDelay injects or removes a fixed amount of silence to implement
// a configurable latency offset. Two instances run in the pipeline, one for
// the source-added delay and one for the user-configured multiroom delay.
type VariableDelay struct {
	mu           sync.Mutex
	upstream     Supply
	factory      *msg.Factory
	delayJiffies uint64

	insertPending uint64 // jiffies of silence still owed (target > actual)
	dropPending   uint64 // jiffies of audio still to discard (target < actual)
	rampNextUp    bool   // next audio-bearing message should ramp up from silence
	rampNextDown  bool   // next audio-bearing message should ramp down before a drop begins
}

func NewVariableDelay(upstream Supply, f *msg.Factory) *VariableDelay {
	return &VariableDelay{upstream: upstream, factory: f}
}

// SetDelay changes the configured delay. The difference from the previous
// value is injected (if increased) or absorbed by dropping audio (if
// decreased) the next time audio flows, ramped so the change is inaudible as
// a click.
func (v *VariableDelay) SetDelay(target uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case target > v.delayJiffies:
		v.insertPending += target - v.delayJiffies
		v.rampNextUp = true
	case target < v.delayJiffies:
		v.dropPending += v.delayJiffies - target
		v.rampNextDown = true
	}
	v.delayJiffies = target
}

func (v *VariableDelay) Pull() msg.Message {
	for {
		v.mu.Lock()
		insert := v.insertPending
		v.insertPending = 0
		v.mu.Unlock()
		if insert > 0 {
			return v.insertSilence(insert)
		}

		m := v.upstream.Pull()
		if d, ok := m.(*msg.Delay); ok {
			v.mu.Lock()
			d.Jiffies += v.delayJiffies
			v.mu.Unlock()
			return m
		}

		v.mu.Lock()
		dropping := v.dropPending > 0
		v.mu.Unlock()
		if dropping && isAudio(m) {
			out, consumed := v.dropInto(m)
			if consumed {
				continue
			}
			return out
		}

		v.applyPendingRampUp(m)
		return m
	}
}

// insertSilence synthesises a silence block covering the owed delay,
// ramping it up from silence so the insertion itself is inaudible rather than producing a discontinuity.
func (v *VariableDelay) insertSilence(owedJiffies uint64) msg.Message {
	const rate = uint32(44100)
	frames := int(jiffies.ToSamples(owedJiffies, rate))
	span := uint64(frames) * jiffies.PerSecond / uint64(rate)
	r, _, _, _ := msg.ComputeRamp(msg.RampMin, variableDelayEditRampJiffies, span, msg.RampUp)
	return v.factory.NewSilence(frames, rate, 16, 2, r)
}

// dropInto discards audio-bearing messages toward the target reduction,
// ramping the boundary message down beforehand so the drop isn't audible as
// a click, and flagging the first surviving message after the drop to ramp
// back up. Drop accounting is message-granular: the last dropped message may
// slightly overshoot the exact target rather than requiring a sample-level
// split of its payload. The second return value reports whether m was
// consumed (dropped) rather than returned to the caller.
func (v *VariableDelay) dropInto(m msg.Message) (msg.Message, bool) {
	span := audioJiffies(m)

	v.mu.Lock()
	rampDown := v.rampNextDown
	v.rampNextDown = false
	v.mu.Unlock()
	if rampDown {
		r, _, _, _ := msg.ComputeRamp(msg.RampMax, variableDelayEditRampJiffies, span, msg.RampDown)
		setRamp(m, r)
		return m, false
	}

	v.mu.Lock()
	if v.dropPending <= span {
		v.dropPending = 0
		v.rampNextUp = true
	} else {
		v.dropPending -= span
	}
	v.mu.Unlock()
	m.Release()
	return nil, true
}

func (v *VariableDelay) applyPendingRampUp(m msg.Message) {
	if !isAudio(m) {
		return
	}
	v.mu.Lock()
	rampUp := v.rampNextUp
	if rampUp {
		v.rampNextUp = false
	}
	v.mu.Unlock()
	if !rampUp {
		return
	}
	span := audioJiffies(m)
	r, _, _, _ := msg.ComputeRamp(msg.RampMin, variableDelayEditRampJiffies, span, msg.RampUp)
	setRamp(m, r)
}

func audioJiffies(m msg.Message) uint64 {
	switch v := m.(type) {
	case *msg.AudioPcm:
		return v.Jiffies()
	case *msg.Silence:
		return v.Jiffies()
	default:
		return 0
	}
}

func setRamp(m msg.Message, r msg.Ramp) {
	switch v := m.(type) {
	case *msg.AudioPcm:
		v.Ramp = r
	case *msg.Silence:
		v.Ramp = r
	}
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Muting ramps the audio in flight down to silence and
// holds it there; unmuting ramps back up. Neither transition is a click.
func TestMuterRampsDownThenHoldsSilence(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	upstream := &fakeSupply{msgs: []msg.Message{
		pcmOfFrames(f, 10, rate),
		pcmOfFrames(f, 10, rate),
		pcmOfFrames(f, 10, rate),
	}}
	m := NewMuter(upstream, 100)
	m.SetMuted(true)

	var last *msg.AudioPcm
	for i := 0; i < 3; i++ {
		out := m.Pull().(*msg.AudioPcm)
		assert.True(t, out.Ramp.Enabled)
		assert.Equal(t, msg.RampDown, out.Ramp.Direction)
		last = out
	}
	assert.Equal(t, msg.RampMin, last.Ramp.End, "ramp should have completed to silence")
}

func TestMuterUnmuteRampsBackUp(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	upstream := &fakeSupply{}
	m := NewMuter(upstream, 100)
	m.SetMuted(true)

	upstream.msgs = []msg.Message{pcmOfFrames(f, 10, rate)}
	m.Pull()
	m.SetMuted(false)

	upstream.msgs = []msg.Message{pcmOfFrames(f, 10, rate)}
	upstream.i = 0
	out := m.Pull().(*msg.AudioPcm)
	assert.True(t, out.Ramp.Enabled)
	assert.Equal(t, msg.RampUp, out.Ramp.Direction)
}

// Pull must leave audio untouched while not muted and not mid-ramp.
func TestMuterPassesThroughWhenNotMuted(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	src := pcmOfFrames(f, 10, rate)
	upstream := &fakeSupply{msgs: []msg.Message{src}}
	m := NewMuter(upstream, 100)

	out := m.Pull()
	assert.Same(t, src, out)
	assert.False(t, out.(*msg.AudioPcm).Ramp.Enabled)
}

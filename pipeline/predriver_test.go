package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// AudioPcm is converted to Playable, applying any
// enabled ramp to the samples first.
func TestPreDriverConvertsAudioPcmApplyingRamp(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	samples := []int16{1000, 1000, 1000, 1000}
	pcm := f.NewAudioPcm(samples, 2, rate, 16, 2, 0, msg.Ramp{Enabled: true, Start: msg.RampMin, End: msg.RampMax, Direction: msg.RampUp})
	upstream := &fakeSupply{msgs: []msg.Message{pcm}}
	pd := NewPreDriver(upstream, f)

	out := pd.Pull()
	require.Equal(t, msg.KindPlayable, out.Kind())
	pl := out.(*msg.Playable)
	assert.Equal(t, 2, pl.Frames)
	assert.Less(t, pl.Samples[0], int16(1000), "the first frame should have been attenuated by the ramp-up's start gain")
}

// Silence is converted to a zeroed Playable of the right shape.
func TestPreDriverConvertsSilence(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	s := f.NewSilence(10, rate, 16, 2, msg.Ramp{})
	upstream := &fakeSupply{msgs: []msg.Message{s}}
	pd := NewPreDriver(upstream, f)

	out := pd.Pull()
	require.Equal(t, msg.KindPlayable, out.Kind())
	pl := out.(*msg.Playable)
	assert.Equal(t, 10, pl.Frames)
	assert.Len(t, pl.Samples, 20)
	for _, v := range pl.Samples {
		assert.Zero(t, v)
	}
}

// Control messages pass straight through untouched.
func TestPreDriverPassesThroughControlMessages(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	halt := f.NewHalt(1)
	upstream := &fakeSupply{msgs: []msg.Message{halt}}
	pd := NewPreDriver(upstream, f)

	out := pd.Pull()
	assert.Same(t, halt, out)
}

// A Drain barrier is acknowledged and consumed at the pipeline tail: its
// callback fires once everything ahead of it has been delivered.
func TestPreDriverAcknowledgesDrain(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	acked := false
	halt := f.NewHalt(3)
	upstream := &fakeSupply{msgs: []msg.Message{
		f.NewDrain(func() { acked = true }),
		halt,
	}}
	pd := NewPreDriver(upstream, f)

	out := pd.Pull()
	assert.Same(t, halt, out)
	assert.True(t, acked)
}

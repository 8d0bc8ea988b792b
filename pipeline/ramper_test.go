package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// A DecodedStream with a nonzero SampleStart began mid-track
// (e.g. after a seek) rather than at a clean silence boundary, so its first
// rampDuration worth of audio is ramped up from silence.
func TestRamperRampsUpAfterMidStreamStart(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	ds := f.NewDecodedStream(1, 0, 16, rate, 1, "pcm", 0, 5000, true, true, false, nil)
	upstream := &fakeSupply{msgs: []msg.Message{ds, pcmOfFrames(f, 10, rate)}}
	r := NewRamper(upstream, 100)

	got := r.Pull()
	assert.Same(t, ds, got)

	out := r.Pull().(*msg.AudioPcm)
	assert.True(t, out.Ramp.Enabled)
	assert.Equal(t, msg.RampUp, out.Ramp.Direction)
}

// A DecodedStream starting at sample 0 and not live needs no ramp.
func TestRamperPassesThroughCleanStart(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	ds := f.NewDecodedStream(1, 0, 16, rate, 1, "pcm", 0, 0, true, true, false, nil)
	upstream := &fakeSupply{msgs: []msg.Message{ds, pcmOfFrames(f, 10, rate)}}
	r := NewRamper(upstream, 100)

	r.Pull()
	out := r.Pull().(*msg.AudioPcm)
	assert.False(t, out.Ramp.Enabled)
}

// A Live stream ramps up even with SampleStart == 0.
func TestRamperRampsUpForLiveStream(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)

	ds := f.NewDecodedStream(1, 0, 16, rate, 1, "pcm", 0, 0, true, false, true, nil)
	upstream := &fakeSupply{msgs: []msg.Message{ds, pcmOfFrames(f, 10, rate)}}
	r := NewRamper(upstream, 100)

	r.Pull()
	out := r.Pull().(*msg.AudioPcm)
	assert.True(t, out.Ramp.Enabled)
	assert.Equal(t, msg.RampUp, out.Ramp.Direction)
}

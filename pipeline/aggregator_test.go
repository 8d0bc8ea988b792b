package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// fakeSupply is a canned Supply for tests that don't need a full Reservoir.
type fakeSupply struct {
	msgs []msg.Message
	i    int
}

func (f *fakeSupply) Pull() msg.Message {
	if f.i >= len(f.msgs) {
		return nil
	}
	m := f.msgs[f.i]
	f.i++
	return m
}

func pcm(frames int, offset uint64) *msg.AudioPcm {
	return &msg.AudioPcm{
		Samples:     make([]int16, frames*2),
		Frames:      frames,
		SampleRate:  44100,
		BitDepth:    16,
		Channels:    2,
		TrackOffset: offset,
	}
}

func TestAggregatorCoalescesSmallFragments(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	src := &fakeSupply{msgs: []msg.Message{pcm(100, 0), pcm(100, 100), pcm(100, 200)}}
	a := NewAggregator(src, f)

	out := a.Pull().(*msg.AudioPcm)
	assert.Equal(t, 300, out.Frames)
	assert.EqualValues(t, 0, out.TrackOffset)
}

func TestAggregatorFlushesOnControlMessage(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	halt := &msg.Halt{ID: 7}
	src := &fakeSupply{msgs: []msg.Message{pcm(100, 0), halt}}
	a := NewAggregator(src, f)

	first := a.Pull().(*msg.AudioPcm)
	assert.Equal(t, 100, first.Frames)

	second := a.Pull()
	require.Equal(t, halt, second)
}

func TestAggregatorPassesRampedAudioThroughUnmerged(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	ramped := pcm(50, 0)
	ramped.Ramp = msg.Ramp{Enabled: true, Start: msg.RampMin, End: msg.RampMax, Direction: msg.RampUp}
	src := &fakeSupply{msgs: []msg.Message{ramped}}
	a := NewAggregator(src, f)

	out := a.Pull()
	assert.Same(t, ramped, out)
}

func TestAggregatorFlushesAtTargetSize(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	var msgs []msg.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, pcm(aggregatorTargetFrames, uint64(i*aggregatorTargetFrames)))
	}
	src := &fakeSupply{msgs: msgs}
	a := NewAggregator(src, f)

	out := a.Pull().(*msg.AudioPcm)
	assert.Equal(t, aggregatorTargetFrames, out.Frames)
}

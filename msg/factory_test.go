package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// alloc()/release() calls balance over a session;
// final pool counts equal initial.
func TestPoolBalancesAllocRelease(t *testing.T) {
	f := NewFactory(DefaultFactoryParams())
	_, liveBefore, _ := f.track.Stats()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(rt, "n")
		tracks := make([]*Track, 0, n)
		for i := 0; i < n; i++ {
			tracks = append(tracks, f.NewTrack(uint32(i+1), "uri", "meta", i == 0))
		}
		for _, tr := range tracks {
			tr.Release()
		}
	})

	_, liveAfter, _ := f.track.Stats()
	assert.Equal(t, liveBefore, liveAfter)
}

func TestSplitAudioPcmPreservesSamplesAndRamp(t *testing.T) {
	f := NewFactory(DefaultFactoryParams())
	samples := make([]int16, 100*2)
	for i := range samples {
		samples[i] = int16(i)
	}
	m := f.NewAudioPcm(samples, 100, 44100, 16, 2, 0, Ramp{Enabled: true, Start: RampMin, End: RampMax, Direction: RampUp})
	head, tail := f.SplitAudioPcm(m, 40)
	assert.Equal(t, 40, head.Frames)
	assert.Equal(t, 60, tail.Frames)
	assert.Equal(t, RampMin, head.Ramp.Start)
	assert.Equal(t, RampMax, tail.Ramp.End)
	assert.Equal(t, head.Ramp.End, tail.Ramp.Start)
	assert.Equal(t, samples[:80], head.Samples)
	assert.Equal(t, samples[80:], tail.Samples)
	head.Release()
	tail.Release()
}

func TestRetainReleaseRefcount(t *testing.T) {
	f := NewFactory(DefaultFactoryParams())
	h := f.NewHalt(7)
	assert.EqualValues(t, 1, h.RefCount())
	h.Retain()
	assert.EqualValues(t, 2, h.RefCount())
	h.Release()
	assert.EqualValues(t, 1, h.RefCount())
	h.Release() // returns to pool
}

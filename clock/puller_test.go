package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linn-oss/ohmediapipeline/jiffies"
)

const notifyPeriod = 100 * jiffies.PerMs

func TestPullerReturnsNominalWhileHistoryFills(t *testing.T) {
	p := New()
	p.NewStream(44100)
	p.Start(4)
	for i := uint64(1); i <= HistoryWindow; i++ {
		assert.Equal(t, 1.0, p.NotifyTimestamp(int64(i*1000), i*notifyPeriod))
	}
}

// Ordinary jitter never moves the multiplier: with the accumulated drift
// under the allowed bound, every call returns the same value, not a freshly
// recomputed one.
func TestPullerHoldsMultiplierBelowThreshold(t *testing.T) {
	p := New()
	p.NewStream(44100)
	p.Start(4)
	for i := uint64(1); i <= HistoryWindow+20; i++ {
		got := p.NotifyTimestamp(100, i*notifyPeriod)
		assert.Equal(t, 1.0, got, "call %d", i)
	}
}

// Sustained drift past the bound triggers exactly one correction: the
// multiplier moves once, the history resets, and the corrected value then
// holds steady while fresh evidence accumulates.
func TestPullerCorrectsOnceOnThresholdAndResets(t *testing.T) {
	p := New()
	p.NewStream(44100)
	p.Start(4)

	tick := uint64(0)
	notify := func(drift int64) float64 {
		tick++
		return p.NotifyTimestamp(drift, tick*notifyPeriod)
	}

	for i := 0; i < HistoryWindow; i++ {
		require.Equal(t, 1.0, notify(0))
	}

	// Local clock consistently behind the network: 4ms of drift per sample.
	const bigDrift = int64(4 * jiffies.PerMs)
	var corrected float64
	for i := 0; i < 200; i++ {
		corrected = notify(bigDrift)
		if corrected != 1.0 {
			break
		}
	}
	require.NotEqual(t, 1.0, corrected, "accumulated drift never triggered a correction")
	assert.Greater(t, corrected, 1.0)
	assert.LessOrEqual(t, corrected, 1.0+multiplierBound)

	// History was reset on the correction, so sample-by-sample the same
	// multiplier is returned unchanged while the new window fills.
	for i := 0; i < HistoryWindow; i++ {
		assert.Equal(t, corrected, notify(100))
	}
	assert.Equal(t, corrected, p.NotifySize(0))
}

func TestPullerResetRestoresNominal(t *testing.T) {
	p := New()
	p.NewStream(44100)
	p.Start(4)

	tick := uint64(0)
	for i := 0; i < HistoryWindow+200; i++ {
		tick++
		if p.NotifyTimestamp(int64(4*jiffies.PerMs), tick*notifyPeriod) != 1.0 {
			break
		}
	}
	require.NotEqual(t, 1.0, p.NotifySize(0))

	p.Reset()
	assert.Equal(t, 1.0, p.NotifySize(0))
	assert.Equal(t, 1.0, p.NotifyTimestamp(0, 1000))
}
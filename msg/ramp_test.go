package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestComputeRampReachesTarget(t *testing.T) {
	r, boundary, remaining, done := ComputeRamp(RampMin, 1000, 1000, RampUp)
	assert.True(t, done)
	assert.Equal(t, uint64(0), remaining)
	assert.Equal(t, RampMax, boundary)
	assert.Equal(t, RampMax, r.End)
}

func TestComputeRampPartial(t *testing.T) {
	r, boundary, remaining, done := ComputeRamp(RampMin, 1000, 250, RampUp)
	assert.False(t, done)
	assert.Equal(t, uint64(750), remaining)
	assert.InDelta(t, float64(RampMax)/4, float64(boundary), float64(RampMax)*0.01)
	assert.Equal(t, RampUp, r.Direction)
}

// Property test: a ramp value is monotone within a
// transition and stays in [RampMin, RampMax].
func TestRampMonotoneWithinTransition(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.Uint64Range(1, 1_000_000).Draw(rt, "total")
		dir := RampUp
		if rapid.Bool().Draw(rt, "down") {
			dir = RampDown
		}
		start := RampMin
		if dir == RampDown {
			start = RampMax
		}
		remaining := total
		current := start
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps && remaining > 0; i++ {
			slice := rapid.Uint64Range(1, remaining).Draw(rt, "slice")
			r, boundary, newRemaining, _ := ComputeRamp(current, remaining, slice, dir)
			if dir == RampUp {
				assert.GreaterOrEqual(rt, r.End, r.Start)
			} else {
				assert.LessOrEqual(rt, r.End, r.Start)
			}
			assert.GreaterOrEqual(rt, boundary, RampMin)
			assert.LessOrEqual(rt, boundary, RampMax)
			current = boundary
			remaining = newRemaining
		}
	})
}

// Splitting a ramped audio message preserves its
// start/end endpoints and the pieces are monotonic.
func TestRampSplitPreservesEndpoints(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.Uint64Range(2, 1_000_000).Draw(rt, "total")
		split := rapid.Uint64Range(1, total-1).Draw(rt, "split")
		start := rapid.Uint32Range(RampMin, RampMax).Draw(rt, "start")
		end := rapid.Uint32Range(RampMin, RampMax).Draw(rt, "end")
		dir := RampUp
		if end < start {
			dir = RampDown
		}
		r := Ramp{Enabled: true, Start: start, End: end, Direction: dir}
		head, tail := r.SplitAt(total, split)
		assert.Equal(t, start, head.Start)
		assert.Equal(t, end, tail.End)
		assert.Equal(t, head.End, tail.Start)
	})
}

// A ramp down + up round trip returns to
// within 1 ULP of kRampMax.
func TestRampDownThenUpReturnsToMax(t *testing.T) {
	r1, boundary, _, done1 := ComputeRamp(RampMax, 1000, 1000, RampDown)
	assert.True(t, done1)
	assert.Equal(t, RampMin, boundary)
	_ = r1
	r2, boundary2, _, done2 := ComputeRamp(boundary, 1000, 1000, RampUp)
	assert.True(t, done2)
	assert.Equal(t, RampMax, boundary2)
	_ = r2
}

package msg

// Direction is the direction a Ramp moves in.
type Direction int

const (
	RampUp Direction = iota
	RampDown
)

func (d Direction) String() string {
	if d == RampUp {
		return "up"
	}
	return "down"
}

// RampMin and RampMax bound every ramp value. RampMax represents unity gain.
const (
	RampMin uint32 = 0
	RampMax uint32 = 1<<31 - 1
)

// Ramp is the piecewise-linear amplitude envelope carried by every
// audio-bearing message.
type Ramp struct {
	Enabled   bool
	Start     uint32
	End       uint32
	Direction Direction
}

// ComputeRamp computes the ramp for the first firstJiffies of a ramp that has
// remainingJiffies left to run, starting from current and moving toward
// RampMax (RampUp) or RampMin (RampDown). It returns the Ramp to attach to
// the first part, the value at the split boundary (which seeds the next
// message's Start), the jiffies left in the ramp after this slice, and
// whether the ramp has now run to completion.
func ComputeRamp(current uint32, remainingJiffies, firstJiffies uint64, dir Direction) (r Ramp, boundaryValue uint32, remainingAfter uint64, done bool) {
	if firstJiffies > remainingJiffies {
		firstJiffies = remainingJiffies
	}
	target := RampMax
	if dir == RampDown {
		target = RampMin
	}
	var end uint32
	if remainingJiffies == 0 || firstJiffies == 0 {
		end = current
	} else {
		delta := int64(target) - int64(current)
		end = uint32(int64(current) + delta*int64(firstJiffies)/int64(remainingJiffies))
	}
	r = Ramp{Enabled: true, Start: current, End: end, Direction: dir}
	remainingAfter = remainingJiffies - firstJiffies
	done = remainingAfter == 0
	return r, end, remainingAfter, done
}

// SplitAt splits a Ramp that spans totalJiffies at offset splitJiffies into
// two ramps whose Start/End are interpolated so that concatenating their
// envelopes reproduces the original Start->End line exactly at the shared
// boundary.
func (r Ramp) SplitAt(totalJiffies, splitJiffies uint64) (first, second Ramp) {
	if !r.Enabled || totalJiffies == 0 {
		return r, r
	}
	if splitJiffies > totalJiffies {
		splitJiffies = totalJiffies
	}
	mid := interpolate(r.Start, r.End, splitJiffies, totalJiffies)
	first = Ramp{Enabled: true, Start: r.Start, End: mid, Direction: r.Direction}
	second = Ramp{Enabled: true, Start: mid, End: r.End, Direction: r.Direction}
	return first, second
}

func interpolate(start, end uint32, pos, total uint64) uint32 {
	if total == 0 {
		return start
	}
	delta := int64(end) - int64(start)
	return uint32(int64(start) + delta*int64(pos)/int64(total))
}

// ApplyPCM16 applies the ramp's linear gain envelope to interleaved PCM16
// samples in place, interpolating the per-sample-frame gain between Start
// and End across the buffer. RampMax is unity gain.
func (r Ramp) ApplyPCM16(samples []int16, frames int) {
	if !r.Enabled || frames <= 0 {
		return
	}
	channels := 0
	if frames > 0 {
		channels = len(samples) / frames
	}
	if channels == 0 {
		return
	}
	for f := 0; f < frames; f++ {
		gain := interpolate(r.Start, r.End, uint64(f), uint64(frames))
		scale := float64(gain) / float64(RampMax)
		for c := 0; c < channels; c++ {
			i := f*channels + c
			v := float64(samples[i]) * scale
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			samples[i] = int16(v)
		}
	}
}

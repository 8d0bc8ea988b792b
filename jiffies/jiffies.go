// Package jiffies implements the pipeline's fixed-denominator time unit.
//
// A jiffy is chosen so that every sample rate the pipeline supports divides
// PerSecond exactly, so conversions between sample counts, byte counts and
// durations never round.
package jiffies

import "time"

// PerSecond is the number of jiffies in one second. It is divisible by every
// sample rate the pipeline is expected to see (8000, 11025, 12000, 16000,
// 22050, 24000, 32000, 44100, 48000, 88200, 96000, 176400, 192000).
const PerSecond uint64 = 56448000

// PerMs is PerSecond/1000, exact because 1000 divides PerSecond.
const PerMs uint64 = PerSecond / 1000

// FromSamples converts a sample count at the given sample rate to jiffies.
// Panics if sampleRate does not divide PerSecond, since that would make the
// pipeline's "no rounding drift" invariant unsafe to assume.
func FromSamples(samples uint64, sampleRate uint32) uint64 {
	perSample := PerSample(sampleRate)
	return samples * perSample
}

// PerSample returns the number of jiffies in one sample at sampleRate.
func PerSample(sampleRate uint32) uint64 {
	if sampleRate == 0 {
		return 0
	}
	if PerSecond%uint64(sampleRate) != 0 {
		panic("jiffies: sample rate does not divide PerSecond exactly")
	}
	return PerSecond / uint64(sampleRate)
}

// ToSamples converts jiffies back to a sample count at the given rate. The
// conversion is exact as long as j was itself produced by FromSamples at the
// same rate (callers crossing a non-aligned boundary get floor truncation).
func ToSamples(j uint64, sampleRate uint32) uint64 {
	perSample := PerSample(sampleRate)
	if perSample == 0 {
		return 0
	}
	return j / perSample
}

// FromDuration converts a time.Duration to jiffies.
func FromDuration(d time.Duration) uint64 {
	return uint64(d) * PerSecond / uint64(time.Second)
}

// ToDuration converts jiffies to a time.Duration, truncating toward zero.
func ToDuration(j uint64) time.Duration {
	return time.Duration(j * uint64(time.Second) / PerSecond)
}

// BytesPerSample returns the byte width of one interleaved sample frame
// (all channels) for the given bit depth and channel count.
func BytesPerSample(bitDepth, channels uint32) uint32 {
	return (bitDepth / 8) * channels
}

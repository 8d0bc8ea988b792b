package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// aggregatorTargetFrames is roughly how many frames an aggregated AudioPcm
// block carries before it is flushed downstream, matching the size a codec
// like MP3 or FLAC would decode several source frames to reach.
const aggregatorTargetFrames = 4096

// Aggregator coalesces small decoded PCM fragments into larger,
// sample-aligned blocks before they reach the decoded reservoir: many
// codecs decode in small chunks (one MP3 frame, one FLAC block), and
// pushing each individually would flood the reservoir with tiny entries.
// It is passive: no goroutine of its own, just a Pull that may pull several
// times upstream before returning.
//
// A message carrying a ramp, or any non-AudioPcm message, is never merged:
// it passes through untouched, flushing whatever had been accumulated
// first so ordering is preserved.
type Aggregator struct {
	upstream Supply
	factory  *msg.Factory

	pending msg.Message // already-pulled message held for the next Pull call

	haveBuf    bool
	buf        []int16
	frames     int
	sampleRate uint32
	bitDepth   uint32
	channels   uint32
	offset     uint64
}

func NewAggregator(upstream Supply, f *msg.Factory) *Aggregator {
	return &Aggregator{upstream: upstream, factory: f}
}

func (a *Aggregator) Pull() msg.Message {
	for {
		var m msg.Message
		if a.pending != nil {
			m = a.pending
			a.pending = nil
		} else {
			m = a.upstream.Pull()
		}
		if m == nil {
			if a.haveBuf {
				return a.flush()
			}
			return nil
		}

		pcm, ok := m.(*msg.AudioPcm)
		if !ok || pcm.Ramp.Enabled {
			if a.haveBuf {
				a.pending = m
				return a.flush()
			}
			return m
		}

		if a.haveBuf && !a.canMerge(pcm) {
			a.pending = pcm
			return a.flush()
		}
		if !a.haveBuf {
			a.start(pcm)
		} else {
			a.append(pcm)
		}
		if a.frames >= aggregatorTargetFrames {
			return a.flush()
		}
	}
}

func (a *Aggregator) canMerge(pcm *msg.AudioPcm) bool {
	return pcm.SampleRate == a.sampleRate && pcm.BitDepth == a.bitDepth && pcm.Channels == a.channels
}

func (a *Aggregator) start(pcm *msg.AudioPcm) {
	a.haveBuf = true
	a.buf = append(a.buf[:0], pcm.Samples...)
	a.frames = pcm.Frames
	a.sampleRate, a.bitDepth, a.channels = pcm.SampleRate, pcm.BitDepth, pcm.Channels
	a.offset = pcm.TrackOffset
	pcm.Release()
}

func (a *Aggregator) append(pcm *msg.AudioPcm) {
	a.buf = append(a.buf, pcm.Samples...)
	a.frames += pcm.Frames
	pcm.Release()
}

// flush emits the accumulated buffer as one new AudioPcm and resets; it
// must only be called while a.haveBuf is true.
func (a *Aggregator) flush() msg.Message {
	out := a.factory.NewAudioPcm(append([]int16(nil), a.buf...), a.frames, a.sampleRate, a.bitDepth, a.channels, a.offset, msg.Ramp{})
	a.haveBuf = false
	a.buf = a.buf[:0]
	a.frames = 0
	return out
}

// Package msg defines the pipeline's single message type (a tagged
// union), its ref-counted pooled allocation, and ramp math. Every element
// in package pipeline consumes and produces msg.Message values.
package msg

import "github.com/linn-oss/ohmediapipeline/jiffies"

// Kind identifies which variant a Message carries.
type Kind int

const (
	KindMode Kind = iota
	KindTrack
	KindDrain
	KindDelay
	KindEncodedStream
	KindEncodedAudio
	KindMetaText
	KindStreamInterrupted
	KindWait
	KindHalt
	KindFlush
	KindDecodedStream
	KindBitRate
	KindAudioPcm
	KindSilence
	KindPlayable
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindMode:
		return "Mode"
	case KindTrack:
		return "Track"
	case KindDrain:
		return "Drain"
	case KindDelay:
		return "Delay"
	case KindEncodedStream:
		return "EncodedStream"
	case KindEncodedAudio:
		return "EncodedAudio"
	case KindMetaText:
		return "MetaText"
	case KindStreamInterrupted:
		return "StreamInterrupted"
	case KindWait:
		return "Wait"
	case KindHalt:
		return "Halt"
	case KindFlush:
		return "Flush"
	case KindDecodedStream:
		return "DecodedStream"
	case KindBitRate:
		return "BitRate"
	case KindAudioPcm:
		return "AudioPcm"
	case KindSilence:
		return "Silence"
	case KindPlayable:
		return "Playable"
	case KindQuit:
		return "Quit"
	default:
		return "Unknown"
	}
}

// Message is the pipeline's single wire type. Concrete variants embed *ref
// for pooled, refcounted lifetime; Kind lets an element do an exhaustive
// type switch in place of a virtual-dispatch message hierarchy.
type Message interface {
	Kind() Kind
	Retain()
	Release()
}

// PlayDecision is the answer a StreamHandler gives to OkToPlay.
type PlayDecision int

const (
	PlayYes PlayDecision = iota
	PlayNo
	PlayLater
)

func (d PlayDecision) String() string {
	switch d {
	case PlayYes:
		return "yes"
	case PlayNo:
		return "no"
	case PlayLater:
		return "later"
	default:
		return "unknown"
	}
}

// StreamHandler is exposed by the producer of an EncodedStream. The pipeline
// calls back into it to ask whether to play, to seek, or to stop, and to
// advise it of starvation.
type StreamHandler interface {
	OkToPlay(streamID uint32) PlayDecision
	TrySeek(streamID uint32, byteOffset uint64) (flushID uint32, ok bool)
	TryStop(streamID uint32) (flushID uint32, ok bool)
	NotifyStarving(mode string, streamID uint32)
}

// ClockPuller is the interface a Mode message may carry a reference to; it
// is driven by package clock.
type ClockPuller interface {
	NewStream(sampleRate uint32)
	Reset()
	Stop()
	Start(notifyFreqHz uint32)
	NotifySize(jiffies uint64) float64
	NotifyTimestamp(driftJiffies int64, networkTimeJiffies uint64) float64
}

// FlushIDInvalid is the sentinel returned by TrySeek/TryStop when no flush
// is needed (the stream handler could not produce one).
const FlushIDInvalid uint32 = 0

// --- Mode ---

type Mode struct {
	ref
	Name             string
	SupportsLatency  bool
	IsRealTime       bool
	SupportsNextPrev bool
	ClockPuller      ClockPuller
}

func (m *Mode) Kind() Kind { return KindMode }

// --- Track ---

type Track struct {
	ref
	ID            uint32
	URI           string
	Metadata      string
	StartOfStream bool
}

func (m *Track) Kind() Kind { return KindTrack }

// --- Drain ---

type Drain struct {
	ref
	// Done is called once every downstream element has fully drained its
	// internal state past this barrier.
	Done func()
}

func (m *Drain) Kind() Kind { return KindDrain }

// --- Delay ---

type Delay struct {
	ref
	Jiffies uint64
}

func (m *Delay) Kind() Kind { return KindDelay }

// --- EncodedStream ---

type EncodedStream struct {
	ref
	URI         string
	MetaText    string
	TotalBytes  uint64 // 0 if unknown
	StreamID    uint32
	Seekable    bool
	Live        bool
	RawPCM      bool
	Handler     StreamHandler
}

func (m *EncodedStream) Kind() Kind { return KindEncodedStream }

// --- EncodedAudio ---

type EncodedAudio struct {
	ref
	Data []byte
}

func (m *EncodedAudio) Kind() Kind { return KindEncodedAudio }

// --- MetaText ---

type MetaText struct {
	ref
	Text string
}

func (m *MetaText) Kind() Kind { return KindMetaText }

// --- StreamInterrupted ---

type StreamInterrupted struct {
	ref
}

func (m *StreamInterrupted) Kind() Kind { return KindStreamInterrupted }

// --- Wait ---

type Wait struct {
	ref
}

func (m *Wait) Kind() Kind { return KindWait }

// --- Halt ---

type Halt struct {
	ref
	ID uint32
}

func (m *Halt) Kind() Kind { return KindHalt }

// --- Flush ---

type Flush struct {
	ref
	ID uint32
}

func (m *Flush) Kind() Kind { return KindFlush }

// --- DecodedStream ---

type DecodedStream struct {
	ref
	StreamID       uint32
	BitRate        uint32
	BitDepth       uint32
	SampleRate     uint32
	Channels       uint32
	CodecName      string
	TrackLengthJiffies uint64
	SampleStart    uint64
	Lossless       bool
	Seekable       bool
	Live           bool
	Handler        StreamHandler
}

func (m *DecodedStream) Kind() Kind { return KindDecodedStream }

// --- BitRate ---

type BitRate struct {
	ref
	Bitrate uint32
}

func (m *BitRate) Kind() Kind { return KindBitRate }

// --- AudioPcm ---

// AudioPcm is a time-stamped block of interleaved PCM16 samples expressed in
// jiffies, carrying an optional ramp envelope.
type AudioPcm struct {
	ref
	Samples      []int16 // interleaved
	Frames       int
	SampleRate   uint32
	BitDepth     uint32
	Channels     uint32
	TrackOffset  uint64 // jiffies from start of track
	Ramp         Ramp
}

func (m *AudioPcm) Kind() Kind { return KindAudioPcm }

// Jiffies returns the duration this block represents.
func (m *AudioPcm) Jiffies() uint64 {
	if m.SampleRate == 0 {
		return 0
	}
	return samplesToJiffies(uint64(m.Frames), m.SampleRate)
}

// --- Silence ---

type Silence struct {
	ref
	Frames     int
	SampleRate uint32
	BitDepth   uint32
	Channels   uint32
	Ramp       Ramp
}

func (m *Silence) Kind() Kind { return KindSilence }

func (m *Silence) Jiffies() uint64 {
	if m.SampleRate == 0 {
		return 0
	}
	return samplesToJiffies(uint64(m.Frames), m.SampleRate)
}

// --- Playable ---

// Playable is a final, immutable, ramp-applied block ready for the driver.
type Playable struct {
	ref
	Samples    []int16
	Frames     int
	SampleRate uint32
	Channels   uint32
}

func (m *Playable) Kind() Kind { return KindPlayable }

// --- Quit ---

type Quit struct {
	ref
}

func (m *Quit) Kind() Kind { return KindQuit }

func samplesToJiffies(samples uint64, sampleRate uint32) uint64 {
	return jiffies.FromSamples(samples, sampleRate)
}

package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// Supply is the upstream-facing half of a staged element: Pull blocks until
// a message is available. Elements compose by each holding the Supply of the
// element feeding it.
type Supply interface {
	Pull() msg.Message
}

// SupplyFunc adapts a plain function to Supply, the way http.HandlerFunc
// adapts a function to http.Handler.
type SupplyFunc func() msg.Message

func (f SupplyFunc) Pull() msg.Message { return f() }

// Codec recognises and decodes one encoded format. Registered with the
// CodecController in priority order.
type Codec interface {
	// Name identifies the codec for DecodedStream.CodecName and logging.
	Name() string
	// Recognise inspects a short lookahead of the stream and reports
	// whether this codec can decode it.
	Recognise(lookahead []byte) bool
	// Decode is entered once Recognise has matched. It must pull encoded
	// audio from src, push a DecodedStream followed by AudioPcm messages to
	// sink (a codec that resyncs after a seek pushes a fresh DecodedStream),
	// and return when the stream ends or fails, or when a control message
	// it forwards (such as a Halt) stops it. StreamStart/StreamEnded bracket the
	// lifetime of one stream so the codec can reset internal state.
	StreamStart(src Supply, streamInfo *msg.EncodedStream)
	Decode(sink MessageSink) error
	StreamEnded()
	// TrySeek is forwarded from the pipeline's Seek operation while this
	// codec owns the active stream; byteOffset is the same raw byte
	// position passed to msg.StreamHandler.TrySeek. It reports whether the
	// codec could reposition internally without a fresh EncodedStream.
	TrySeek(streamID uint32, byteOffset uint64) bool
}

// MessageSink is the push-facing half of a staged element.
type MessageSink interface {
	Push(m msg.Message)
}

// MessageSinkFunc adapts a function to MessageSink.
type MessageSinkFunc func(msg.Message)

func (f MessageSinkFunc) Push(m msg.Message) { f(m) }

// Observer is notified of pipeline state transitions driven by messages
// flowing past the Reporter element.
type Observer interface {
	NotifyMode(mode string)
	NotifyTrack(uri, metadata string, id uint32)
	NotifyMetaText(text string)
	NotifyStreamInfo(info StreamInfo)
	NotifyTime(seconds uint64)
	NotifyPipelineState(state State)
}

// StreamInfo summarises a DecodedStream for observers.
type StreamInfo struct {
	StreamID   uint32
	BitRate    uint32
	BitDepth   uint32
	SampleRate uint32
	Channels   uint32
	CodecName  string
	Lossless   bool
	Seekable   bool
	Live       bool
}

// State is the coarse playback state the Reporter/Pipeline report to
// observers.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateBuffering
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

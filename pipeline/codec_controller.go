package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

const codecRecogniseLookahead = 6 * 1024

// CodecController is the one active element that owns stream recognition
// and decode. It runs its own goroutine: Run pulls
// EncodedStream/EncodedAudio messages from upstream, picks a registered
// Codec by trying Recognise on a lookahead buffer, then hands control to
// that codec's Decode loop until the stream ends or is flushed.
type CodecController struct {
	log      *slog.Logger
	upstream Supply
	sink     MessageSink
	factory  *msg.Factory
	flushes  *FlushIDProvider
	codecs   []Codec
	rawPCM   Codec // used when EncodedStream.RawPCM is set, bypassing recognition
	quit     chan struct{}

	mu             sync.Mutex
	activeCodec    Codec
	activeStreamID uint32
}

// NewCodecController registers codecs in priority order; the first whose
// Recognise matches the stream's lookahead wins.
func NewCodecController(log *slog.Logger, upstream Supply, sink MessageSink, f *msg.Factory, flushes *FlushIDProvider, rawPCM Codec, codecs ...Codec) *CodecController {
	return &CodecController{
		log:      log,
		upstream: upstream,
		sink:     sink,
		factory:  f,
		flushes:  flushes,
		codecs:   codecs,
		rawPCM:   rawPCM,
		quit:     make(chan struct{}),
	}
}

// Run drives the controller until a Quit message passes through. Intended
// to run on its own goroutine.
func (c *CodecController) Run() {
	for {
		m := c.upstream.Pull()
		if m == nil {
			return
		}
		switch v := m.(type) {
		case *msg.EncodedStream:
			c.handleStream(v)
		case *msg.Quit:
			c.sink.Push(v)
			return
		default:
			c.sink.Push(v)
		}
	}
}

// lookaheadSupply wraps upstream so the codec recognised for this stream
// sees the bytes already consumed for recognition, replayed first.
type lookaheadSupply struct {
	upstream Supply
	replay   []msg.Message
}

func (l *lookaheadSupply) Pull() msg.Message {
	if len(l.replay) > 0 {
		m := l.replay[0]
		l.replay = l.replay[1:]
		return m
	}
	return l.upstream.Pull()
}

func (c *CodecController) handleStream(es *msg.EncodedStream) {
	var codec Codec
	var replay []msg.Message

	if es.RawPCM && c.rawPCM != nil {
		codec = c.rawPCM
	} else {
		buf := make([]byte, 0, codecRecogniseLookahead)
		for len(buf) < codecRecogniseLookahead {
			m := c.upstream.Pull()
			replay = append(replay, m)
			ea, ok := m.(*msg.EncodedAudio)
			if !ok {
				break
			}
			buf = append(buf, ea.Data...)
		}
		for _, cand := range c.codecs {
			if cand.Recognise(buf) {
				codec = cand
				break
			}
		}
		if codec == nil {
			c.log.Warn("no codec recognised stream", "uri", es.URI, "streamId", es.StreamID)
			for _, m := range replay {
				if m != nil {
					m.Release()
				}
			}
			es.Release()
			// Unrecognised stream: flush it so the
			// filler can try the next protocol/track instead of stalling.
			c.sink.Push(c.factory.NewFlush(c.flushes.NextFlushId()))
			return
		}
	}

	src := &lookaheadSupply{upstream: c.upstream, replay: replay}
	codec.StreamStart(src, es)

	c.mu.Lock()
	c.activeCodec, c.activeStreamID = codec, es.StreamID
	c.mu.Unlock()

	if err := codec.Decode(c.sink); err != nil {
		c.log.Error("codec decode failed", "codec", codec.Name(), "error", err)
	}

	c.mu.Lock()
	c.activeCodec, c.activeStreamID = nil, 0
	c.mu.Unlock()

	codec.StreamEnded()
}

// TrySeek forwards a byte-offset seek request to whichever codec currently
// owns streamID, giving it a chance to reposition without a fresh
// EncodedStream. It implements CodecSeeker; Seeker treats its result as a
// best-effort hint and always falls back to the stream handler's TrySeek.
func (c *CodecController) TrySeek(streamID uint32, byteOffset uint64) bool {
	c.mu.Lock()
	codec, active := c.activeCodec, c.activeStreamID
	c.mu.Unlock()
	if codec == nil || active != streamID {
		return false
	}
	return codec.TrySeek(streamID, byteOffset)
}

// errUnrecognised names the failure of a stream that no registered codec
// recognises. No code path returns it: handleStream flushes such a stream
// instead.
var errUnrecognised = fmt.Errorf("pipeline: stream not recognised by any codec")

package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// skipperState mirrors the running/ramping/flushing/starting shape the other
// ramp-driven elements use: a skip ramps the current stream down, swallows
// its remainder up to the matching Flush, then ramps back up off the next
// stream's first audio.
type skipperState int

const (
	skipperRunning skipperState = iota
	skipperRampingDown
	skipperFlushing
	skipperStarting
)

// Skipper interrupts the current stream: RemoveCurrentStream ramps down,
// obtains a Flush id from the stream's handler that swallows the remainder,
// and ramps up on the next DecodedStream. It learns the active stream's
// handler from the DecodedStream messages passing through it, so a skip
// request needs no arguments from the caller.
type Skipper struct {
	mu    sync.Mutex
	state skipperState

	upstream Supply
	rampDur  uint64

	handler  msg.StreamHandler
	streamID uint32

	skippingFlush uint32 // msg.FlushIDInvalid when none pending

	rampCurrent   uint32
	rampRemaining uint64
}

func NewSkipper(upstream Supply, rampDurationJiffies uint64) *Skipper {
	return &Skipper{
		upstream:      upstream,
		rampDur:       rampDurationJiffies,
		skippingFlush: msg.FlushIDInvalid,
		rampCurrent:   msg.RampMax,
	}
}

// RemoveCurrentStream begins skipping the active stream. The ramp-down runs
// on the next audio pulled through; once silent, TryStop supplies the flush
// id that bounds the discard.
func (s *Skipper) RemoveCurrentStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case skipperStarting:
		// Ramp continuity: a skip landing mid-ramp-up starts from the
		// current value and spans only what the interrupted ramp had
		// already restored.
		s.state = skipperRampingDown
		s.rampRemaining = s.rampDur - s.rampRemaining
	case skipperRunning:
		s.state = skipperRampingDown
		s.rampCurrent = msg.RampMax
		s.rampRemaining = s.rampDur
	}
}

// SkipUntil begins dropping messages immediately, no ramp, until a Flush
// with this id arrives. Used when the flush id is already known (e.g. a
// codec-rejected stream) and there is no audio worth ramping.
func (s *Skipper) SkipUntil(flushID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skippingFlush = flushID
	s.state = skipperFlushing
}

func (s *Skipper) Pull() msg.Message {
	for {
		m := s.upstream.Pull()
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		switch state {
		case skipperRampingDown:
			if !isAudio(m) {
				if s.trackStream(m) {
					// Stream ended under us before the ramp finished.
					s.beginStarting()
				}
				return m
			}
			out, finished := s.applyRamp(m, msg.RampDown)
			if finished {
				s.beginFlush()
			}
			return out

		case skipperFlushing:
			if s.endsFlush(m) {
				continue
			}
			if keep := s.passDuringFlush(m); keep {
				return m
			}
			m.Release()
			continue

		case skipperStarting:
			if s.trackStream(m) || !isAudio(m) {
				return m
			}
			out, finished := s.applyRamp(m, msg.RampUp)
			if finished {
				s.mu.Lock()
				s.state = skipperRunning
				s.mu.Unlock()
			}
			return out

		default: // skipperRunning
			s.trackStream(m)
			return m
		}
	}
}

// trackStream records the handler/stream id carried by a DecodedStream so a
// later RemoveCurrentStream knows who to TryStop. Reports whether m was a
// DecodedStream.
func (s *Skipper) trackStream(m msg.Message) bool {
	ds, ok := m.(*msg.DecodedStream)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.handler = ds.Handler
	s.streamID = ds.StreamID
	s.mu.Unlock()
	return true
}

func (s *Skipper) beginStarting() {
	s.mu.Lock()
	s.skippingFlush = msg.FlushIDInvalid
	if s.rampDur == 0 {
		s.state = skipperRunning
		s.rampCurrent = msg.RampMax
	} else {
		s.state = skipperStarting
		s.rampCurrent = msg.RampMin
		s.rampRemaining = s.rampDur
	}
	s.mu.Unlock()
}

// beginFlush runs once the ramp-down reaches silence: ask the stream's
// handler for a flush id bounding the discard. A handler that refuses (or a
// stream with no handler) leaves the flush unbounded; the next stream start
// ends it instead.
func (s *Skipper) beginFlush() {
	s.mu.Lock()
	handler, streamID := s.handler, s.streamID
	s.state = skipperFlushing
	s.skippingFlush = msg.FlushIDInvalid
	s.mu.Unlock()
	if handler == nil {
		return
	}
	if id, ok := handler.TryStop(streamID); ok {
		s.mu.Lock()
		s.skippingFlush = id
		s.mu.Unlock()
	}
}

// endsFlush swallows the Flush that bounds the current skip. Reports whether
// m was consumed.
func (s *Skipper) endsFlush(m msg.Message) bool {
	fl, ok := m.(*msg.Flush)
	if !ok {
		return false
	}
	s.mu.Lock()
	match := s.skippingFlush != msg.FlushIDInvalid && fl.ID == s.skippingFlush
	s.mu.Unlock()
	if match {
		s.beginStarting()
		fl.Release()
	}
	return match
}

// passDuringFlush decides the fate of a message while flushing:
// stream-boundary and lifecycle messages pass through (a new DecodedStream
// also ends the flush), the skipped stream's payload is dropped.
func (s *Skipper) passDuringFlush(m msg.Message) bool {
	switch m.(type) {
	case *msg.DecodedStream:
		s.beginStarting()
		s.trackStream(m)
		return true
	case *msg.Mode, *msg.Track, *msg.EncodedStream, *msg.Halt, *msg.Quit, *msg.Drain:
		return true
	default:
		return false
	}
}

func (s *Skipper) applyRamp(m msg.Message, dir msg.Direction) (msg.Message, bool) {
	s.mu.Lock()
	current, remaining := s.rampCurrent, s.rampRemaining
	s.mu.Unlock()

	var r msg.Ramp
	var boundary uint32
	var after uint64
	var done bool
	switch v := m.(type) {
	case *msg.AudioPcm:
		r, boundary, after, done = msg.ComputeRamp(current, remaining, v.Jiffies(), dir)
		v.Ramp = r
	case *msg.Silence:
		r, boundary, after, done = msg.ComputeRamp(current, remaining, v.Jiffies(), dir)
		v.Ramp = r
	default:
		return m, false
	}
	s.mu.Lock()
	s.rampCurrent, s.rampRemaining = boundary, after
	s.mu.Unlock()
	return m, done
}

package pipeline

import (
	"errors"
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// CodecSeeker is implemented by the codec controller so Seeker can give the
// codec currently decoding streamID a chance to reposition internally
// before falling back to the stream handler's byte-level TrySeek. It is a
// best-effort hint: Seeker's own sequencing never depends on its result.
type CodecSeeker interface {
	TrySeek(streamID uint32, byteOffset uint64) bool
}

// seekerState is the machine a seek passes through: seekerRunning is
// steady; rampingDown, discarding and rampingUp bracket one seek in
// flight.
type seekerState int

const (
	seekerRunning seekerState = iota
	seekerRampingDown
	seekerDiscarding
	seekerRampingUp
)

var (
	errSeekBusy     = errors.New("pipeline: seek already in progress")
	errSeekRejected = errors.New("pipeline: seek rejected by stream handler")
	errSeekAborted  = errors.New("pipeline: pipeline quit while seek was in progress")
)

// Seeker implements Pipeline.Seek: it ramps the current
// audio down to silence, asks the handler to reposition, discards every
// message in flight until the resulting Flush and the fresh stream's
// DecodedStream have both passed through, then ramps the new audio back up
// from silence. It sits directly downstream of the decoded reservoir so it
// sees every DecodedStream a codec emits, including one following a
// codec-level TrySeek that needed no fresh EncodedStream.
type Seeker struct {
	mu       sync.Mutex
	upstream Supply
	codecs   CodecSeeker
	rampDur  uint64

	state      seekerState
	handler    msg.StreamHandler
	streamID   uint32
	byteOffset uint64
	result     chan error

	flushID  uint32
	sawFlush bool

	rampCurrent   uint32
	rampRemaining uint64
}

// NewSeeker builds a Seeker sitting on upstream (the decoded reservoir).
// codecs may be nil if no registered codec supports internal repositioning.
func NewSeeker(upstream Supply, codecs CodecSeeker, rampDurationJiffies uint64) *Seeker {
	return &Seeker{upstream: upstream, codecs: codecs, state: seekerRunning, rampDur: rampDurationJiffies}
}

// Seek requests handler reposition streamID to byteOffset and blocks until
// the pipeline has ramped through the seek, or until Pull observes the
// pipeline quitting. Only one seek may be in flight at a time.
func (s *Seeker) Seek(handler msg.StreamHandler, streamID uint32, byteOffset uint64) error {
	s.mu.Lock()
	if s.state != seekerRunning {
		s.mu.Unlock()
		return errSeekBusy
	}
	s.handler, s.streamID, s.byteOffset = handler, streamID, byteOffset
	s.result = make(chan error, 1)
	s.state = seekerRampingDown
	s.rampCurrent = msg.RampMax
	s.rampRemaining = s.rampDur
	s.mu.Unlock()

	return <-s.result
}

// Pull drives the ramp-down/reposition/discard/ramp-up state machine
// around a seek in flight, and passes every other message through
// unfiltered.
func (s *Seeker) Pull() msg.Message {
	for {
		m := s.upstream.Pull()
		if m == nil {
			return nil
		}
		if _, ok := m.(*msg.Quit); ok {
			s.abort(errSeekAborted)
			return m
		}

		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		switch state {
		case seekerRunning:
			return m

		case seekerRampingDown:
			if !isAudio(m) {
				return m
			}
			out, done := s.ramp(m, msg.RampDown)
			if done {
				s.beginRepositioning()
			}
			return out

		case seekerDiscarding:
			s.mu.Lock()
			flushID, sawFlush := s.flushID, s.sawFlush
			s.mu.Unlock()

			if fl, ok := m.(*msg.Flush); ok && fl.ID == flushID {
				s.mu.Lock()
				s.sawFlush = true
				s.mu.Unlock()
				fl.Release()
				continue
			}
			if ds, ok := m.(*msg.DecodedStream); ok && sawFlush {
				s.mu.Lock()
				s.state = seekerRampingUp
				s.rampCurrent = msg.RampMin
				s.rampRemaining = s.rampDur
				s.sawFlush = false
				result := s.result
				s.mu.Unlock()
				if result != nil {
					result <- nil
				}
				return ds
			}
			m.Release()
			continue

		case seekerRampingUp:
			if !isAudio(m) {
				return m
			}
			out, done := s.ramp(m, msg.RampUp)
			if done {
				s.mu.Lock()
				s.state = seekerRunning
				s.mu.Unlock()
			}
			return out

		default:
			return m
		}
	}
}

// beginRepositioning runs once the ramp-down to silence completes: it
// gives the active codec a best-effort chance to reposition internally,
// then calls the handler's TrySeek, which is the authoritative source of
// the flush id to discard up to.
func (s *Seeker) beginRepositioning() {
	s.mu.Lock()
	handler, streamID, byteOffset := s.handler, s.streamID, s.byteOffset
	s.mu.Unlock()

	if s.codecs != nil {
		s.codecs.TrySeek(streamID, byteOffset)
	}

	flushID, ok := handler.TrySeek(streamID, byteOffset)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || flushID == msg.FlushIDInvalid {
		s.state = seekerRampingUp
		s.rampCurrent = msg.RampMin
		s.rampRemaining = s.rampDur
		if s.result != nil {
			s.result <- errSeekRejected
		}
		return
	}
	s.state = seekerDiscarding
	s.flushID = flushID
	s.sawFlush = false
}

// abort resolves any seek in flight with err and returns the state machine
// to running, so a pipeline-wide Quit never leaves a caller of Seek
// blocked forever.
func (s *Seeker) abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != seekerRunning && s.result != nil {
		s.result <- err
	}
	s.state = seekerRunning
}

func (s *Seeker) ramp(m msg.Message, dir msg.Direction) (msg.Message, bool) {
	s.mu.Lock()
	current, remaining := s.rampCurrent, s.rampRemaining
	s.mu.Unlock()

	switch v := m.(type) {
	case *msg.AudioPcm:
		span := v.Jiffies()
		r, boundary, after, done := msg.ComputeRamp(current, remaining, span, dir)
		v.Ramp = r
		s.mu.Lock()
		s.rampCurrent, s.rampRemaining = boundary, after
		s.mu.Unlock()
		return v, done
	case *msg.Silence:
		span := v.Jiffies()
		r, boundary, after, done := msg.ComputeRamp(current, remaining, span, dir)
		v.Ramp = r
		s.mu.Lock()
		s.rampCurrent, s.rampRemaining = boundary, after
		s.mu.Unlock()
		return v, done
	default:
		return m, false
	}
}

package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// stopperState is the machine a pause or stop moves through:
// stopperHalted and stopperRunning are steady states; starting, halting and
// flushing are transients driven by a ramp; haltPending defers a halt until
// the upstream ramp (if any) in progress completes.
type stopperState int

const (
	stopperHalted stopperState = iota
	stopperHaltPending
	stopperRunning
	stopperStarting
	stopperHalting
	stopperFlushing
)

// Stopper implements Pause/Stop/RemoveCurrentStream by ramping audio down to
// silence (or up from it) rather than cutting it abruptly.
// It sits downstream of the Seeker so a seek mid-pause produces exactly one
// ramp.
type Stopper struct {
	mu    sync.Mutex
	state stopperState

	upstream Supply
	factory  *msg.Factory
	rampDur  uint64 // jiffies a full halt/start ramp takes

	flushID      uint32
	targetTrack  uint32
	targetStream uint32
	haltDone     func()
	autoResume   bool

	rampRemaining uint64
	rampCurrent   uint32
}

// NewStopper builds a Stopper starting in the halted state, the way a fresh
// pipeline is halted until Play is called.
func NewStopper(upstream Supply, f *msg.Factory, rampDurationJiffies uint64) *Stopper {
	return &Stopper{upstream: upstream, factory: f, state: stopperHalted, rampCurrent: msg.RampMin, rampDur: rampDurationJiffies}
}

// BeginHalt starts ramping down to silence; haltDone is invoked once the
// halt completes and a Halt message has been forwarded.
func (s *Stopper) BeginHalt(haltDone func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginHaltLocked(haltDone, false)
}

// beginHaltLocked is BeginHalt's body with the caller already holding s.mu,
// so RemoveCurrentStream can set autoResume atomically with the state
// transition instead of racing Pull() through an unlock/relock window.
func (s *Stopper) beginHaltLocked(haltDone func(), autoResume bool) {
	s.haltDone = haltDone
	s.autoResume = autoResume
	switch s.state {
	case stopperHalted:
		if haltDone != nil {
			haltDone()
		}
	case stopperRunning, stopperStarting:
		s.state = stopperHalting
		s.rampCurrent = msg.RampMax
		s.rampRemaining = s.rampDur
	case stopperHalting:
		// already ramping down; just replace the completion callback
	default:
		s.state = stopperHaltPending
	}
}

// BeginFlush enters the flushing state at once: audio is discarded until the
// Flush carrying id passes, after which the Stopper is halted. It does not
// wait for a ramp in progress; Pipeline.Stop calls it from a halt's
// completion callback, once the ramp down is over.
func (s *Stopper) BeginFlush(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushID = id
	s.state = stopperFlushing
}

// RemoveCurrentStream halts the stream that is playing so its tail is
// ramped and discarded: unlike a plain Pause/Stop, this is a skip-to-next,
// so once that remainder has drained, the Stopper ramps back up on its own
// the moment the next stream's DecodedStream arrives, rather than sitting
// halted until an explicit Play. trackID and streamID are recorded but not
// compared against the messages that follow.
func (s *Stopper) RemoveCurrentStream(trackID, streamID uint32, done func()) {
	s.mu.Lock()
	s.targetTrack, s.targetStream = trackID, streamID
	s.beginHaltLocked(done, true)
	s.mu.Unlock()
}

// Start resumes playback from halted, ramping up from silence.
func (s *Stopper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stopperHalted {
		s.state = stopperStarting
		s.rampCurrent = msg.RampMin
		s.rampRemaining = s.rampDur
	}
}

// Pull drives the state machine: audio passing through while starting or
// halting is reramped in place; once a halting ramp reaches silence a Halt
// message is synthesised and haltDone is invoked.
func (s *Stopper) Pull() msg.Message {
	for {
		m := s.upstream.Pull()
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		switch state {
		case stopperHalted:
			// Drop audio-bearing messages while halted; everything else
			// (Track, Mode, MetaText, Quit) passes straight through.
			if isAudio(m) {
				m.Release()
				continue
			}
			if _, ok := m.(*msg.DecodedStream); ok {
				s.mu.Lock()
				if s.autoResume {
					s.autoResume = false
					s.targetTrack, s.targetStream = 0, 0
					s.state = stopperStarting
					s.rampCurrent = msg.RampMin
					s.rampRemaining = s.rampDur
				}
				s.mu.Unlock()
			}
			return m

		case stopperHaltPending:
			if isAudio(m) {
				s.mu.Lock()
				s.state = stopperHalting
				s.rampCurrent = msg.RampMax
				s.rampRemaining = s.rampDur
				s.mu.Unlock()
			} else {
				return m
			}
			fallthrough

		case stopperStarting, stopperHalting:
			if isAudio(m) {
				out, finished := s.ramp(m, state == stopperHalting)
				if finished {
					s.mu.Lock()
					s.state = map[stopperState]stopperState{stopperStarting: stopperRunning, stopperHalting: stopperHalted}[state]
					done := s.haltDone
					s.haltDone = nil
					s.mu.Unlock()
					if state == stopperHalting && done != nil {
						done()
					}
				}
				return out
			}
			return m

		case stopperFlushing:
			if fl, ok := m.(*msg.Flush); ok && fl.ID == s.flushID {
				s.mu.Lock()
				s.state = stopperHalted
				s.mu.Unlock()
			}
			if isAudio(m) {
				m.Release()
				continue
			}
			return m

		default: // stopperRunning
			return m
		}
	}
}

func (s *Stopper) ramp(m msg.Message, down bool) (msg.Message, bool) {
	dir := msg.RampUp
	if down {
		dir = msg.RampDown
	}
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

func isAudio(m msg.Message) bool {
	switch m.(type) {
	case *msg.AudioPcm, *msg.Silence:
		return true
	default:
		return false
	}
}

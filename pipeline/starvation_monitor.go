package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/linn-oss/ohmediapipeline/jiffies"
	"github.com/linn-oss/ohmediapipeline/msg"
)

// starvationState mirrors the ramping-down/buffering/ramping-up cycle
// an underflow passes through once the decoded reservoir runs low: running is
// steady; rampingDown ramps audio already in flight to silence; buffering
// stops pulling from upstream entirely so the reservoir can refill;
// rampingUp ramps back up once it has.
type starvationState int

const (
	starvationRunning starvationState = iota
	starvationRampingDown
	starvationBuffering
	starvationRampingUp
)

// StarvationMonitor is an active element: it owns a
// goroutine that watches how much decoded audio is queued in reservoir and,
// when it runs low, ramps the audio already in flight down to silence,
// stops pulling from upstream until the reservoir has refilled past its
// normal threshold, then ramps back up. Pausing its own pulling (rather
// than forwarding silence while continuing to drain the reservoir) is what
// actually lets the reservoir's fill recover; a ticker-driven goroutine
// watches the fill level independently since the forwarding goroutine is
// not calling Pull while buffering.
type StarvationMonitor struct {
	log       *slog.Logger
	upstream  Supply
	sink      MessageSink
	factory   *msg.Factory
	reservoir *Reservoir
	observers []Observer

	lowThreshold    int64 // jiffies; below this, begin ramping down
	normalThreshold int64 // jiffies; buffering ends once fill reaches this
	rampDur         uint64

	mu       sync.Mutex
	state    starvationState
	mode     string
	streamID uint32
	handler  msg.StreamHandler

	rampCurrent   uint32
	rampRemaining uint64

	resume chan struct{} // closed by checkLevel/Close to wake a paused forward loop
}

func NewStarvationMonitor(log *slog.Logger, upstream Supply, sink MessageSink, f *msg.Factory, reservoir *Reservoir, lowThresholdJiffies, normalThresholdJiffies int64, rampDurationJiffies uint64, observers ...Observer) *StarvationMonitor {
	return &StarvationMonitor{
		log:             log,
		upstream:        upstream,
		sink:            sink,
		factory:         f,
		reservoir:       reservoir,
		observers:       observers,
		lowThreshold:    lowThresholdJiffies,
		normalThreshold: normalThresholdJiffies,
		rampDur:         rampDurationJiffies,
		resume:          make(chan struct{}),
	}
}

// Run forwards messages and periodically checks the watched reservoir's
// fill level on its own ticker, since Pull itself may block indefinitely
// when the reservoir is empty (the very condition being monitored) and the
// forward loop stops pulling entirely while buffering.
func (s *StarvationMonitor) Run() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.forward()
	}()
	for {
		select {
		case <-ticker.C:
			s.checkLevel()
		case <-done:
			return
		}
	}
}

// forward is the single goroutine that both pulls from upstream and decides
// what to do with what it pulls, the way Gorger.Run drives its own state
// machine in place rather than splitting ramp logic across goroutines.
func (s *StarvationMonitor) forward() {
	for {
		s.waitWhileBuffering()

		m := s.upstream.Pull()
		if m == nil {
			return
		}

		switch v := m.(type) {
		case *msg.Mode:
			s.mu.Lock()
			s.mode = v.Name
			s.mu.Unlock()
			s.sink.Push(v)

		case *msg.DecodedStream:
			s.mu.Lock()
			s.streamID, s.handler = v.StreamID, v.Handler
			s.mu.Unlock()
			s.sink.Push(v)

		case *msg.Halt, *msg.Flush:
			// A planned stop or seek is ramping (or has already ramped)
			// elsewhere; drop any starvation ramp of our own rather than
			// double up on it, and let the halt/flush pass straight
			// through.
			s.mu.Lock()
			wasBuffering := s.state != starvationRunning
			s.state = starvationRunning
			s.mu.Unlock()
			if wasBuffering {
				s.notifyState(StatePlaying)
			}
			s.sink.Push(m)

		case *msg.Quit:
			s.sink.Push(v)
			return

		default:
			if isAudio(m) {
				// Check the level here too, so a starved reservoir is
				// caught before this audio goes out, not on the next tick.
				s.checkLevel()
				s.pushAudio(m)
				continue
			}
			s.sink.Push(m)
		}
	}
}

// pushAudio applies the ramp in flight (if any) to an audio-bearing message
// and advances the state machine once a ramp completes.
func (s *StarvationMonitor) pushAudio(m msg.Message) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case starvationRampingDown:
		out, done := s.ramp(m, msg.RampDown)
		s.sink.Push(out)
		if done {
			s.mu.Lock()
			s.state = starvationBuffering
			s.mu.Unlock()
			s.notifyState(StateBuffering)
		}
	case starvationRampingUp:
		out, done := s.ramp(m, msg.RampUp)
		s.sink.Push(out)
		if done {
			s.mu.Lock()
			s.state = starvationRunning
			s.mu.Unlock()
			s.notifyState(StatePlaying)
		}
	default:
		s.sink.Push(m)
	}
}

// waitWhileBuffering blocks the forward loop for as long as the state
// machine is buffering, so nothing downstream of here keeps draining the
// reservoir while it is trying to refill.
func (s *StarvationMonitor) waitWhileBuffering() {
	for {
		s.mu.Lock()
		if s.state != starvationBuffering {
			s.mu.Unlock()
			return
		}
		resume := s.resume
		s.mu.Unlock()
		<-resume
	}
}

// checkLevel runs on the ticker goroutine: it starts a ramp-down once fill
// drops below lowThreshold, and ends buffering (waking the forward loop)
// once fill has recovered past normalThreshold.
func (s *StarvationMonitor) checkLevel() {
	fill := s.reservoir.Fill()

	s.mu.Lock()
	state := s.state
	handler, mode, streamID := s.handler, s.mode, s.streamID
	s.mu.Unlock()

	switch state {
	case starvationRunning:
		if fill > s.lowThreshold {
			return
		}
		s.mu.Lock()
		s.state = starvationRampingDown
		s.rampCurrent = msg.RampMax
		s.rampRemaining = s.rampDur
		s.mu.Unlock()
		if handler != nil {
			handler.NotifyStarving(mode, streamID)
		}
		s.log.Warn("pipeline starving, ramping down", "streamId", streamID)

	case starvationBuffering:
		if fill < s.normalThreshold {
			return
		}
		s.mu.Lock()
		s.state = starvationRampingUp
		s.rampCurrent = msg.RampMin
		s.rampRemaining = s.rampDur
		resume := s.resume
		s.resume = make(chan struct{})
		s.mu.Unlock()
		close(resume)
		s.log.Info("pipeline refilled, ramping up", "streamId", streamID)
	}
}

// Close forces buffering to end immediately, waking a paused forward loop
// so it resumes pulling and can observe a pipeline-wide Quit promptly
// instead of waiting on a reservoir that may never refill again.
func (s *StarvationMonitor) Close() {
	s.mu.Lock()
	if s.state != starvationBuffering {
		s.mu.Unlock()
		return
	}
	s.state = starvationRunning
	resume := s.resume
	s.resume = make(chan struct{})
	s.mu.Unlock()
	close(resume)
}

func (s *StarvationMonitor) notifyState(state State) {
	for _, o := range s.observers {
		o.NotifyPipelineState(state)
	}
}

func (s *StarvationMonitor) ramp(m msg.Message, dir msg.Direction) (msg.Message, bool) {
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

// LowThresholdFromMs converts a millisecond buffer-low threshold to jiffies,
// the unit NewStarvationMonitor expects.
func LowThresholdFromMs(ms int64) int64 {
	return int64(jiffies.PerMs) * ms
}

// NormalThresholdFromMs converts a millisecond buffer-recovered threshold to
// jiffies, the unit NewStarvationMonitor expects.
func NormalThresholdFromMs(ms int64) int64 {
	return int64(jiffies.PerMs) * ms
}

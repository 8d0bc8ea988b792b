package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// waiterState follows the shared ramp discipline of the control elements: a Wait
// ramps the current audio down, discards up to and including the identified
// Flush, reports the wait over, and ramps back up as audio resumes.
type waiterState int

const (
	waiterRunning waiterState = iota
	waiterRampingDown
	waiterFlushing
	waiterWaiting
	waiterStarting
)

// Waiter pauses the chain pending a flush id: used when a source has
// promised more audio for the same stream but needs everything queued before
// a known Flush discarded first.
type Waiter struct {
	mu    sync.Mutex
	state waiterState

	upstream Supply
	rampDur  uint64

	// waitingChanged, when set, is told when the element enters (true) and
	// leaves (false) its waiting state, so a UI can show the gap.
	waitingChanged func(waiting bool)
	waiting        bool

	targetFlush uint32

	rampCurrent   uint32
	rampRemaining uint64
}

func NewWaiter(upstream Supply, rampDurationJiffies uint64, waitingChanged func(bool)) *Waiter {
	return &Waiter{
		upstream:       upstream,
		rampDur:        rampDurationJiffies,
		waitingChanged: waitingChanged,
		rampCurrent:    msg.RampMax,
	}
}

// Wait arms the element: ramp down, then discard messages up to and
// including the Flush carrying flushID.
func (w *Waiter) Wait(flushID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targetFlush = flushID
	switch w.state {
	case waiterStarting:
		w.state = waiterRampingDown
		w.rampRemaining = w.rampDur - w.rampRemaining
	case waiterRunning:
		if w.rampDur == 0 {
			w.state = waiterFlushing
			break
		}
		w.state = waiterRampingDown
		w.rampCurrent = msg.RampMax
		w.rampRemaining = w.rampDur
	default:
		// Already silent; go straight to discarding.
		w.state = waiterFlushing
	}
}

func (w *Waiter) Pull() msg.Message {
	for {
		m := w.upstream.Pull()
		w.mu.Lock()
		state := w.state
		w.mu.Unlock()

		switch state {
		case waiterRampingDown:
			if !isAudio(m) {
				if w.consumeFlush(m) {
					continue
				}
				return m
			}
			out, finished := w.applyRamp(m, msg.RampDown)
			if finished {
				w.mu.Lock()
				w.state = waiterFlushing
				w.mu.Unlock()
				w.notify(true)
			}
			return out

		case waiterFlushing:
			if w.consumeFlush(m) {
				continue
			}
			switch m.(type) {
			case *msg.DecodedStream:
				// A fresh stream means the awaited flush is never coming.
				w.mu.Lock()
				w.targetFlush = msg.FlushIDInvalid
				w.state = waiterWaiting
				w.mu.Unlock()
				w.notify(false)
				return m
			case *msg.Mode, *msg.Track, *msg.EncodedStream, *msg.Halt, *msg.Quit, *msg.Drain:
				return m
			default:
				m.Release()
				continue
			}

		case waiterWaiting:
			// Flush consumed, wait reported over; the next audio restarts
			// playback with a ramp up.
			if isAudio(m) {
				if w.rampDur == 0 {
					w.setRunning()
					return m
				}
				w.mu.Lock()
				w.state = waiterStarting
				w.rampCurrent = msg.RampMin
				w.rampRemaining = w.rampDur
				w.mu.Unlock()
				out, finished := w.applyRamp(m, msg.RampUp)
				if finished {
					w.setRunning()
				}
				return out
			}
			return m

		case waiterStarting:
			if !isAudio(m) {
				return m
			}
			out, finished := w.applyRamp(m, msg.RampUp)
			if finished {
				w.setRunning()
			}
			return out

		default: // waiterRunning
			if wm, ok := m.(*msg.Wait); ok {
				// An in-band Wait also signals a gap; report it and pass
				// the message on for downstream elements.
				w.notify(true)
				w.mu.Lock()
				w.state = waiterWaiting
				w.mu.Unlock()
				return wm
			}
			return m
		}
	}
}

// consumeFlush swallows the armed Flush, ends the wait's discard phase and
// reports the wait over. Reports whether m was consumed.
func (w *Waiter) consumeFlush(m msg.Message) bool {
	fl, ok := m.(*msg.Flush)
	if !ok {
		return false
	}
	w.mu.Lock()
	match := fl.ID == w.targetFlush && w.targetFlush != msg.FlushIDInvalid
	if match {
		w.targetFlush = msg.FlushIDInvalid
		w.state = waiterWaiting
	}
	w.mu.Unlock()
	if match {
		w.notify(false)
		fl.Release()
	}
	return match
}

func (w *Waiter) setRunning() {
	w.mu.Lock()
	w.state = waiterRunning
	w.mu.Unlock()
	w.notify(false)
}

// notify reports waiting-state edges; repeated reports of the same state are
// suppressed so each wait produces exactly one true and one false.
func (w *Waiter) notify(waiting bool) {
	w.mu.Lock()
	changed := w.waiting != waiting
	w.waiting = waiting
	w.mu.Unlock()
	if changed && w.waitingChanged != nil {
		w.waitingChanged(waiting)
	}
}

func (w *Waiter) applyRamp(m msg.Message, dir msg.Direction) (msg.Message, bool) {
	w.mu.Lock()
	current, remaining := w.rampCurrent, w.rampRemaining
	w.mu.Unlock()

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
	w.mu.Lock()
	w.rampCurrent, w.rampRemaining = boundary, after
	w.mu.Unlock()
	return m, done
}

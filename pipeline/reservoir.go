package pipeline

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// weight returns how much capacity m consumes in whichever unit this
// reservoir is budgeted in (bytes for the encoded reservoir, jiffies for the
// decoded one). Control messages (Mode, Track, Halt, Flush, ...) are free:
// they must never be blocked behind a full reservoir.
type weightFunc func(msg.Message) int64

// Reservoir is a FIFO queue of messages bounded by a weighted capacity,
// backed by golang.org/x/sync/semaphore.Weighted. Push acquires weight
// before enqueuing, blocking the producer once the reservoir is full; Pull
// releases the weight it consumed once the message has been handed to the
// caller. One type serves both the encoded and the decoded reservoir.
type Reservoir struct {
	sem    *semaphore.Weighted
	weight weightFunc
	fill   atomic.Int64

	mu    sync.Mutex
	cond  *sync.Cond
	items *list.List
	quit  bool

	puller        msg.ClockPuller
	notifyEveryMu sync.Mutex
	notifyEvery   int64 // jiffies between ClockPuller.NotifySize calls, 0 disables
	sincePuller   int64
}

// NewReservoir builds a reservoir with the given capacity (bytes or
// jiffies, per weight's unit).
func NewReservoir(capacity int64, weight weightFunc) *Reservoir {
	r := &Reservoir{
		sem:    semaphore.NewWeighted(capacity),
		weight: weight,
		items:  list.New(),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

type reservoirEntry struct {
	m msg.Message
}

// Push enqueues m, blocking the caller if doing so would exceed capacity.
// ctx lets a Quit or shutdown unblock a stuck producer.
func (r *Reservoir) Push(ctx context.Context, m msg.Message) error {
	w := r.weight(m)
	if w > 0 {
		if err := r.sem.Acquire(ctx, w); err != nil {
			return err
		}
		r.fill.Add(w)
	}
	r.mu.Lock()
	r.items.PushBack(reservoirEntry{m: m})
	r.cond.Signal()
	r.mu.Unlock()
	return nil
}

// Pull dequeues the next message, blocking until one is available or the
// reservoir is closed via Quit (in which case it returns nil).
func (r *Reservoir) Pull() msg.Message {
	r.mu.Lock()
	for r.items.Len() == 0 && !r.quit {
		r.cond.Wait()
	}
	if r.items.Len() == 0 {
		r.mu.Unlock()
		return nil
	}
	front := r.items.Remove(r.items.Front()).(reservoirEntry)
	r.mu.Unlock()
	if w := r.weight(front.m); w > 0 {
		r.fill.Add(-w)
		r.sem.Release(w)
		r.notifyPuller(w)
	}
	return front.m
}

// Size reports the number of queued messages, for tests and diagnostics.
func (r *Reservoir) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.Len()
}

// Fill reports the reservoir's current weighted contents (bytes or
// jiffies, per this reservoir's weight function), the quantity
// StarvationMonitor compares against its configured thresholds.
func (r *Reservoir) Fill() int64 {
	return r.fill.Load()
}

// SetClockPuller wires a ClockPuller to be notified of this reservoir's
// fill level every notifyEveryJiffies of decoded audio pulled from it, so
// the puller can derive a drift estimate.
func (r *Reservoir) SetClockPuller(puller msg.ClockPuller, notifyEveryJiffies int64) {
	r.notifyEveryMu.Lock()
	defer r.notifyEveryMu.Unlock()
	r.puller = puller
	r.notifyEvery = notifyEveryJiffies
	r.sincePuller = 0
}

// notifyPuller is called from Pull with the jiffies just consumed; it
// samples Fill() into the configured ClockPuller once accumulated
// consumption crosses notifyEvery.
func (r *Reservoir) notifyPuller(consumedJiffies int64) {
	r.notifyEveryMu.Lock()
	puller, every := r.puller, r.notifyEvery
	if puller == nil || every <= 0 {
		r.notifyEveryMu.Unlock()
		return
	}
	r.sincePuller += consumedJiffies
	fire := r.sincePuller >= every
	if fire {
		r.sincePuller = 0
	}
	r.notifyEveryMu.Unlock()
	if fire {
		puller.NotifySize(uint64(r.Fill()))
	}
}

// Close wakes any blocked Pull with a nil return, used during pipeline
// teardown.
func (r *Reservoir) Close() {
	r.mu.Lock()
	r.quit = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// AsSink adapts r to MessageSink, pushing with context.Background() so a
// producer that doesn't track cancellation (e.g. CodecController's own
// goroutine) can still feed it directly.
func (r *Reservoir) AsSink() MessageSink {
	return MessageSinkFunc(func(m msg.Message) {
		_ = r.Push(context.Background(), m)
	})
}

// EncodedWeight budgets an encoded-reservoir message in bytes: only EncodedAudio counts, everything else is free.
func EncodedWeight(m msg.Message) int64 {
	if ea, ok := m.(*msg.EncodedAudio); ok {
		return int64(len(ea.Data))
	}
	return 0
}

// DecodedWeight budgets a decoded-reservoir message in jiffies: AudioPcm and Silence count, everything else is free.
func DecodedWeight(m msg.Message) int64 {
	switch v := m.(type) {
	case *msg.AudioPcm:
		return int64(v.Jiffies())
	case *msg.Silence:
		return int64(v.Jiffies())
	default:
		return 0
	}
}

package pipeline

import (
	"sync"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Gorger is one of the active elements: while gorging it keeps pulling
// from upstream and buffering messages internally, without forwarding them
// downstream, until its buffered audio totals gorgeSize jiffies, so a new
// non-real-time stream doesn't start playing before enough of it has
// accumulated to absorb scheduling jitter. Gorger owns its own internal
// queue and measures *that* queue's jiffies, not some other element's
// reservoir downstream or upstream of it.
//
// Everything the Gorger holds back is released strictly in arrival order,
// and any pending buffer is drained before a stream-boundary message
// (Mode, Track, DecodedStream, Halt) is forwarded, so downstream never
// sees a boundary overtake the audio that preceded it.
type Gorger struct {
	upstream Supply
	sink     MessageSink

	mu              sync.Mutex
	canGorge        bool // true unless the active Mode is real-time
	gorging         bool
	bufferedJiffies int64
	buffered        []msg.Message

	gorgeSize int64 // jiffies
}

// NewGorger wires a Gorger between upstream and sink. gorgeSizeJiffies is
// the amount of buffered audio it accumulates before releasing a gorge.
func NewGorger(upstream Supply, sink MessageSink, gorgeSizeJiffies int64) *Gorger {
	return &Gorger{upstream: upstream, sink: sink, gorgeSize: gorgeSizeJiffies, canGorge: true}
}

// Run pulls from upstream and either forwards immediately (not gorging) or
// buffers until the gorge condition is satisfied.
func (g *Gorger) Run() {
	for {
		m := g.upstream.Pull()
		if m == nil {
			return
		}
		switch v := m.(type) {
		case *msg.Mode:
			g.flush()
			g.mu.Lock()
			g.canGorge = !v.IsRealTime
			if !g.canGorge {
				g.setGorgingLocked(false)
			}
			g.mu.Unlock()
			g.sink.Push(v)
		case *msg.Track:
			g.flush()
			g.mu.Lock()
			g.setGorgingLocked(false)
			g.mu.Unlock()
			g.sink.Push(v)
		case *msg.DecodedStream:
			g.flush()
			g.sink.Push(v)
			g.mu.Lock()
			g.setGorgingLocked(g.canGorge)
			g.mu.Unlock()
		case *msg.Halt:
			// Audio buffered so far precedes the halt; deliver it first,
			// then re-enter the gorge for whatever follows.
			g.flush()
			g.sink.Push(v)
			g.mu.Lock()
			if g.canGorge {
				g.setGorgingLocked(true)
			}
			g.mu.Unlock()
		case *msg.Quit:
			g.flush()
			g.sink.Push(v)
			return
		default:
			g.forwardOrBuffer(m)
		}
	}
}

// setGorgingLocked flips gorging state; caller holds g.mu and has already
// drained any pending buffer via flush.
func (g *Gorger) setGorgingLocked(gorging bool) {
	g.gorging = gorging
}

// forwardOrBuffer queues a message while gorging (audio counts toward the
// gorge total; control messages ride along at zero weight so they cannot
// overtake buffered audio), releasing the whole buffer once enough jiffies
// have accumulated. Outside a gorge it forwards immediately.
func (g *Gorger) forwardOrBuffer(m msg.Message) {
	g.mu.Lock()
	if !g.gorging {
		g.mu.Unlock()
		g.sink.Push(m)
		return
	}
	g.buffered = append(g.buffered, m)
	g.bufferedJiffies += DecodedWeight(m)
	done := g.bufferedJiffies >= g.gorgeSize
	if done {
		g.gorging = false
	}
	g.mu.Unlock()
	if done {
		g.flush()
	}
}

// flush releases the buffered messages to sink in arrival order.
func (g *Gorger) flush() {
	g.mu.Lock()
	buffered := g.buffered
	g.buffered = nil
	g.bufferedJiffies = 0
	g.mu.Unlock()
	for _, m := range buffered {
		g.sink.Push(m)
	}
}

// Package clock implements the ClockPuller a Mode message may carry
// (msg.ClockPuller), smoothing a network-supplied timing source against the
// pipeline's own sample clock.
package clock

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/linn-oss/ohmediapipeline/jiffies"
)

// HistoryWindow is the number of recent drift samples kept for smoothing.
const HistoryWindow = 64

// maxExpectedDeviationJiffies is the largest per-sample deviation treated
// as ordinary jitter (3ms). The correction threshold is this much drift
// accumulated across the whole history window; anything under it leaves
// the multiplier alone.
const maxExpectedDeviationJiffies = 3 * jiffies.PerMs

// multiplierBound clamps the multiplier to a small range around nominal so
// a pathological timing source can never demand an audible rate change.
const multiplierBound = 0.01

// Puller implements msg.ClockPuller the way a timestamped (songcast-style)
// source is pulled: it keeps a persisted rate multiplier, accumulates
// (networkTime, drift) samples into a fixed-size history, and only touches
// the multiplier when the accumulated drift crosses a threshold. On a
// correction the history is reset and accumulation starts over; between
// corrections NotifyTimestamp returns the same multiplier unchanged. Large
// new deviations are spread across the existing history rather than landing
// on a single sample, which keeps the stored history (and the mean a
// correction uses) from spiking; the running total still counts each
// deviation in full.
type Puller struct {
	mu sync.Mutex

	sampleRate uint32
	started    bool

	multiplier      float64
	history         []float64
	nextIndex       int
	totalDrift      float64
	maxAllowedDrift float64

	storeNetworkStart bool
	networkStart      uint64
	networkLast       uint64
}

// New builds an idle Puller; NewStream/Start must be called before
// NotifySize/NotifyTimestamp are meaningful.
func New() *Puller {
	p := &Puller{history: make([]float64, 0, HistoryWindow)}
	p.resetLocked()
	return p
}

func (p *Puller) NewStream(sampleRate uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleRate = sampleRate
	p.maxAllowedDrift = float64(HistoryWindow) * float64(maxExpectedDeviationJiffies)
	p.resetLocked()
}

func (p *Puller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Puller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	p.resetLocked()
}

func (p *Puller) Start(notifyFreqHz uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
}

// resetLocked returns the multiplier to nominal and clears the timestamp
// history; caller holds p.mu.
func (p *Puller) resetLocked() {
	p.multiplier = 1.0
	p.resetHistoryLocked()
}

// resetHistoryLocked clears accumulated samples without disturbing the
// multiplier, the post-correction state: the new multiplier stays in force
// while evidence for the next correction accumulates from scratch.
func (p *Puller) resetHistoryLocked() {
	p.history = p.history[:0]
	p.nextIndex = 0
	p.totalDrift = 0
	p.storeNetworkStart = true
	p.networkStart = 0
	p.networkLast = 0
}

// NotifySize reports how many jiffies of audio are currently queued
// upstream of the driver; a timestamped Puller takes its signal from
// NotifyTimestamp instead, so this just reports the multiplier in force.
func (p *Puller) NotifySize(jiffies uint64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.multiplier
}

// NotifyTimestamp records one (drift, networkTime) sample. The returned
// multiplier only changes when the total accumulated drift exceeds the
// allowed bound: the correction scales the multiplier by the mean drift
// over the elapsed network time, clamps it near nominal, and resets the
// history so the next correction is judged on fresh evidence.
func (p *Puller) NotifyTimestamp(driftJiffies int64, networkTimeJiffies uint64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.storeNetworkStart {
		p.networkStart = networkTimeJiffies
		p.storeNetworkStart = false
	}
	p.networkLast = networkTimeJiffies

	drift := float64(driftJiffies)
	if len(p.history) < HistoryWindow {
		p.smoothLocked(&drift, -1)
		p.history = append(p.history, drift)
		return p.multiplier
	}

	p.smoothLocked(&drift, p.nextIndex)
	p.history[p.nextIndex] = drift
	p.nextIndex++
	if p.nextIndex == HistoryWindow {
		p.nextIndex = 0
	}

	if abs(p.totalDrift) > p.maxAllowedDrift {
		if elapsed := p.networkLast - p.networkStart; elapsed > 0 {
			meanDrift := stat.Mean(p.history, nil)
			p.pullLocked(meanDrift, float64(elapsed))
		}
		p.resetHistoryLocked()
	}
	return p.multiplier
}

// smoothLocked folds one new deviation into the running total and, when it
// is large relative to the history, spreads it across the existing samples
// (skipping the slot about to be overwritten) so the stored history stays
// representative without any single sample spiking it.
func (p *Puller) smoothLocked(drift *float64, skipIndex int) {
	p.totalDrift += *drift
	n := len(p.history)
	if n == 0 {
		return
	}
	if abs(*drift) >= float64(n) {
		share := *drift / float64(n)
		for i := range p.history {
			if i != skipIndex {
				p.history[i] += share
				*drift -= share
			}
		}
	}
}

// pullLocked applies one correction: the multiplier is scaled by the
// observed drift rate and clamped to multiplierBound around nominal.
func (p *Puller) pullLocked(driftJiffies, periodJiffies float64) {
	p.multiplier *= 1 + driftJiffies/periodJiffies
	if p.multiplier > 1+multiplierBound {
		p.multiplier = 1 + multiplierBound
	} else if p.multiplier < 1-multiplierBound {
		p.multiplier = 1 - multiplierBound
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

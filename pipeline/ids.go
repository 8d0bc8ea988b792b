// Package pipeline implements the staged message-processing chain between
// the protocol fetchers and the audio driver: reservoirs, container, codec
// controller, seeker, skipper, waiter, stopper, ramper, gorger, reporter,
// splitter, pruner, starvation monitor, muter, pre-driver, and the Pipeline
// that wires them.
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// FlushIDProvider hands out flush correlator ids. Distinct across the
// pipeline's lifetime and strictly monotone.
type FlushIDProvider struct {
	next atomic.Uint32
}

// NewFlushIDProvider starts id allocation just above msg.FlushIDInvalid.
func NewFlushIDProvider() *FlushIDProvider {
	return &FlushIDProvider{}
}

func (p *FlushIDProvider) NextFlushId() uint32 {
	return p.next.Add(1)
}

// activeStream is one entry in IdManager's bounded history of streams that
// have been told to play.
type activeStream struct {
	id       uint32 // pipeline-assigned sequence; eviction drops the oldest entry by position and does not read it
	trackID  uint32
	streamID uint32
	playNow  bool
}

// MaxActiveStreams bounds how many stream/track pairs IdManager remembers
// before the oldest is evicted.
const MaxActiveStreams = 100

// IdManager allocates track/stream ids and answers OkToPlay (yes, no or
// later) for streams that may have been superseded by a subsequent track
// change.
type IdManager struct {
	mu           sync.Mutex
	nextTrackID  uint32
	nextStreamID uint32
	seq          uint32
	entries      []activeStream
	playing      activeStream
	havePlaying  bool
}

func NewIdManager() *IdManager {
	return &IdManager{entries: make([]activeStream, 0, MaxActiveStreams)}
}

func (m *IdManager) NextTrackId() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTrackID++
	return m.nextTrackID
}

func (m *IdManager) NextStreamId() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStreamID++
	return m.nextStreamID
}

// AddStream records that a stream belonging to trackID has been dispatched
// with the given play-now flag, ahead of any DecodedStream for it arriving.
func (m *IdManager) AddStream(trackID, streamID uint32, playNow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e := activeStream{id: m.seq, trackID: trackID, streamID: streamID, playNow: playNow}
	if len(m.entries) >= MaxActiveStreams {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, e)
}

// OkToPlay answers whether a just-decoded stream should be played, queued
// (playLater) or discarded (playNo, it was superseded).
func (m *IdManager) OkToPlay(streamID uint32) msg.PlayDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.streamID == streamID {
			m.playing = e
			m.havePlaying = true
			// Everything added before this entry is now stale.
			m.entries = m.entries[i:]
			if e.playNow {
				return msg.PlayYes
			}
			return msg.PlayLater
		}
	}
	return msg.PlayNo
}

// InvalidateAll drops every pending stream entry (e.g. on Stop/RemoveAll),
// so a stale OkToPlay answers PlayNo.
func (m *IdManager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

// InvalidateAt drops a single pending stream entry (e.g. after it has been
// fully skipped past).
func (m *IdManager) InvalidateAt(streamID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.streamID == streamID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

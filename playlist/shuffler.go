package playlist

import (
	"math/rand"
	"sync"
)

// UriProvider is the interface a Filler pulls tracks from: Begin and
// BeginLater seed which track to start at, MoveNext/MovePrevious change
// position, and GetNext/CurrentTrackId answer what to play.
type UriProvider interface {
	Begin(trackID uint32) error
	BeginLater(trackID uint32) error
	MoveNext() (Track, error)
	MovePrevious() (Track, error)
	CurrentTrackId() uint32
	GetNext() (Track, error)
}

// linearProvider reads a TrackDatabase in list order, with no shuffling or
// repeat. A Repeater can wrap one of these; Shuffler reads the database
// directly.
type linearProvider struct {
	mu  sync.Mutex
	db  *TrackDatabase
	pos int // index into db.IDs(), -1 before Begin
}

func NewLinearProvider(db *TrackDatabase) UriProvider {
	return &linearProvider{db: db, pos: -1}
}

// Begin positions the cursor just before trackID, so the next GetNext (or
// MoveNext) yields that track.
func (p *linearProvider) Begin(trackID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.db.IDs()
	for i, id := range ids {
		if id == trackID {
			p.pos = i - 1
			return nil
		}
	}
	return ErrNotFound
}

func (p *linearProvider) BeginLater(trackID uint32) error { return p.Begin(trackID) }

func (p *linearProvider) MoveNext() (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.db.IDs()
	if p.pos+1 >= len(ids) {
		return Track{}, ErrNotFound
	}
	p.pos++
	return p.db.ReadByID(ids[p.pos])
}

func (p *linearProvider) MovePrevious() (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos <= 0 {
		return Track{}, ErrNotFound
	}
	p.pos--
	ids := p.db.IDs()
	return p.db.ReadByID(ids[p.pos])
}

func (p *linearProvider) CurrentTrackId() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.db.IDs()
	if p.pos < 0 || p.pos >= len(ids) {
		return 0
	}
	return ids[p.pos]
}

func (p *linearProvider) GetNext() (Track, error) {
	p.mu.Lock()
	ids := p.db.IDs()
	next := p.pos + 1
	p.mu.Unlock()
	if next >= len(ids) {
		return Track{}, ErrNotFound
	}
	return p.db.ReadByID(ids[next])
}

// Shuffler wraps a TrackDatabase with a random permutation of its ids.
// Enabling shuffle always computes a fresh permutation, even if it was
// already enabled, so toggling shuffle off and back on visibly reorders
// the list again.
type Shuffler struct {
	mu      sync.Mutex
	db      *TrackDatabase
	enabled bool
	order   []uint32 // permutation of db.IDs() when enabled
	pos     int
	rng     *rand.Rand
}

func NewShuffler(db *TrackDatabase, seed int64) *Shuffler {
	return &Shuffler{db: db, pos: -1, rng: rand.New(rand.NewSource(seed))}
}

// SetEnabled turns shuffling on or off. Turning it on (from either state)
// always reshuffles.
func (s *Shuffler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if enabled {
		s.reshuffleLocked()
	}
}

// Reshuffle recomputes the permutation in place. The Filler forces one on
// every Play of a shuffled mode, so the first track is randomised even when
// shuffle was enabled long before playback started.
func (s *Shuffler) Reshuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		s.reshuffleLocked()
	}
}

func (s *Shuffler) reshuffleLocked() {
	ids := s.db.IDs()
	order := append([]uint32(nil), ids...)
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	s.order = order
	s.pos = -1
}

// orderLocked returns the id sequence currently in effect: the shuffled
// permutation when enabled, or the database's own order when disabled. A
// disabled Shuffler must be order-preserving, so it
// reads straight through to the underlying database rather than a stale
// permutation.
func (s *Shuffler) orderLocked() []uint32 {
	if s.enabled {
		return s.order
	}
	return s.db.IDs()
}

// Begin positions the cursor just before trackID in the current order, so
// the next GetNext/MoveNext yields that track.
func (s *Shuffler) Begin(trackID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.orderLocked() {
		if id == trackID {
			s.pos = i - 1
			return nil
		}
	}
	return ErrNotFound
}

// TryMoveToStartOfUnplayed moves trackID to the head of the yet-to-play
// portion of the permutation, so it is the next track delivered without
// disturbing what has already played.
func (s *Shuffler) TryMoveToStartOfUnplayed(trackID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return false
	}
	at := -1
	for i, id := range s.order {
		if id == trackID {
			at = i
			break
		}
	}
	if at < 0 {
		return false
	}
	id := s.order[at]
	s.order = append(s.order[:at], s.order[at+1:]...)
	if at <= s.pos {
		// Removing an already-played entry shifts the cursor's element
		// left by one.
		s.pos--
	}
	head := s.pos + 1
	rest := append([]uint32{id}, s.order[head:]...)
	s.order = append(s.order[:head], rest...)
	return true
}

func (s *Shuffler) BeginLater(trackID uint32) error { return s.Begin(trackID) }

func (s *Shuffler) MoveNext() (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orderLocked()
	if s.pos+1 >= len(order) {
		return Track{}, ErrNotFound
	}
	s.pos++
	return s.db.ReadByID(order[s.pos])
}

func (s *Shuffler) MovePrevious() (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos <= 0 {
		return Track{}, ErrNotFound
	}
	s.pos--
	return s.db.ReadByID(s.orderLocked()[s.pos])
}

func (s *Shuffler) CurrentTrackId() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orderLocked()
	if s.pos < 0 || s.pos >= len(order) {
		return 0
	}
	return order[s.pos]
}

func (s *Shuffler) GetNext() (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orderLocked()
	if s.pos+1 >= len(order) {
		return Track{}, ErrNotFound
	}
	return s.db.ReadByID(order[s.pos+1])
}

// Order reports the current permutation, for tests.
func (s *Shuffler) Order() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.order...)
}

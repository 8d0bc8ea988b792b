package playlist

import (
	"errors"
	"sync"
)

// MaxTracks bounds a TrackDatabase.
const MaxTracks = 1000

var (
	// ErrFull is returned by Insert when the database is already at
	// MaxTracks.
	ErrFull = errors.New("playlist: track database full")
	// ErrNotFound is returned by operations naming a track id that isn't
	// present.
	ErrNotFound = errors.New("playlist: track id not found")
)

// Observer is notified whenever the database's contents change, so a
// Filler watching the currently-playing id can react to an insert ahead of
// it or a deletion of it.
type Observer interface {
	NotifyTrackInserted(t Track, afterID uint32)
	NotifyTrackDeleted(id uint32)
	NotifyAllDeleted()
}

type entry struct {
	track Track
	seq   uint64
}

// TrackDatabase is an ordered, id-addressable list of tracks.
// Every entry also records the sequence number its Insert produced;
// playlist order is the order of the entries, not of these numbers.
type TrackDatabase struct {
	mu        sync.Mutex
	entries   []entry
	nextID    uint32
	nextSeq   uint64
	observers []Observer
}

func NewTrackDatabase() *TrackDatabase {
	return &TrackDatabase{}
}

func (d *TrackDatabase) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Insert adds a track after afterID (0 meaning "at the head") and returns
// its newly allocated id.
func (d *TrackDatabase) Insert(afterID uint32, uri, metadata string) (uint32, error) {
	d.mu.Lock()
	if len(d.entries) >= MaxTracks {
		d.mu.Unlock()
		return 0, ErrFull
	}
	d.nextID++
	id := d.nextID
	d.nextSeq++
	e := entry{track: Track{ID: id, URI: uri, Metadata: metadata}, seq: d.nextSeq}

	idx := 0
	if afterID != 0 {
		pos := d.indexOf(afterID)
		if pos < 0 {
			d.mu.Unlock()
			return 0, ErrNotFound
		}
		idx = pos + 1
	}
	d.entries = append(d.entries, entry{})
	copy(d.entries[idx+1:], d.entries[idx:])
	d.entries[idx] = e
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()

	for _, o := range observers {
		o.NotifyTrackInserted(e.track, afterID)
	}
	return id, nil
}

// DeleteByID removes a single track.
func (d *TrackDatabase) DeleteByID(id uint32) error {
	d.mu.Lock()
	pos := d.indexOf(id)
	if pos < 0 {
		d.mu.Unlock()
		return ErrNotFound
	}
	d.entries = append(d.entries[:pos], d.entries[pos+1:]...)
	d.nextSeq++
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()

	for _, o := range observers {
		o.NotifyTrackDeleted(id)
	}
	return nil
}

// DeleteAll empties the database.
func (d *TrackDatabase) DeleteAll() {
	d.mu.Lock()
	d.entries = nil
	d.nextSeq++
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()

	for _, o := range observers {
		o.NotifyAllDeleted()
	}
}

// Sequence reports the database's current mutation sequence number,
// incremented by every Insert/DeleteByID/DeleteAll call. A reader pairs this with IDArray to
// detect whether its snapshot raced a concurrent mutation.
func (d *TrackDatabase) Sequence() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextSeq
}

// IDArray returns every track id in playlist order together with the
// sequence number current at the moment of the read, so a caller (e.g. the
// UPnP playlist provider) can cache its own copy and
// only recompute once the token goes stale.
func (d *TrackDatabase) IDArray() (ids []uint32, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids = make([]uint32, len(d.entries))
	for i, e := range d.entries {
		ids[i] = e.track.ID
	}
	return ids, d.nextSeq
}

// ReadByID returns the track with the given id.
func (d *TrackDatabase) ReadByID(id uint32) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pos := d.indexOf(id)
	if pos < 0 {
		return Track{}, ErrNotFound
	}
	return d.entries[pos].track, nil
}

// ReadByIndex returns the track at position idx (0-based) in playlist
// order.
func (d *TrackDatabase) ReadByIndex(idx int) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx < 0 || idx >= len(d.entries) {
		return Track{}, ErrNotFound
	}
	return d.entries[idx].track, nil
}

// Len reports how many tracks are currently stored.
func (d *TrackDatabase) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// IDs returns every track id in playlist order, for tests and the
// Shuffler/Repeater below.
func (d *TrackDatabase) IDs() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint32, len(d.entries))
	for i, e := range d.entries {
		ids[i] = e.track.ID
	}
	return ids
}

func (d *TrackDatabase) indexOf(id uint32) int {
	for i, e := range d.entries {
		if e.track.ID == id {
			return i
		}
	}
	return -1
}

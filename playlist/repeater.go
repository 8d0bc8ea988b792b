package playlist

import "sync"

// Repeater wraps a UriProvider so MoveNext past the last track wraps back
// to the first, and MovePrevious before the first wraps to the last.
type Repeater struct {
	mu      sync.Mutex
	inner   UriProvider
	db      *TrackDatabase
	enabled bool
}

func NewRepeater(inner UriProvider, db *TrackDatabase) *Repeater {
	return &Repeater{inner: inner, db: db}
}

func (r *Repeater) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

func (r *Repeater) Begin(trackID uint32) error      { return r.inner.Begin(trackID) }
func (r *Repeater) BeginLater(trackID uint32) error { return r.inner.BeginLater(trackID) }
func (r *Repeater) CurrentTrackId() uint32          { return r.inner.CurrentTrackId() }

func (r *Repeater) MoveNext() (Track, error) {
	t, err := r.inner.MoveNext()
	if err == nil {
		return t, nil
	}
	if !r.enabled {
		return Track{}, err
	}
	ids := r.db.IDs()
	if len(ids) == 0 {
		return Track{}, err
	}
	if bErr := r.inner.Begin(ids[0]); bErr != nil {
		return Track{}, err
	}
	return r.inner.MoveNext()
}

func (r *Repeater) MovePrevious() (Track, error) {
	t, err := r.inner.MovePrevious()
	if err == nil {
		return t, nil
	}
	if !r.enabled {
		return Track{}, err
	}
	ids := r.db.IDs()
	if len(ids) == 0 {
		return Track{}, err
	}
	last := ids[len(ids)-1]
	if bErr := r.inner.Begin(last); bErr != nil {
		return Track{}, err
	}
	return r.inner.MoveNext()
}

func (r *Repeater) GetNext() (Track, error) {
	t, err := r.inner.GetNext()
	if err == nil {
		return t, nil
	}
	if !r.enabled {
		return Track{}, err
	}
	ids := r.db.IDs()
	if len(ids) == 0 {
		return Track{}, err
	}
	return r.db.ReadByID(ids[0])
}

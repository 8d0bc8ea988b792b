package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Inserting
// after an existing id places the new track immediately after it, and
// DeleteAll always empties the list regardless of prior operations.
func TestTrackDatabaseInsertOrdering(t *testing.T) {
	db := NewTrackDatabase()
	id1, err := db.Insert(0, "a", "")
	require.NoError(t, err)
	id2, err := db.Insert(0, "b", "")
	require.NoError(t, err)
	id3, err := db.Insert(id1, "c", "")
	require.NoError(t, err)

	ids := db.IDs()
	assert.Equal(t, []uint32{id2, id1, id3}, ids)

	db.DeleteAll()
	assert.Equal(t, 0, db.Len())
}

func TestTrackDatabaseDeleteByID(t *testing.T) {
	db := NewTrackDatabase()
	id1, _ := db.Insert(0, "a", "")
	id2, _ := db.Insert(id1, "b", "")

	require.NoError(t, db.DeleteByID(id1))
	ids := db.IDs()
	assert.Equal(t, []uint32{id2}, ids)

	assert.ErrorIs(t, db.DeleteByID(id1), ErrNotFound)
}

func TestTrackDatabaseFull(t *testing.T) {
	db := NewTrackDatabase()
	for i := 0; i < MaxTracks; i++ {
		_, err := db.Insert(0, "x", "")
		require.NoError(t, err)
	}
	_, err := db.Insert(0, "overflow", "")
	assert.ErrorIs(t, err, ErrFull)
}

type recordingObserver struct {
	inserted []uint32
	deleted  []uint32
	allDel   int
}

func (o *recordingObserver) NotifyTrackInserted(t Track, afterID uint32) { o.inserted = append(o.inserted, t.ID) }
func (o *recordingObserver) NotifyTrackDeleted(id uint32)                { o.deleted = append(o.deleted, id) }
func (o *recordingObserver) NotifyAllDeleted()                          { o.allDel++ }

func TestTrackDatabaseNotifiesObservers(t *testing.T) {
	db := NewTrackDatabase()
	obs := &recordingObserver{}
	db.AddObserver(obs)

	id1, _ := db.Insert(0, "a", "")
	_ = db.DeleteByID(id1)
	db.DeleteAll()

	assert.Equal(t, []uint32{id1}, obs.inserted)
	assert.Equal(t, []uint32{id1}, obs.deleted)
	assert.Equal(t, 1, obs.allDel)
}

// The mutation sequence number strictly increases
// across any mix of Insert/DeleteByID/DeleteAll, and IDArray's returned
// sequence always matches Sequence() observed immediately after.
func TestTrackDatabaseSequenceMonotone(t *testing.T) {
	db := NewTrackDatabase()
	var last uint64
	rapid.Check(t, func(rt *rapid.T) {
		op := rapid.SampledFrom([]string{"insert", "delete", "deleteAll"}).Draw(rt, "op")
		switch op {
		case "insert":
			db.Insert(0, "x", "")
		case "delete":
			ids := db.IDs()
			if len(ids) > 0 {
				db.DeleteByID(ids[0])
			} else {
				return
			}
		case "deleteAll":
			db.DeleteAll()
		}
		seq := db.Sequence()
		assert.Greater(t, seq, last)
		last = seq

		_, idArraySeq := db.IDArray()
		assert.Equal(t, seq, idArraySeq)
	})
}

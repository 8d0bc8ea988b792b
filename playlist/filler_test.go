package playlist

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// blockingReader is a controllable io.ReadCloser+io.Seeker: Read blocks on a
// channel of chunks until one arrives, the channel is closed (clean EOF), or
// the reader itself is closed (the interrupt path).
type blockingReader struct {
	data       chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	seekOffset int64
}

func newBlockingReader() *blockingReader {
	return &blockingReader{data: make(chan []byte, 8), closed: make(chan struct{})}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	select {
	case <-r.closed:
		return 0, io.ErrClosedPipe
	case chunk, ok := <-r.data:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	}
}

func (r *blockingReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func (r *blockingReader) Seek(offset int64, whence int) (int64, error) {
	r.seekOffset = offset
	return offset, nil
}

func (r *blockingReader) push(b []byte) { r.data <- b }
func (r *blockingReader) end()          { close(r.data) }

// fakeOpener hands out a preassigned reader per URI.
type fakeOpener struct {
	mu      sync.Mutex
	readers map[string]*blockingReader
}

func newFakeOpener() *fakeOpener { return &fakeOpener{readers: make(map[string]*blockingReader)} }

func (o *fakeOpener) add(uri string, r *blockingReader) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readers[uri] = r
}

func (o *fakeOpener) Open(uri string) (io.ReadCloser, int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.readers[uri], 0, nil
}

// fakeFillerSink records every message a Filler pushes, in order.
type fakeFillerSink struct {
	mu   sync.Mutex
	msgs []msg.Message
}

func (s *fakeFillerSink) Push(_ context.Context, m msg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *fakeFillerSink) snapshot() []msg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]msg.Message(nil), s.msgs...)
}

func (s *fakeFillerSink) waitFor(t *testing.T, match func(msg.Message) bool) msg.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range s.snapshot() {
			if match(m) {
				return m
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for expected message")
	return nil
}

type fakeFillerIDs struct {
	mu                          sync.Mutex
	trackID, streamID, flushID uint32
}

func (f *fakeFillerIDs) NextTrackId() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackID++
	return f.trackID
}
func (f *fakeFillerIDs) NextStreamId() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamID++
	return f.streamID
}
func (f *fakeFillerIDs) NextFlushId() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushID++
	return f.flushID
}

func newTestFiller(t *testing.T, db *TrackDatabase, opener *fakeOpener) (*Filler, *fakeFillerSink, context.CancelFunc) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := NewLinearProvider(db)
	sink := &fakeFillerSink{}
	f := NewFiller(log, provider, sink, &fakeFillerIDs{}, opener, msg.NewFactory(msg.DefaultFactoryParams()))
	ctx, cancel := context.WithCancel(context.Background())
	go f.Run(ctx)
	return f, sink, cancel
}

func isEncodedStreamFor(uri string) func(msg.Message) bool {
	return func(m msg.Message) bool {
		es, ok := m.(*msg.EncodedStream)
		return ok && es.URI == uri
	}
}

func isTrackFor(uri string) func(msg.Message) bool {
	return func(m msg.Message) bool {
		tr, ok := m.(*msg.Track)
		return ok && tr.URI == uri
	}
}

// Play starts the current track, pushing Track then
// EncodedStream, then streams its bytes as EncodedAudio.
func TestFillerPlaysTrackAndStreamsAudio(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	sink.waitFor(t, isEncodedStreamFor("track1"))

	r.push([]byte("hello"))
	audio := sink.waitFor(t, func(m msg.Message) bool {
		ea, ok := m.(*msg.EncodedAudio)
		return ok && string(ea.Data) == "hello"
	})
	require.NotNil(t, audio)
}

// Next interrupts the current stream:
// a Next issued while a track's read is blocked must abort that read
// promptly rather than waiting for it to reach EOF on its own.
func TestFillerNextInterruptsBlockedRead(t *testing.T) {
	db := NewTrackDatabase()
	id1, _ := db.Insert(0, "track1", "")
	db.Insert(id1, "track2", "")
	r1 := newBlockingReader()
	r2 := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r1)
	opener.add("track2", r2)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	sink.waitFor(t, isEncodedStreamFor("track1"))

	f.Next()
	sink.waitFor(t, isTrackFor("track2"))

	select {
	case <-r1.closed:
	case <-time.After(time.Second):
		t.Fatal("Next should have closed track1's reader to interrupt its blocked Read")
	}
}

// TrySeek repositions the underlying
// reader and announces a Flush the pipeline's Seeker can wait for.
func TestFillerTrySeekRepositionsReaderAndPushesFlush(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	es := sink.waitFor(t, isEncodedStreamFor("track1")).(*msg.EncodedStream)

	flushID, ok := f.TrySeek(es.StreamID, 4096)
	assert.True(t, ok)
	assert.NotZero(t, flushID)
	assert.EqualValues(t, 4096, r.seekOffset)

	sink.waitFor(t, func(m msg.Message) bool {
		fl, ok := m.(*msg.Flush)
		return ok && fl.ID == flushID
	})
}

// TrySeek for a stream id this Filler no longer owns must report false
// instead of touching the (possibly already-reused) reader.
func TestFillerTrySeekRejectsStaleStreamID(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	sink.waitFor(t, isEncodedStreamFor("track1"))

	_, ok := f.TrySeek(99999, 0)
	assert.False(t, ok)
}

// TryStop interrupts the current stream and announces a Halt.
func TestFillerTryStopInterruptsAndPushesHalt(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	es := sink.waitFor(t, isEncodedStreamFor("track1")).(*msg.EncodedStream)

	haltID, ok := f.TryStop(es.StreamID)
	assert.True(t, ok)
	assert.NotZero(t, haltID)

	sink.waitFor(t, func(m msg.Message) bool {
		h, ok := m.(*msg.Halt)
		return ok && h.ID == haltID
	})
	select {
	case <-r.closed:
	case <-time.After(time.Second):
		t.Fatal("TryStop should have interrupted the reader")
	}
}

// Play announces the mode before the first Track, and begins
// at the requested track id.
func TestFillerPlayEmitsModeAndBeginsAtTrack(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	id2, _ := db.Insert(0, "track2", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track2", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, id2)
	sink.waitFor(t, isTrackFor("track2"))

	msgs := sink.snapshot()
	require.NotEmpty(t, msgs)
	mode, ok := msgs[0].(*msg.Mode)
	require.True(t, ok, "first pushed message should be the Mode announcement")
	assert.Equal(t, ModePlaylist, mode.Name)
	assert.True(t, mode.SupportsNextPrev)
}

// An unknown mode is refused outright: nothing is pushed, nothing plays.
func TestFillerPlayUnknownModeDoesNothing(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	f, sink, cancel := newTestFiller(t, db, newFakeOpener())
	defer cancel()

	f.Play("Radio", 0)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
}

// Stop(haltId) interrupts the current protocol and emits a
// Halt carrying the given id.
func TestFillerStopEmitsHalt(t *testing.T) {
	db := NewTrackDatabase()
	db.Insert(0, "track1", "")
	r := newBlockingReader()
	opener := newFakeOpener()
	opener.add("track1", r)

	f, sink, cancel := newTestFiller(t, db, opener)
	defer cancel()

	f.Play(ModePlaylist, 0)
	sink.waitFor(t, isEncodedStreamFor("track1"))

	f.Stop(42)
	sink.waitFor(t, func(m msg.Message) bool {
		h, ok := m.(*msg.Halt)
		return ok && h.ID == 42
	})
	select {
	case <-r.closed:
	case <-time.After(time.Second):
		t.Fatal("Stop should have interrupted the reader")
	}
}

// Playing a shuffled provider forces a fresh
// permutation, so the first track is not deterministically the list head.
func TestFillerPlayForcesReshuffle(t *testing.T) {
	db := NewTrackDatabase()
	for i := 0; i < 20; i++ {
		db.Insert(0, "x", "")
	}
	sh := NewShuffler(db, 7)
	sh.SetEnabled(true)
	before := append([]uint32(nil), sh.Order()...)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &fakeFillerSink{}
	f := NewFiller(log, sh, sink, &fakeFillerIDs{}, nil, msg.NewFactory(msg.DefaultFactoryParams()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	f.Play(ModePlaylist, 0)
	sink.waitFor(t, func(m msg.Message) bool {
		_, ok := m.(*msg.Track)
		return ok
	})
	assert.NotEqual(t, before, sh.Order(), "Play should have reshuffled the permutation")
}

package playlist

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Sink is the subset of Pipeline.Push a Filler needs, kept narrow so
// playlist doesn't import package pipeline.
type Sink interface {
	Push(ctx context.Context, m msg.Message) error
}

// IDs is the subset of pipeline id allocation a Filler needs.
type IDs interface {
	NextTrackId() uint32
	NextStreamId() uint32
	NextFlushId() uint32
}

// StreamOpener opens a track's URI for reading, returning its total byte
// length if known (0 if not).
type StreamOpener interface {
	Open(uri string) (io.ReadCloser, int64, error)
}

// ModeInfo describes a logical source registered with the Filler: the name
// and flags carried on the Mode message announcing it.
type ModeInfo struct {
	Name             string
	SupportsLatency  bool
	IsRealTime       bool
	SupportsNextPrev bool
	ClockPuller      msg.ClockPuller
}

// ModePlaylist is the mode the default UriProvider is registered under.
const ModePlaylist = "Playlist"

type registeredMode struct {
	info     ModeInfo
	provider UriProvider
}

// Filler is the active element upstream of the pipeline's encoded
// reservoir: it owns a command channel (Play/Stop/Next/Prev) and, while
// playing,
// repeatedly reads the current track from the active mode's UriProvider,
// opens it, and pushes Mode/Track/EncodedStream/EncodedAudio messages into
// the pipeline.
//
// Filler also implements msg.StreamHandler for every stream it opens: it
// owns the io.ReadCloser, so it is the only thing that can actually seek
// or interrupt the in-flight read. TrySeek/TryStop/NotifyStarving let the
// pipeline call back into it instead of needing some other component to
// stand in as the stream's handler.
type Filler struct {
	log     *slog.Logger
	sink    Sink
	ids     IDs
	opener  StreamOpener
	factory *msg.Factory

	mu          sync.Mutex
	modes       map[string]registeredMode
	activeMode  string
	provider    UriProvider
	playing     bool
	curReader   io.ReadCloser
	curStreamID uint32
	curTrackID  uint32

	// ioMu serialises TrySeek calls on the current reader. The read loop
	// does not hold it across Read, so a Read blocked on a source with no
	// data yet cannot hold a seek up.
	ioMu sync.Mutex

	// generation is bumped by interruptCurrent and by startTrack; a
	// pushTrack goroutine compares its own snapshot against the live value
	// to tell whether it has been superseded by a later command, so it
	// knows whether to signal done itself.
	generation atomic.Uint64

	cmds chan command
	done chan struct{}
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdStop
	cmdNext
	cmdPrev
)

type command struct {
	kind    commandKind
	mode    string
	trackID uint32
	haltID  uint32
}

const fillerChunkBytes = 64 * 1024

// NewFiller builds a Filler with provider registered as the "Playlist" mode
// and selected as the active source. Further sources (radio, receivers)
// register with RegisterMode before their first Play.
func NewFiller(log *slog.Logger, provider UriProvider, sink Sink, ids IDs, opener StreamOpener, f *msg.Factory) *Filler {
	fl := &Filler{
		log:     log,
		sink:    sink,
		ids:     ids,
		opener:  opener,
		factory: f,
		modes:   make(map[string]registeredMode),
		cmds:    make(chan command, 8),
		done:    make(chan struct{}, 1),
	}
	fl.RegisterMode(ModeInfo{Name: ModePlaylist, SupportsNextPrev: true}, provider)
	fl.activeMode, fl.provider = ModePlaylist, provider
	return fl
}

// RegisterMode adds a logical source the Filler can switch to by name.
func (fl *Filler) RegisterMode(info ModeInfo, provider UriProvider) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.modes[info.Name] = registeredMode{info: info, provider: provider}
}

// Play switches to the named mode's UriProvider and begins at trackID
// A zero trackID resumes from the
// provider's current cursor.
func (fl *Filler) Play(mode string, trackID uint32) {
	fl.cmds <- command{kind: cmdPlay, mode: mode, trackID: trackID}
}

// Stop raises the stop flag, interrupts the current protocol and emits a
// Halt carrying haltID.
func (fl *Filler) Stop(haltID uint32) {
	fl.cmds <- command{kind: cmdStop, haltID: haltID}
}

func (fl *Filler) Next() { fl.cmds <- command{kind: cmdNext} }
func (fl *Filler) Prev() { fl.cmds <- command{kind: cmdPrev} }

// Run processes commands until ctx is cancelled. Intended to run on its own
// goroutine for the pipeline's lifetime. Each track is read on its own
// goroutine (startTrack) so a Stop/Next/Prev arriving mid-track is acted on
// immediately instead of waiting for the current read to reach EOF on its
// own.
func (fl *Filler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			fl.interruptCurrent()
			return

		case <-fl.done:
			fl.mu.Lock()
			playing := fl.playing
			fl.mu.Unlock()
			if playing {
				fl.advance(ctx)
			}

		case cmd := <-fl.cmds:
			switch cmd.kind {
			case cmdPlay:
				if !fl.activateMode(ctx, cmd.mode) {
					break
				}
				if cmd.trackID != 0 {
					if err := fl.currentProvider().Begin(cmd.trackID); err != nil {
						fl.log.Warn("play: unknown track", "trackId", cmd.trackID, "error", err)
						break
					}
				}
				fl.mu.Lock()
				fl.playing = true
				fl.mu.Unlock()
				fl.advance(ctx)
			case cmdStop:
				fl.mu.Lock()
				fl.playing = false
				fl.mu.Unlock()
				fl.interruptCurrent()
				_ = fl.sink.Push(ctx, fl.factory.NewHalt(cmd.haltID))
			case cmdNext:
				fl.interruptCurrent()
				if t, err := fl.currentProvider().MoveNext(); err == nil {
					fl.startTrack(ctx, t)
				}
			case cmdPrev:
				fl.interruptCurrent()
				if t, err := fl.currentProvider().MovePrevious(); err == nil {
					fl.startTrack(ctx, t)
				}
			}
		}
	}
}

func (fl *Filler) currentProvider() UriProvider {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.provider
}

// activateMode selects the named source, interrupting whatever the previous
// mode was streaming and announcing the switch with a Mode message. Playing
// a shuffled provider always forces a fresh permutation first, so the
// opening track is randomised even when shuffle was enabled long before
// playback started.
func (fl *Filler) activateMode(ctx context.Context, name string) bool {
	fl.mu.Lock()
	reg, ok := fl.modes[name]
	changed := ok && fl.activeMode != name
	if ok {
		fl.activeMode, fl.provider = name, reg.provider
	}
	fl.mu.Unlock()
	if !ok {
		fl.log.Warn("play: unknown mode", "mode", name)
		return false
	}
	if changed {
		fl.interruptCurrent()
	}
	if r, isShuffled := reg.provider.(interface{ Reshuffle() }); isShuffled {
		r.Reshuffle()
	}
	info := reg.info
	_ = fl.sink.Push(ctx, fl.factory.NewMode(info.Name, info.SupportsLatency, info.IsRealTime, info.SupportsNextPrev, info.ClockPuller))
	return true
}

// advance moves the provider to its next track and starts it, the way a
// track naturally ending or an initial Play does.
func (fl *Filler) advance(ctx context.Context) {
	t, err := fl.currentProvider().MoveNext()
	if err != nil {
		// Nothing further to play (and no Repeater wrapping the cursor):
		// stay idle until the next command.
		fl.mu.Lock()
		fl.playing = false
		fl.mu.Unlock()
		return
	}
	fl.startTrack(ctx, t)
}

// startTrack claims a new generation for t and launches its read loop on
// its own goroutine, so Run's command loop never blocks on track I/O.
func (fl *Filler) startTrack(ctx context.Context, t Track) {
	gen := fl.generation.Add(1)
	go fl.pushTrack(ctx, t, gen)
}

// interruptCurrent bumps the generation counter, invalidating any in-flight
// pushTrack, and closes the current reader so a blocked Read fails
// promptly instead of running to its own EOF.
func (fl *Filler) interruptCurrent() {
	fl.generation.Add(1)
	fl.mu.Lock()
	r := fl.curReader
	fl.curReader = nil
	fl.curStreamID = 0
	fl.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

func (fl *Filler) pushTrack(ctx context.Context, t Track, gen uint64) {
	if err := fl.sink.Push(ctx, fl.factory.NewTrack(t.ID, t.URI, t.Metadata, true)); err != nil {
		return
	}
	if fl.opener == nil {
		return
	}
	r, total, err := fl.opener.Open(t.URI)
	if err != nil {
		fl.log.Error("filler failed to open track", "uri", t.URI, "error", err)
		return
	}

	if fl.generation.Load() != gen {
		r.Close()
		return
	}
	_, seekable := r.(io.Seeker)
	streamID := fl.ids.NextStreamId()

	fl.mu.Lock()
	fl.curReader, fl.curStreamID, fl.curTrackID = r, streamID, t.ID
	fl.mu.Unlock()
	defer func() {
		fl.mu.Lock()
		if fl.curStreamID == streamID {
			fl.curReader, fl.curStreamID = nil, 0
		}
		fl.mu.Unlock()
		r.Close()
	}()

	es := fl.factory.NewEncodedStream(t.URI, t.Metadata, uint64(total), streamID, seekable, false, false, fl)
	if err := fl.sink.Push(ctx, es); err != nil {
		return
	}

	buf := make([]byte, fillerChunkBytes)
	for {
		if fl.generation.Load() != gen {
			return
		}
		n, rerr := r.Read(buf)

		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if pushErr := fl.sink.Push(ctx, fl.factory.NewEncodedAudio(data)); pushErr != nil {
				return
			}
		}
		if rerr != nil {
			if fl.generation.Load() == gen {
				// Ran to the end of this track's own bytes without being
				// superseded by a command: let Run move on to the next
				// track the way a protocol returning would.
				select {
				case fl.done <- struct{}{}:
				default:
				}
			}
			return
		}
	}
}

// OkToPlay always answers for the stream currently owned by this Filler;
// every other stream id belongs to a track this Filler has since moved
// past.
func (fl *Filler) OkToPlay(streamID uint32) msg.PlayDecision {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.curStreamID == streamID {
		return msg.PlayYes
	}
	return msg.PlayNo
}

// TrySeek repositions the open reader for streamID and, on success, pushes
// a Flush so the pipeline's Seeker knows what to discard up to. ioMu
// serialises concurrent seeks; a Read already in flight is not waited for,
// so the bytes it returns may come from before the new position.
func (fl *Filler) TrySeek(streamID uint32, byteOffset uint64) (uint32, bool) {
	fl.mu.Lock()
	r, matches := fl.curReader, fl.curStreamID == streamID
	fl.mu.Unlock()
	if !matches || r == nil {
		return 0, false
	}
	seeker, ok := r.(io.Seeker)
	if !ok {
		return 0, false
	}

	fl.ioMu.Lock()
	_, err := seeker.Seek(int64(byteOffset), io.SeekStart)
	fl.ioMu.Unlock()
	if err != nil {
		return 0, false
	}

	flushID := fl.ids.NextFlushId()
	_ = fl.sink.Push(context.Background(), fl.factory.NewFlush(flushID))
	return flushID, true
}

// TryStop interrupts the read for streamID and pushes a Halt carrying a
// fresh id, the way a handler-initiated stop is expected to.
func (fl *Filler) TryStop(streamID uint32) (uint32, bool) {
	fl.mu.Lock()
	matches := fl.curStreamID == streamID
	fl.mu.Unlock()
	if !matches {
		return 0, false
	}
	haltID := fl.ids.NextFlushId()
	_ = fl.sink.Push(context.Background(), fl.factory.NewHalt(haltID))
	fl.interruptCurrent()
	return haltID, true
}

// NotifyStarving logs the pipeline's starvation notice; a real network
// source would use this to try harder to keep its buffer full.
func (fl *Filler) NotifyStarving(mode string, streamID uint32) {
	fl.log.Warn("stream starving", "mode", mode, "streamId", streamID)
}

package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// Config bounds and tunes a Pipeline.
type Config struct {
	EncodedReservoirBytes   int64
	DecodedReservoirJiffies int64
	GorgeSizeJiffies        int64
	RampDurationJiffies     uint64
	StarvationLowMs         int64
	StarvationNormalMs      int64
}

// Pipeline wires the full staged chain and exposes
// the handful of operations a higher-level player needs: Play/Pause/Stop
// semantics flow through Stopper, Seek through Seeker, and Pull drains the
// finished Playable/Halt/Quit stream for the driver.
type Pipeline struct {
	log *slog.Logger
	cfg Config

	factory *msg.Factory
	ids     *IdManager
	flushes *FlushIDProvider

	encodedReservoir *Reservoir
	container        *Container
	codecController  *CodecController
	aggregator       *Aggregator
	decodedReservoir *Reservoir
	seeker           *Seeker
	delayUser        *VariableDelay
	skipper          *Skipper
	waiter           *Waiter
	stopper          *Stopper
	delaySource      *VariableDelay
	gorger           *Gorger
	ramper           *Ramper
	starvation       *StarvationMonitor
	muter            *Muter
	reporter         *Reporter
	splitter         *Splitter
	pruner           *Pruner
	preDriver        *PreDriver

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New builds a Pipeline from its component parts. codecs and rawPCM come
// from package codec; strippers from package codec's container-format
// recognisers; observers may also be added later with AddObserver.
func New(log *slog.Logger, cfg Config, factory *msg.Factory, rawPCM Codec, codecs []Codec, strippers []ContainerStripper, observers ...Observer) *Pipeline {
	// Session correlation id for log aggregation across restarts; the
	// track/stream/flush ids stay small dense integers.
	log = log.With("session", uuid.NewString())
	p := &Pipeline{
		log:     log,
		cfg:     cfg,
		factory: factory,
		ids:     NewIdManager(),
		flushes: NewFlushIDProvider(),
	}

	p.encodedReservoir = NewReservoir(cfg.EncodedReservoirBytes, EncodedWeight)
	p.container = NewContainer(p.encodedReservoir, strippers...)

	codecOut := newBridge(64)
	p.codecController = NewCodecController(log, p.container, codecOut, factory, p.flushes, rawPCM, codecs...)

	p.decodedReservoir = NewReservoir(cfg.DecodedReservoirJiffies, DecodedWeight)
	p.aggregator = NewAggregator(codecOut, factory)
	// Bridge the codec controller's push output into the decoded reservoir
	// so backpressure is still governed by the reservoir's semaphore.
	go bridgeToReservoir(p.aggregator, p.decodedReservoir)

	p.seeker = NewSeeker(p.decodedReservoir, p.codecController, cfg.RampDurationJiffies)
	p.delayUser = NewVariableDelay(p.seeker, factory)
	p.skipper = NewSkipper(p.delayUser, cfg.RampDurationJiffies)
	p.waiter = NewWaiter(p.skipper, cfg.RampDurationJiffies, func(waiting bool) {
		state := StatePlaying
		if waiting {
			state = StateWaiting
		}
		for _, o := range observers {
			o.NotifyPipelineState(state)
		}
	})
	p.stopper = NewStopper(p.waiter, factory, cfg.RampDurationJiffies)
	p.delaySource = NewVariableDelay(p.stopper, factory)

	gorgeOut := newBridge(64)
	p.gorger = NewGorger(p.delaySource, gorgeOut, cfg.GorgeSizeJiffies)

	p.ramper = NewRamper(gorgeOut, cfg.RampDurationJiffies)

	starveOut := newBridge(64)
	p.starvation = NewStarvationMonitor(log, p.ramper, starveOut, factory, p.decodedReservoir,
		LowThresholdFromMs(cfg.StarvationLowMs), NormalThresholdFromMs(cfg.StarvationNormalMs), cfg.RampDurationJiffies, observers...)

	p.muter = NewMuter(starveOut, cfg.RampDurationJiffies)
	p.reporter = NewReporter(p.muter, observers...)
	p.splitter = NewSplitter(p.reporter, nil)
	p.pruner = NewPruner(p.splitter)
	p.preDriver = NewPreDriver(p.pruner, factory)

	return p
}

// clockPullerNotifyEveryJiffies is how often, in consumed jiffies, the
// decoded reservoir reports its fill to an attached clock puller.
const clockPullerNotifyEveryJiffies = 20 * 56448 // ~20ms worth, jiffies.PerMs without importing jiffies here

func bridgeToReservoir(src Supply, dst *Reservoir) {
	sink := dst.AsSink()
	for {
		m := src.Pull()
		if m == nil {
			return
		}
		if mode, ok := m.(*msg.Mode); ok && mode.ClockPuller != nil {
			dst.SetClockPuller(mode.ClockPuller, clockPullerNotifyEveryJiffies)
		}
		sink.Push(m)
		if _, ok := m.(*msg.Quit); ok {
			return
		}
	}
}

// Start launches the active elements' goroutines under an errgroup so Quit
// can wait for clean shutdown.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	g, _ := errgroup.WithContext(ctx)
	p.group = g
	g.Go(func() error { p.codecController.Run(); return nil })
	g.Go(func() error { p.gorger.Run(); return nil })
	g.Go(func() error { p.starvation.Run(); return nil })
}

// Quit stops all active elements by pushing a Quit message through the
// encoded reservoir and waiting for the worker goroutines to drain.
func (p *Pipeline) Quit() error {
	// Wake the starvation monitor if it's paused buffering, so the Quit
	// message below is guaranteed to reach its forward loop instead of
	// waiting on a reservoir nothing is pulling from.
	p.starvation.Close()
	_ = p.encodedReservoir.Push(context.Background(), p.factory.NewQuit())
	if p.cancel != nil {
		defer p.cancel()
	}
	if p.group != nil {
		return p.group.Wait()
	}
	return nil
}

// Pull drains the fully-processed stream for the driver.
func (p *Pipeline) Pull() msg.Message {
	return p.preDriver.Pull()
}

// Push feeds an upstream message (Track, EncodedStream, EncodedAudio, Mode,
// ...) into the pipeline. This is how a Filler/UriProvider-driven source
// supplies the pipeline.
func (p *Pipeline) Push(ctx context.Context, m msg.Message) error {
	if es, ok := m.(*msg.EncodedStream); ok {
		// Record the stream as active before it can possibly race a
		// DecodedStream back through OkToPlay.
		p.ids.AddStream(0, es.StreamID, true)
	}
	return p.encodedReservoir.Push(ctx, m)
}

// Play resumes playback from a halted or paused state.
func (p *Pipeline) Play() {
	p.stopper.Start()
}

// Pause ramps down to silence and halts, invoking done once complete.
func (p *Pipeline) Pause(done func()) {
	p.stopper.BeginHalt(done)
}

// Stop halts immediately (after a ramp) and flushes the pipeline of
// whatever belonged to the stopped stream.
func (p *Pipeline) Stop(flushID uint32, done func()) {
	p.stopper.BeginHalt(func() {
		p.stopper.BeginFlush(flushID)
		if done != nil {
			done()
		}
	})
}

// RemoveCurrentStream ramps the playing stream down, discards the rest of
// it and ramps back up on the next stream, for skip-to-next without an
// audible gap. trackID and streamID are recorded but not compared against
// the audio that follows.
func (p *Pipeline) RemoveCurrentStream(trackID, streamID uint32, done func()) {
	p.stopper.RemoveCurrentStream(trackID, streamID, done)
}

// SkipCurrentStream ramps the active stream down, swallows its remainder
// via the handler's TryStop flush, and ramps back up on the next stream.
func (p *Pipeline) SkipCurrentStream() {
	p.skipper.RemoveCurrentStream()
}

// Wait pauses delivery pending the identified Flush, ramped on both edges.
func (p *Pipeline) Wait(flushID uint32) {
	p.waiter.Wait(flushID)
}

// Seek requests the active stream's handler reposition to byteOffset.
func (p *Pipeline) Seek(handler msg.StreamHandler, streamID uint32, byteOffset uint64) error {
	return p.seeker.Seek(handler, streamID, byteOffset)
}

// AddObserver registers an Observer with the Reporter.
func (p *Pipeline) AddObserver(o Observer) {
	p.reporter.AddObserver(o)
}

// SetDelay sets the user-configurable multiroom delay.
func (p *Pipeline) SetDelay(jiffies uint64) {
	p.delayUser.SetDelay(jiffies)
}

// SetMuted mutes/unmutes output, ramped so the transition is inaudible as a
// click.
func (p *Pipeline) SetMuted(muted bool) {
	p.muter.SetMuted(muted)
}

// NextFlushId allocates a fresh flush correlator id.
func (p *Pipeline) NextFlushId() uint32 {
	return p.flushes.NextFlushId()
}

// NextTrackId allocates a fresh track id.
func (p *Pipeline) NextTrackId() uint32 {
	return p.ids.NextTrackId()
}

// NextStreamId allocates a fresh stream id.
func (p *Pipeline) NextStreamId() uint32 {
	return p.ids.NextStreamId()
}

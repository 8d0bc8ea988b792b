package msg

// FactoryParams sizes each variant's pool.
type FactoryParams struct {
	Mode              int
	Track             int
	Drain             int
	Delay             int
	EncodedStream     int
	EncodedAudio      int
	MetaText          int
	StreamInterrupted int
	Wait              int
	Halt              int
	Flush             int
	DecodedStream     int
	BitRate           int
	AudioPcm          int
	Silence           int
	Playable          int
	Quit              int
}

// DefaultFactoryParams returns sane pool sizes for a single-stream pipeline.
func DefaultFactoryParams() FactoryParams {
	return FactoryParams{
		Mode:              20,
		Track:             20,
		Drain:             4,
		Delay:             8,
		EncodedStream:     8,
		EncodedAudio:      64,
		MetaText:          20,
		StreamInterrupted: 4,
		Wait:              16,
		Halt:              20,
		Flush:             16,
		DecodedStream:     8,
		BitRate:           8,
		AudioPcm:          400,
		Silence:           410,
		Playable:          10,
		Quit:              1,
	}
}

// Factory is the only way elements should allocate Message values: it draws
// each variant from a dedicated pool and seeds its refcount to 1.
type Factory struct {
	mode              *Pool[Mode]
	track             *Pool[Track]
	drain             *Pool[Drain]
	delay             *Pool[Delay]
	encodedStream     *Pool[EncodedStream]
	encodedAudio      *Pool[EncodedAudio]
	metaText          *Pool[MetaText]
	streamInterrupted *Pool[StreamInterrupted]
	wait              *Pool[Wait]
	halt              *Pool[Halt]
	flush             *Pool[Flush]
	decodedStream     *Pool[DecodedStream]
	bitRate           *Pool[BitRate]
	audioPcm          *Pool[AudioPcm]
	silence           *Pool[Silence]
	playable          *Pool[Playable]
	quit              *Pool[Quit]
}

// NewFactory builds a Factory with one pool per variant, preallocated per p.
func NewFactory(p FactoryParams) *Factory {
	f := &Factory{}
	f.mode = NewPool(p.Mode, func() *Mode { return &Mode{} }, func(m *Mode) { *m = Mode{} })
	f.track = NewPool(p.Track, func() *Track { return &Track{} }, func(m *Track) { *m = Track{} })
	f.drain = NewPool(p.Drain, func() *Drain { return &Drain{} }, func(m *Drain) { *m = Drain{} })
	f.delay = NewPool(p.Delay, func() *Delay { return &Delay{} }, func(m *Delay) { *m = Delay{} })
	f.encodedStream = NewPool(p.EncodedStream, func() *EncodedStream { return &EncodedStream{} }, func(m *EncodedStream) { *m = EncodedStream{} })
	f.encodedAudio = NewPool(p.EncodedAudio, func() *EncodedAudio { return &EncodedAudio{} }, func(m *EncodedAudio) { m.Data = nil })
	f.metaText = NewPool(p.MetaText, func() *MetaText { return &MetaText{} }, func(m *MetaText) { *m = MetaText{} })
	f.streamInterrupted = NewPool(p.StreamInterrupted, func() *StreamInterrupted { return &StreamInterrupted{} }, func(m *StreamInterrupted) {})
	f.wait = NewPool(p.Wait, func() *Wait { return &Wait{} }, func(m *Wait) {})
	f.halt = NewPool(p.Halt, func() *Halt { return &Halt{} }, func(m *Halt) { *m = Halt{} })
	f.flush = NewPool(p.Flush, func() *Flush { return &Flush{} }, func(m *Flush) { *m = Flush{} })
	f.decodedStream = NewPool(p.DecodedStream, func() *DecodedStream { return &DecodedStream{} }, func(m *DecodedStream) { *m = DecodedStream{} })
	f.bitRate = NewPool(p.BitRate, func() *BitRate { return &BitRate{} }, func(m *BitRate) { *m = BitRate{} })
	f.audioPcm = NewPool(p.AudioPcm, func() *AudioPcm { return &AudioPcm{} }, func(m *AudioPcm) { m.Samples = nil; m.Ramp = Ramp{} })
	f.silence = NewPool(p.Silence, func() *Silence { return &Silence{} }, func(m *Silence) { m.Ramp = Ramp{} })
	f.playable = NewPool(p.Playable, func() *Playable { return &Playable{} }, func(m *Playable) { m.Samples = nil })
	f.quit = NewPool(p.Quit, func() *Quit { return &Quit{} }, func(m *Quit) {})
	return f
}

func (f *Factory) NewMode(name string, supportsLatency, isRealTime, supportsNextPrev bool, cp ClockPuller) *Mode {
	m := f.mode.get()
	m.init(func() { f.mode.put(m) })
	m.Name, m.SupportsLatency, m.IsRealTime, m.SupportsNextPrev, m.ClockPuller = name, supportsLatency, isRealTime, supportsNextPrev, cp
	return m
}

func (f *Factory) NewTrack(id uint32, uri, metadata string, startOfStream bool) *Track {
	m := f.track.get()
	m.init(func() { f.track.put(m) })
	m.ID, m.URI, m.Metadata, m.StartOfStream = id, uri, metadata, startOfStream
	return m
}

func (f *Factory) NewDrain(done func()) *Drain {
	m := f.drain.get()
	m.init(func() { f.drain.put(m) })
	m.Done = done
	return m
}

func (f *Factory) NewDelay(jiffies uint64) *Delay {
	m := f.delay.get()
	m.init(func() { f.delay.put(m) })
	m.Jiffies = jiffies
	return m
}

func (f *Factory) NewEncodedStream(uri, metaText string, totalBytes uint64, streamID uint32, seekable, live, rawPCM bool, h StreamHandler) *EncodedStream {
	m := f.encodedStream.get()
	m.init(func() { f.encodedStream.put(m) })
	m.URI, m.MetaText, m.TotalBytes, m.StreamID, m.Seekable, m.Live, m.RawPCM, m.Handler = uri, metaText, totalBytes, streamID, seekable, live, rawPCM, h
	return m
}

func (f *Factory) NewEncodedAudio(data []byte) *EncodedAudio {
	m := f.encodedAudio.get()
	m.init(func() { f.encodedAudio.put(m) })
	m.Data = data
	return m
}

func (f *Factory) NewMetaText(text string) *MetaText {
	m := f.metaText.get()
	m.init(func() { f.metaText.put(m) })
	m.Text = text
	return m
}

func (f *Factory) NewStreamInterrupted() *StreamInterrupted {
	m := f.streamInterrupted.get()
	m.init(func() { f.streamInterrupted.put(m) })
	return m
}

func (f *Factory) NewWait() *Wait {
	m := f.wait.get()
	m.init(func() { f.wait.put(m) })
	return m
}

func (f *Factory) NewHalt(id uint32) *Halt {
	m := f.halt.get()
	m.init(func() { f.halt.put(m) })
	m.ID = id
	return m
}

func (f *Factory) NewFlush(id uint32) *Flush {
	m := f.flush.get()
	m.init(func() { f.flush.put(m) })
	m.ID = id
	return m
}

func (f *Factory) NewDecodedStream(streamID, bitRate, bitDepth, sampleRate, channels uint32, codecName string, trackLengthJiffies, sampleStart uint64, lossless, seekable, live bool, h StreamHandler) *DecodedStream {
	m := f.decodedStream.get()
	m.init(func() { f.decodedStream.put(m) })
	m.StreamID, m.BitRate, m.BitDepth, m.SampleRate, m.Channels = streamID, bitRate, bitDepth, sampleRate, channels
	m.CodecName, m.TrackLengthJiffies, m.SampleStart = codecName, trackLengthJiffies, sampleStart
	m.Lossless, m.Seekable, m.Live, m.Handler = lossless, seekable, live, h
	return m
}

func (f *Factory) NewBitRate(bitrate uint32) *BitRate {
	m := f.bitRate.get()
	m.init(func() { f.bitRate.put(m) })
	m.Bitrate = bitrate
	return m
}

func (f *Factory) NewAudioPcm(samples []int16, frames int, sampleRate, bitDepth, channels uint32, trackOffset uint64, r Ramp) *AudioPcm {
	m := f.audioPcm.get()
	m.init(func() { f.audioPcm.put(m) })
	m.Samples, m.Frames, m.SampleRate, m.BitDepth, m.Channels, m.TrackOffset, m.Ramp = samples, frames, sampleRate, bitDepth, channels, trackOffset, r
	return m
}

func (f *Factory) NewSilence(frames int, sampleRate, bitDepth, channels uint32, r Ramp) *Silence {
	m := f.silence.get()
	m.init(func() { f.silence.put(m) })
	m.Frames, m.SampleRate, m.BitDepth, m.Channels, m.Ramp = frames, sampleRate, bitDepth, channels, r
	return m
}

func (f *Factory) NewPlayable(samples []int16, frames int, sampleRate, channels uint32) *Playable {
	m := f.playable.get()
	m.init(func() { f.playable.put(m) })
	m.Samples, m.Frames, m.SampleRate, m.Channels = samples, frames, sampleRate, channels
	return m
}

func (f *Factory) NewQuit() *Quit {
	m := f.quit.get()
	m.init(func() { f.quit.put(m) })
	return m
}

// SplitAudioPcm splits an AudioPcm at frame offset atFrames into two
// messages whose ramps are interpolated at the boundary. The original message is released; callers receive two new,
// independently ref-counted messages.
func (f *Factory) SplitAudioPcm(m *AudioPcm, atFrames int) (head, tail *AudioPcm) {
	if atFrames <= 0 || atFrames >= m.Frames {
		return m, nil
	}
	channels := int(m.Channels)
	headSamples := append([]int16(nil), m.Samples[:atFrames*channels]...)
	tailSamples := append([]int16(nil), m.Samples[atFrames*channels:]...)
	totalJiffies := m.Jiffies()
	splitJiffies := samplesToJiffies(uint64(atFrames), m.SampleRate)
	rHead, rTail := m.Ramp.SplitAt(totalJiffies, splitJiffies)
	head = f.NewAudioPcm(headSamples, atFrames, m.SampleRate, m.BitDepth, m.Channels, m.TrackOffset, rHead)
	tailOffset := m.TrackOffset + splitJiffies
	tail = f.NewAudioPcm(tailSamples, m.Frames-atFrames, m.SampleRate, m.BitDepth, m.Channels, tailOffset, rTail)
	m.Release()
	return head, tail
}

// SplitSilence splits a Silence message the same way SplitAudioPcm does.
func (f *Factory) SplitSilence(m *Silence, atFrames int) (head, tail *Silence) {
	if atFrames <= 0 || atFrames >= m.Frames {
		return m, nil
	}
	totalJiffies := m.Jiffies()
	splitJiffies := samplesToJiffies(uint64(atFrames), m.SampleRate)
	rHead, rTail := m.Ramp.SplitAt(totalJiffies, splitJiffies)
	head = f.NewSilence(atFrames, m.SampleRate, m.BitDepth, m.Channels, rHead)
	tail = f.NewSilence(m.Frames-atFrames, m.SampleRate, m.BitDepth, m.Channels, rTail)
	m.Release()
	return head, tail
}

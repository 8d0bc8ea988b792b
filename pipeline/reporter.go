package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// Reporter watches messages flow past and forwards state changes to
// registered Observers. It never blocks or mutates the
// stream; every message it sees is returned from Pull unchanged.
type Reporter struct {
	upstream  Supply
	observers []Observer

	currentRate    uint32
	samplesSeen    uint64
	elapsedSeconds uint64
}

func NewReporter(upstream Supply, observers ...Observer) *Reporter {
	return &Reporter{upstream: upstream, observers: observers}
}

func (r *Reporter) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Reporter) Pull() msg.Message {
	m := r.upstream.Pull()
	switch v := m.(type) {
	case *msg.Mode:
		r.notifyMode(v.Name)
	case *msg.Track:
		r.notifyTrack(v.URI, v.Metadata, v.ID)
	case *msg.MetaText:
		r.notifyMetaText(v.Text)
	case *msg.DecodedStream:
		r.currentRate = v.SampleRate
		r.samplesSeen = 0
		r.elapsedSeconds = 0
		r.notifyStreamInfo(StreamInfo{
			StreamID: v.StreamID, BitRate: v.BitRate, BitDepth: v.BitDepth,
			SampleRate: v.SampleRate, Channels: v.Channels, CodecName: v.CodecName,
			Lossless: v.Lossless, Seekable: v.Seekable, Live: v.Live,
		})
	case *msg.AudioPcm:
		r.samplesSeen += uint64(v.Frames)
		r.notifyTimeIfWholeSecond()
	case *msg.Halt:
		r.notifyState(StatePaused)
	case *msg.Wait:
		r.notifyState(StateWaiting)
	}
	return m
}

func (r *Reporter) notifyTimeIfWholeSecond() {
	if r.currentRate == 0 {
		return
	}
	crossed := false
	for r.samplesSeen >= uint64(r.currentRate) {
		r.samplesSeen -= uint64(r.currentRate)
		r.elapsedSeconds++
		crossed = true
	}
	if !crossed {
		return
	}
	for _, o := range r.observers {
		o.NotifyTime(r.elapsedSeconds)
	}
}

func (r *Reporter) notifyMode(name string) {
	for _, o := range r.observers {
		o.NotifyMode(name)
	}
}

func (r *Reporter) notifyTrack(uri, metadata string, id uint32) {
	for _, o := range r.observers {
		o.NotifyTrack(uri, metadata, id)
	}
}

func (r *Reporter) notifyMetaText(text string) {
	for _, o := range r.observers {
		o.NotifyMetaText(text)
	}
}

func (r *Reporter) notifyStreamInfo(info StreamInfo) {
	for _, o := range r.observers {
		o.NotifyStreamInfo(info)
	}
}

func (r *Reporter) notifyState(s State) {
	for _, o := range r.observers {
		o.NotifyPipelineState(s)
	}
}

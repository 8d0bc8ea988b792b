package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// PreDriver is the final passive element before the driver: it converts
// every AudioPcm/Silence into a Playable (applying its ramp, if any) and
// returns every other message (Halt, Quit, Delay and anything else that
// reaches it) unchanged. It does not insert a Halt when a stream ends.
// A Drain barrier reaching this element means every message ahead of it has
// been delivered, so its completion callback is acknowledged here.
type PreDriver struct {
	upstream Supply
	factory  *msg.Factory
}

func NewPreDriver(upstream Supply, f *msg.Factory) *PreDriver {
	return &PreDriver{upstream: upstream, factory: f}
}

func (p *PreDriver) Pull() msg.Message {
	for {
		m := p.upstream.Pull()
		switch v := m.(type) {
		case *msg.AudioPcm:
			if v.Ramp.Enabled {
				v.Ramp.ApplyPCM16(v.Samples, v.Frames)
			}
			pl := p.factory.NewPlayable(v.Samples, v.Frames, v.SampleRate, v.Channels)
			v.Release()
			return pl
		case *msg.Silence:
			samples := make([]int16, v.Frames*int(v.Channels))
			if v.Ramp.Enabled {
				v.Ramp.ApplyPCM16(samples, v.Frames)
			}
			pl := p.factory.NewPlayable(samples, v.Frames, v.SampleRate, v.Channels)
			v.Release()
			return pl
		case *msg.Drain:
			if v.Done != nil {
				v.Done()
			}
			v.Release()
			continue
		default:
			return m
		}
	}
}
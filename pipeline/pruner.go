package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// Pruner removes messages that carry no useful information once they reach
// the tail of the pipeline: duplicate MetaText with identical text, and
// zero-frame audio blocks left behind by a split at an exact boundary.
type Pruner struct {
	upstream    Supply
	lastMeta    string
	haveLastMeta bool
}

func NewPruner(upstream Supply) *Pruner {
	return &Pruner{upstream: upstream}
}

func (p *Pruner) Pull() msg.Message {
	for {
		m := p.upstream.Pull()
		switch v := m.(type) {
		case *msg.MetaText:
			if p.haveLastMeta && v.Text == p.lastMeta {
				v.Release()
				continue
			}
			p.lastMeta = v.Text
			p.haveLastMeta = true
			return v
		case *msg.AudioPcm:
			if v.Frames == 0 {
				v.Release()
				continue
			}
			return v
		case *msg.Silence:
			if v.Frames == 0 {
				v.Release()
				continue
			}
			return v
		default:
			return m
		}
	}
}

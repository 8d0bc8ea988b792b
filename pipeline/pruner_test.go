package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// A duplicate consecutive MetaText (same text) is
// dropped rather than forwarded a second time.
func TestPrunerDropsDuplicateMetaText(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	first := f.NewMetaText("same")
	second := f.NewMetaText("same")
	third := f.NewMetaText("different")
	upstream := &fakeSupply{msgs: []msg.Message{first, second, third}}
	p := NewPruner(upstream)

	out := p.Pull()
	assert.Same(t, first, out)
	out = p.Pull()
	assert.Same(t, third, out, "the duplicate should have been skipped")
}

// Zero-frame AudioPcm/Silence blocks are dropped entirely.
func TestPrunerDropsZeroFrameAudio(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)
	empty := f.NewAudioPcm(nil, 0, rate, 16, 1, 0, msg.Ramp{})
	kept := pcmOfFrames(f, 10, rate)
	upstream := &fakeSupply{msgs: []msg.Message{empty, kept}}
	p := NewPruner(upstream)

	out := p.Pull()
	assert.Same(t, kept, out)
}

func TestPrunerDropsZeroFrameSilence(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	const rate = uint32(44100)
	empty := f.NewSilence(0, rate, 16, 1, msg.Ramp{})
	kept := f.NewSilence(10, rate, 16, 1, msg.Ramp{})
	upstream := &fakeSupply{msgs: []msg.Message{empty, kept}}
	p := NewPruner(upstream)

	out := p.Pull()
	assert.Same(t, kept, out)
}

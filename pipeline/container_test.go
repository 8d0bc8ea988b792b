package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linn-oss/ohmediapipeline/msg"
)

// fakeStripper recognises a fixed-length magic prefix and asks for it to be
// skipped.
type fakeStripper struct {
	name   string
	magic  string
}

func (s *fakeStripper) Name() string { return s.name }
func (s *fakeStripper) TrySkip(lookahead []byte) int {
	if len(lookahead) >= len(s.magic) && string(lookahead[:len(s.magic)]) == s.magic {
		return len(s.magic)
	}
	return 0
}

// A recognised container's header bytes are
// stripped from the stream's first audio payload before the codec sees it.
func TestContainerStripsRecognisedHeader(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())

	es := f.NewEncodedStream("x", "", 0, 1, false, false, false, nil)
	audio := f.NewEncodedAudio([]byte("HDR!RIFFxxxx"))
	upstream := &fakeSupply{msgs: []msg.Message{es, audio}}
	c := NewContainer(upstream, &fakeStripper{name: "hdr", magic: "HDR!"})

	got := c.Pull()
	assert.Same(t, es, got)

	got = c.Pull()
	require.Equal(t, msg.KindEncodedAudio, got.Kind())
	ea := got.(*msg.EncodedAudio)
	assert.Equal(t, "RIFFxxxx", string(ea.Data))
}

// With no stripper recognising the lookahead, bytes pass through untouched.
func TestContainerPassesThroughUnrecognised(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())

	es := f.NewEncodedStream("x", "", 0, 1, false, false, false, nil)
	audio := f.NewEncodedAudio([]byte("RIFFxxxx"))
	upstream := &fakeSupply{msgs: []msg.Message{es, audio}}
	c := NewContainer(upstream, &fakeStripper{name: "hdr", magic: "HDR!"})

	c.Pull()
	got := c.Pull()
	ea := got.(*msg.EncodedAudio)
	assert.Equal(t, "RIFFxxxx", string(ea.Data))
}

// A non-EncodedStream message (e.g. a bare Mode) isn't touched at all.
func TestContainerIgnoresNonStreamMessages(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())
	mode := f.NewMode("Playlist", false, false, true, nil)
	upstream := &fakeSupply{msgs: []msg.Message{mode}}
	c := NewContainer(upstream, &fakeStripper{name: "hdr", magic: "HDR!"})

	got := c.Pull()
	assert.Same(t, mode, got)
}

// A control message arriving mid-lookahead interrupts collection and is
// replayed after the (possibly stripped) audio gathered so far.
func TestContainerReplaysInterruptingControlMessage(t *testing.T) {
	f := msg.NewFactory(msg.DefaultFactoryParams())

	es := f.NewEncodedStream("x", "", 0, 1, false, false, false, nil)
	audio := f.NewEncodedAudio([]byte("HDR!abc"))
	halt := f.NewHalt(1)
	upstream := &fakeSupply{msgs: []msg.Message{es, audio, halt}}
	c := NewContainer(upstream, &fakeStripper{name: "hdr", magic: "HDR!"})

	c.Pull()
	got := c.Pull()
	ea := got.(*msg.EncodedAudio)
	assert.Equal(t, "abc", string(ea.Data))

	got = c.Pull()
	assert.Same(t, halt, got)
}

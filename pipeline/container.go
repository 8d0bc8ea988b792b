package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// ContainerStripper strips enclosing framing (ID3v2 headers and the like)
// from the front of an encoded stream before it reaches the codec
// controller. Recognisers are tried in order on
// the lookahead bytes collected at the start of each stream.
type ContainerStripper interface {
	// Name identifies the container format for logging.
	Name() string
	// TrySkip inspects the lookahead and returns how many leading bytes to
	// discard, or 0 if this container format isn't present.
	TrySkip(lookahead []byte) (skip int)
}

// Container is a passive element: it sits between the EncodedStream reservoir and the
// CodecController, buffering enough EncodedAudio lookahead at the start of
// each EncodedStream to let each stripper inspect it; other messages pass
// through untouched.
type Container struct {
	upstream  Supply
	strippers []ContainerStripper
	replay    []msg.Message
}

// NewContainer wires a Container in front of the given strippers, tried in
// the order given.
func NewContainer(upstream Supply, strippers ...ContainerStripper) *Container {
	return &Container{upstream: upstream, strippers: strippers}
}

const containerLookahead = 4096

// Pull returns the next message with any leading container framing removed
// from the first EncodedAudio payload of a stream.
func (c *Container) Pull() msg.Message {
	if len(c.replay) > 0 {
		m := c.replay[0]
		c.replay = c.replay[1:]
		return m
	}
	m := c.upstream.Pull()
	es, ok := m.(*msg.EncodedStream)
	if !ok {
		return m
	}
	c.stripContainer(es)
	return es
}

// stripContainer peeks ahead into the stream's first audio payload and, if
// a registered container format is recognised, discards its header bytes
// in place. Kept deliberately simple: the container stage only
// needs to remove known framing, not reassemble it.
func (c *Container) stripContainer(es *msg.EncodedStream) {
	if len(c.strippers) == 0 {
		return
	}
	buf := make([]byte, 0, containerLookahead)
	var pending []*msg.EncodedAudio
	var interrupted msg.Message
	for len(buf) < containerLookahead {
		m := c.upstream.Pull()
		ea, ok := m.(*msg.EncodedAudio)
		if !ok {
			// Non-audio control message interrupts lookahead; stop early and
			// replay it after the (possibly stripped) audio collected so far.
			interrupted = m
			break
		}
		buf = append(buf, ea.Data...)
		pending = append(pending, ea)
	}
	skip := 0
	for _, s := range c.strippers {
		if n := s.TrySkip(buf); n > 0 {
			skip = n
			break
		}
	}
	if skip > 0 && skip <= len(buf) {
		buf = buf[skip:]
	}
	c.replay = append(c.replay, c.rebuild(buf, pending)...)
	if interrupted != nil {
		c.replay = append(c.replay, interrupted)
	}
}

// rebuild re-chunks a stripped lookahead buffer back into EncodedAudio
// messages sized like the originals it replaces.
func (c *Container) rebuild(buf []byte, originals []*msg.EncodedAudio) []msg.Message {
	out := make([]msg.Message, 0, len(originals))
	offset := 0
	for _, ea := range originals {
		if ea == nil {
			continue
		}
		n := len(ea.Data)
		if offset >= len(buf) {
			ea.Release()
			continue
		}
		end := offset + n
		if end > len(buf) {
			end = len(buf)
		}
		ea.Data = append([]byte(nil), buf[offset:end]...)
		offset = end
		out = append(out, ea)
	}
	return out
}

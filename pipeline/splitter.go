package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// Splitter tees every message to a second sink in addition to the main
// downstream path, retaining the message so both branches own a reference.
// A nil tee passes everything straight through.
type Splitter struct {
	upstream Supply
	tee      MessageSink
}

func NewSplitter(upstream Supply, tee MessageSink) *Splitter {
	return &Splitter{upstream: upstream, tee: tee}
}

func (s *Splitter) Pull() msg.Message {
	m := s.upstream.Pull()
	if s.tee != nil {
		m.Retain()
		s.tee.Push(m)
	}
	return m
}

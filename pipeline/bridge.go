package pipeline

import "github.com/linn-oss/ohmediapipeline/msg"

// bridge connects a push-driven active element (one with its own goroutine
// calling Push) to a pull-driven passive element downstream of it. It is a
// buffered channel of fixed capacity (Push blocks while it is full) rather
// than a Reservoir because backpressure for
// encoded/decoded audio is already enforced upstream of the active element
// by the real Reservoir it reads from; the bridge only needs to hand
// messages across a goroutine boundary in order.
type bridge struct {
	ch chan msg.Message
}

func newBridge(capacity int) *bridge {
	return &bridge{ch: make(chan msg.Message, capacity)}
}

func (b *bridge) Push(m msg.Message) { b.ch <- m }

func (b *bridge) Pull() msg.Message { return <-b.ch }

// Package broker wraps github.com/whyrusleeping/pubsub's topic-based
// pub/sub channel broker behind the callback-subscription shape the
// serdes and mirror layers use throughout: "subscribe a topic to a
// handler function" rather than "read a channel in a loop", matching
// the original host software's `pypubsub`-style `subscribe(topic, cb)`
// API (see original_source host_device_state_serdes.py /
// ui_dict_viewer_aggregator.py).
package broker

import (
	"sync"

	pubsub "github.com/whyrusleeping/pubsub"
)

// DefaultBufferSize is the per-subscriber channel depth passed to
// pubsub.New. A small buffer absorbs bursts without letting a slow
// subscriber block a publisher indefinitely.
const DefaultBufferSize = 32

// Broker is a topic-keyed publish/subscribe hub. All topics are
// dot-separated strings (e.g. "app.devices.node_00.command"); matching is
// exact, never hierarchical — callers that need a subtree publish to
// every concrete topic in it, matching spec.md's topic tree.
type Broker struct {
	ps *pubsub.PubSub

	mu        sync.Mutex
	listeners []*listener
	closed    bool
}

type listener struct {
	ch    chan interface{}
	topic string
	stop  chan struct{}
	done  chan struct{}
}

// New creates a Broker with the default per-subscriber buffer size.
func New() *Broker {
	return &Broker{ps: pubsub.New(DefaultBufferSize)}
}

// Publish sends msg to every subscriber of topic, blocking if a
// subscriber's channel is full.
func (b *Broker) Publish(topic string, msg interface{}) {
	b.ps.Pub(msg, topic)
}

// TryPublish sends msg to every subscriber of topic without blocking;
// a full subscriber channel silently misses the message. Used by hot
// paths (e.g. port-status ticks) that must never stall on a slow
// subscriber.
func (b *Broker) TryPublish(topic string, msg interface{}) {
	b.ps.TryPub(msg, topic)
}

// Subscribe returns a raw channel of every message published to topic.
// Callers that want to drain it themselves (e.g. a one-shot response
// wait) should call Unsubscribe when done.
func (b *Broker) Subscribe(topic string) chan interface{} {
	return b.ps.Sub(topic)
}

// SubscribeOnce returns a channel that receives at most one message
// published to topic, then is automatically unsubscribed — used for
// correlated request/response waits (e.g. a single file-chunk ack).
func (b *Broker) SubscribeOnce(topic string) chan interface{} {
	return b.ps.SubOnce(topic)
}

// Unsubscribe removes ch from topic and closes no further delivery to
// it (the channel itself is closed by the underlying pubsub library
// once all of its topics are unsubscribed).
func (b *Broker) Unsubscribe(ch chan interface{}, topic string) {
	b.ps.Unsub(ch, topic)
}

// OnTopic subscribes a callback to topic, invoking handler for every
// published message in its own goroutine until stop is closed. This is
// the primary subscription style used by serdes and mirror, mirroring
// the original software's `subscribe(topic, callback)` idiom.
func (b *Broker) OnTopic(topic string, stop <-chan struct{}, handler func(msg interface{})) {
	ch := b.ps.Sub(topic)
	l := &listener{ch: ch, topic: topic, stop: make(chan struct{}), done: make(chan struct{})}

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	go func() {
		defer close(l.done)
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg)
			case <-stop:
				b.ps.Unsub(ch, topic)
				return
			case <-l.stop:
				b.ps.Unsub(ch, topic)
				return
			}
		}
	}()
}

// Close shuts down every subscriber channel the broker owns. Safe to
// call once during teardown; further Publish/Subscribe calls are
// undefined after Close.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, l := range b.listeners {
		close(l.stop)
	}
	for _, l := range b.listeners {
		<-l.done
	}
	b.ps.Shutdown()
}

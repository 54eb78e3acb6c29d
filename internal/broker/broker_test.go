package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	ch := b.Subscribe("app.devices.node_00.state")
	b.Publish("app.devices.node_00.state", 42)

	select {
	case msg := <-ch:
		assert.Equal(t, 42, msg)
	case <-time.After(time.Second):
		t.Fatal("expected message, got none")
	}
}

func TestOnTopicDeliversUntilStop(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan interface{}, 4)
	stop := make(chan struct{})
	b.OnTopic("app.devices.node_00.debug", stop, func(msg interface{}) {
		received <- msg
	})

	b.Publish("app.devices.node_00.debug", "line one")
	select {
	case msg := <-received:
		assert.Equal(t, "line one", msg)
	case <-time.After(time.Second):
		t.Fatal("expected delivered message")
	}

	close(stop)
	time.Sleep(20 * time.Millisecond)
	// Publishing after stop should not panic or block.
	b.TryPublish("app.devices.node_00.debug", "line two")
}

func TestSubscribeOnceUnsubscribesAfterOneMessage(t *testing.T) {
	b := New()
	defer b.Close()

	ch := b.SubscribeOnce("app.devices.node_00.file_response")
	b.Publish("app.devices.node_00.file_response", []byte("chunk"))

	select {
	case msg := <-ch:
		require.Equal(t, []byte("chunk"), msg)
	case <-time.After(time.Second):
		t.Fatal("expected one message")
	}

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after single delivery")
}

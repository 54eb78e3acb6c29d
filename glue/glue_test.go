package glue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo-electronics/t0ve-hostlink/debugsink"
	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/mirror"
	"github.com/ayo-electronics/t0ve-hostlink/port"
	"github.com/ayo-electronics/t0ve-hostlink/record"
	"github.com/ayo-electronics/t0ve-hostlink/schema"
	"github.com/ayo-electronics/t0ve-hostlink/serdes"
)

// fakeDiscoverer stands in for the one in serdes/serdes_test.go; glue
// tests never exercise real wire traffic, only topic plumbing, so
// an unreachable discoverer (no candidates) is enough to keep the
// node's Port permanently disconnected.
type fakeDiscoverer struct{}

func (fakeDiscoverer) Enumerate() ([]port.Candidate, error) { return nil, nil }
func (fakeDiscoverer) Open(devicePath string, bufferSize int) (port.SerialHandle, error) {
	return nil, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *serdes.Serdes, *mirror.Mirror, *mirror.Mirror, *debugsink.Sink) {
	t.Helper()

	s, err := serdes.New(serdes.Config{
		NodeIndex:           "0",
		DefaultPollInterval: time.Hour,
		MaxPollInterval:     time.Hour,
		AckTimeout:          time.Hour,
		Broker:              broker.New(),
		PortConfig: port.Config{
			Discoverer:                 fakeDiscoverer{},
			SerialRegex:                ".*",
			SupervisorTickConnected:    time.Hour,
			SupervisorTickDisconnected: time.Hour,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	portMirror := mirror.New(mirror.Config{
		Reference:          DefaultPortState(),
		EditablePaths:      PortStateEditablePaths(),
		TopicRoot:          "app.ui.port.node_00",
		MaxPublishInterval: 2 * time.Millisecond,
		Broker:             broker.New(),
	})
	t.Cleanup(portMirror.Close)

	stateMirror := mirror.New(mirror.Config{
		Reference:          schema.DefaultAll(),
		TopicRoot:          "app.ui.state.node_00",
		MaxPublishInterval: 2 * time.Millisecond,
		Broker:             broker.New(),
	})
	t.Cleanup(stateMirror.Close)

	sink := debugsink.New(debugsink.Config{TopicRoot: "app.ui.debug.node_00", Broker: broker.New()})
	t.Cleanup(sink.Close)

	d := New(Config{
		Serdes:      s,
		PortMirror:  portMirror,
		StateMirror: stateMirror,
		DebugSink:   sink,
	})
	t.Cleanup(d.Close)

	return d, s, portMirror, stateMirror, sink
}

func TestLinkPortInfoForwardsSerdesStatusToMirror(t *testing.T) {
	_, s, portMirror, _, _ := newTestDispatcher(t)

	s.Broker().Publish(s.Root()+".port.status.port_name", "/dev/ttyUSB3")

	require.Eventually(t, func() bool {
		v, ok := portMirror.PullPath(record.Path{"status", "port_name"})
		return ok && v == "/dev/ttyUSB3"
	}, time.Second, 2*time.Millisecond)
}

func TestLinkPortInfoForwardsMirrorEntriesGetToSerdes(t *testing.T) {
	_, s, portMirror, _, _ := newTestDispatcher(t)

	sub := s.Broker().Subscribe(s.Root() + ".port.command.request_connect")
	defer s.Broker().Unsubscribe(sub, s.Root()+".port.command.request_connect")

	portMirror.Broker().Publish("app.ui.port.node_00.entries.get.command.request_connect", true)

	select {
	case msg := <-sub:
		assert.Equal(t, true, msg)
	case <-time.After(time.Second):
		t.Fatal("expected entries.get to forward onto serdes's port.command topic")
	}
}

func TestLinkNodeStateForwardsSerdesStatusToStateMirror(t *testing.T) {
	_, s, _, stateMirror, _ := newTestDispatcher(t)

	ns := schema.DefaultAll()
	ns["do_system_reset"] = true
	s.Broker().Publish(s.Root()+".status", ns)

	require.Eventually(t, func() bool {
		v, ok := stateMirror.PullPath(record.Path{"do_system_reset"})
		return ok && v == true
	}, time.Second, 2*time.Millisecond)
}

func TestLinkNodeStateForwardsMirrorSnapshotToSerdesCommand(t *testing.T) {
	_, s, _, stateMirror, _ := newTestDispatcher(t)

	sub := s.Broker().Subscribe(s.Root() + ".command")
	defer s.Broker().Unsubscribe(sub, s.Root()+".command")

	snapshot := stateMirror.Pull()
	stateMirror.Broker().Publish("app.ui.state.node_00.nested.get", snapshot)

	select {
	case msg := <-sub:
		cmd, ok := msg.(schema.NodeState)
		require.True(t, ok)
		assert.Equal(t, snapshot["magic_number"], cmd["magic_number"])
	case <-time.After(time.Second):
		t.Fatal("expected nested.get to forward onto serdes's command topic")
	}
}

// TestLinkNodeStateForwardsSoaEnableAsSequence guards against the
// nested.get snapshot corrupting a repeated field into an index-keyed
// map on its way back to the Serdes's command topic: soa_enable must
// still be a []any of the same length once it reaches
// schema.NodeState, or schema.Encode would wire-encode it as a keyed
// sub-record instead of a repeated field.
func TestLinkNodeStateForwardsSoaEnableAsSequence(t *testing.T) {
	_, s, _, stateMirror, _ := newTestDispatcher(t)

	sub := s.Broker().Subscribe(s.Root() + ".command")
	defer s.Broker().Unsubscribe(sub, s.Root()+".command")

	snapshot := stateMirror.Pull()
	stateMirror.Broker().Publish("app.ui.state.node_00.nested.get", snapshot)

	select {
	case msg := <-sub:
		cmd, ok := msg.(schema.NodeState)
		require.True(t, ok)
		hispeed, ok := cmd["hispeed"].(map[string]any)
		require.True(t, ok)
		command, ok := hispeed["command"].(map[string]any)
		require.True(t, ok)
		soaEnable, ok := command["soa_enable"].([]any)
		require.True(t, ok, "soa_enable must survive the round trip as []any, not an index-keyed map")
		assert.Len(t, soaEnable, 4)
	case <-time.After(time.Second):
		t.Fatal("expected nested.get to forward onto serdes's command topic")
	}
}

func TestLinkDebugInfoFormatsAndForwardsToSink(t *testing.T) {
	_, s, _, _, sink := newTestDispatcher(t)

	s.Broker().Publish(s.Root()+".debug.warn", "low voltage")

	require.Eventually(t, func() bool {
		return len(sink.Lines()) == 1
	}, time.Second, 2*time.Millisecond)

	line := sink.Lines()[0]
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "low voltage")
}

func TestLinkDebugTermCtrlClearsSinkOnReconnect(t *testing.T) {
	_, s, _, _, sink := newTestDispatcher(t)

	sink.Add("stale line from previous session")
	require.Len(t, sink.Lines(), 1)

	s.Broker().Publish(s.Root()+".port.status.connected", false)
	time.Sleep(10 * time.Millisecond)
	require.Len(t, sink.Lines(), 1, "no clear on the first (non-transition) observation")

	s.Broker().Publish(s.Root()+".port.status.connected", true)
	require.Eventually(t, func() bool {
		return len(sink.Lines()) == 0
	}, time.Second, 2*time.Millisecond)
}

func TestLinkDebugTermCtrlDoesNotClearOnFirstConnectObservation(t *testing.T) {
	_, s, _, _, sink := newTestDispatcher(t)

	sink.Add("kept line")
	s.Broker().Publish(s.Root()+".port.status.connected", true)
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, sink.Lines(), 1, "a connected=true with no prior observation is not a transition")
}

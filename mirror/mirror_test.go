package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/record"
)

func referenceRecord() map[string]any {
	return map[string]any{
		"comms": map[string]any{
			"enable":  false,
			"retries": int64(0),
		},
		"label": "node_00",
	}
}

func newTestMirror(t *testing.T, editable []record.Path) (*Mirror, *broker.Broker) {
	t.Helper()
	b := broker.New()
	m := New(Config{
		Reference:          referenceRecord(),
		EditablePaths:      editable,
		TopicRoot:          "app.ui",
		MaxPublishInterval: 5 * time.Millisecond,
		Broker:             b,
	})
	t.Cleanup(m.Close)
	return m, b
}

func TestNewPublishesInitialSnapshotToFrontend(t *testing.T) {
	b := broker.New()
	sub := b.Subscribe("app.ui.frontend.set.comms.enable")
	defer b.Unsubscribe(sub, "app.ui.frontend.set.comms.enable")

	m := New(Config{Reference: referenceRecord(), TopicRoot: "app.ui", Broker: b})
	defer m.Close()

	select {
	case msg := <-sub:
		assert.Equal(t, false, msg)
	case <-time.After(time.Second):
		t.Fatal("expected initial frontend.set publish")
	}
}

func TestPushPathUpdatesAndPublishesOnChange(t *testing.T) {
	m, b := newTestMirror(t, nil)

	sub := b.Subscribe("app.ui.frontend.set.comms.retries")
	defer b.Unsubscribe(sub, "app.ui.frontend.set.comms.retries")

	m.PushPath(record.Path{"comms", "retries"}, int64(7))

	select {
	case msg := <-sub:
		assert.Equal(t, int64(7), msg)
	case <-time.After(time.Second):
		t.Fatal("expected frontend.set publish on accepted push")
	}

	v, ok := m.PullPath(record.Path{"comms", "retries"})
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestPushPathRejectsTypeMismatch(t *testing.T) {
	m, _ := newTestMirror(t, nil)

	m.PushPath(record.Path{"comms", "retries"}, "not an int")

	v, ok := m.PullPath(record.Path{"comms", "retries"})
	require.True(t, ok)
	assert.Equal(t, int64(0), v, "rejected update must not mutate the record")
}

func TestPushPathRejectsUnknownPath(t *testing.T) {
	m, _ := newTestMirror(t, nil)
	m.PushPath(record.Path{"does", "not", "exist"}, true)
	_, ok := m.PullPath(record.Path{"does", "not", "exist"})
	assert.False(t, ok)
}

func TestFrontendGetOnlySubscribedForEditablePaths(t *testing.T) {
	m, b := newTestMirror(t, []record.Path{{"comms", "enable"}})

	// Editable path: frontend.get should flow through to the record.
	b.Publish("app.ui.frontend.get.comms.enable", true)
	require.Eventually(t, func() bool {
		v, _ := m.PullPath(record.Path{"comms", "enable"})
		return v == true
	}, time.Second, 2*time.Millisecond)

	// Non-editable path: frontend.get must be ignored.
	b.Publish("app.ui.frontend.get.comms.retries", int64(99))
	time.Sleep(20 * time.Millisecond)
	v, _ := m.PullPath(record.Path{"comms", "retries"})
	assert.Equal(t, int64(0), v, "non-editable frontend.get must not mutate the record")
}

func TestFrontendWidgetPublishSetsUIUpdateFlag(t *testing.T) {
	m, b := newTestMirror(t, []record.Path{{"comms", "enable"}})

	b.Publish("app.ui.frontend.get.comms.enable", true)
	assert.True(t, m.WaitUIUpdate(time.Second))
}

func TestEntriesSetUpdatesRecordAndFrontend(t *testing.T) {
	m, b := newTestMirror(t, nil)

	sub := b.Subscribe("app.ui.frontend.set.comms.enable")
	defer b.Unsubscribe(sub, "app.ui.frontend.set.comms.enable")

	b.Publish("app.ui.entries.set.comms.enable", true)

	select {
	case msg := <-sub:
		assert.Equal(t, true, msg)
	case <-time.After(time.Second):
		t.Fatal("expected frontend.set publish from entries.set write")
	}
}

func TestNestedSetAppliesFullRecordUpdate(t *testing.T) {
	m, b := newTestMirror(t, nil)

	update := referenceRecord()
	update["comms"].(map[string]any)["enable"] = true
	update["comms"].(map[string]any)["retries"] = int64(3)
	update["label"] = "node_99"

	b.Publish("app.ui.nested.set", update)

	require.Eventually(t, func() bool {
		v, _ := m.PullPath(record.Path{"comms", "retries"})
		return v == int64(3)
	}, time.Second, 2*time.Millisecond)
}

func TestPullReturnsNestedSnapshot(t *testing.T) {
	m, _ := newTestMirror(t, nil)
	m.PushPath(record.Path{"comms", "retries"}, int64(5))

	snap := m.Pull()
	nested, ok := snap["comms"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(5), nested["retries"])
}

// TestNestedGetThrottlesToOnePublishPerWindow is spec.md §8's invariant
// 7: no more than one nested.get publish occurs within any
// ui_max_publish_rate_s window, no matter how many editable leaves
// changed inside it.
func TestNestedGetThrottlesToOnePublishPerWindow(t *testing.T) {
	b := broker.New()
	editable := []record.Path{{"comms", "enable"}, {"comms", "retries"}}
	m := New(Config{
		Reference:          referenceRecord(),
		EditablePaths:      editable,
		TopicRoot:          "app.ui",
		MaxPublishInterval: 80 * time.Millisecond,
		Broker:             b,
	})
	defer m.Close()

	sub := b.Subscribe("app.ui.nested.get")
	defer b.Unsubscribe(sub, "app.ui.nested.get")

	for i := 0; i < 5; i++ {
		b.Publish("app.ui.frontend.get.comms.retries", int64(i))
	}

	count := 0
	window := time.After(50 * time.Millisecond)
loop:
	for {
		select {
		case <-sub:
			count++
		case <-window:
			break loop
		}
	}
	assert.Equal(t, 1, count, "five rapid edits inside one throttle window must yield exactly one nested.get publish")

	// After the window elapses, a fresh edit produces another publish.
	b.Publish("app.ui.frontend.get.comms.enable", true)
	require.Eventually(t, func() bool {
		select {
		case <-sub:
			return true
		default:
			return false
		}
	}, time.Second, 2*time.Millisecond)
}

// Package mirror implements the UI-facing side of spec.md §4.3: a
// snapshot aggregator that mirrors a reference record over a
// broker.Broker topic tree, gating every external mutation through
// record.MatchType and rate-limiting its full-snapshot broadcast.
package mirror

import (
	"sync"
	"time"

	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/internal/eventflag"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
	"github.com/ayo-electronics/t0ve-hostlink/record"
)

// Config configures a Mirror instance.
type Config struct {
	Reference     map[string]any
	EditablePaths []record.Path

	TopicRoot          string
	MaxPublishInterval time.Duration

	Broker *broker.Broker
	Logger interfaces.Logger
}

// DefaultConfig returns a Config with spec.md §4.3's default topic
// root and publish-rate limit applied.
func DefaultConfig(reference map[string]any) *Config {
	return &Config{
		Reference:          reference,
		TopicRoot:          "app.ui",
		MaxPublishInterval: 100 * time.Millisecond,
	}
}

// Mirror owns one flattened copy of a reference record and keeps it in
// sync with a broker's frontend/entries/nested topic trees, per
// ui_dict_viewer_aggregator.py's topic contract:
//
//	[root].frontend.set.<path>  - published by Mirror to UI widgets
//	[root].frontend.get.<path>  - subscribed by Mirror, editable paths only
//	[root].entries.set.<path>   - subscribed by Mirror, external writers
//	[root].entries.get.<path>   - published by Mirror on every accepted frontend.get write
//	[root].nested.set           - subscribed by Mirror, full-record external writes
//	[root].nested.get           - published by Mirror's UI-update broadcaster
type Mirror struct {
	root     string
	editable map[string]bool

	broker   *broker.Broker
	logger   interfaces.Logger
	maxRate  time.Duration

	mu        sync.RWMutex
	flat      record.FlatMap
	reference map[string]any

	uiUpdate *eventflag.Flag
	stop     chan struct{}
	workers  sync.WaitGroup
}

// New builds a Mirror over cfg.Reference, subscribes every path's
// entries.set topic plus nested.set, subscribes frontend.get only for
// editable paths, publishes the initial snapshot, and starts the
// rate-limited UI-update broadcaster.
func New(cfg Config) *Mirror {
	d := DefaultConfig(cfg.Reference)
	if cfg.TopicRoot == "" {
		cfg.TopicRoot = d.TopicRoot
	}
	if cfg.MaxPublishInterval == 0 {
		cfg.MaxPublishInterval = d.MaxPublishInterval
	}
	if cfg.Broker == nil {
		cfg.Broker = broker.New()
	}

	flat, paths := record.FlattenPaths(cfg.Reference)

	m := &Mirror{
		root:      cfg.TopicRoot,
		editable:  map[string]bool{},
		broker:    cfg.Broker,
		logger:    cfg.Logger,
		maxRate:   cfg.MaxPublishInterval,
		flat:      flat,
		reference: record.DeepCopy(cfg.Reference),
		uiUpdate:  eventflag.New(),
		stop:      make(chan struct{}),
	}
	for _, p := range cfg.EditablePaths {
		m.editable[p.String()] = true
	}

	for _, p := range paths {
		path := p
		m.broker.OnTopic(m.topic("entries.set", path), m.stop, func(msg interface{}) {
			m.PushPath(path, msg)
		})
		if m.editable[path.String()] {
			m.broker.OnTopic(m.topic("frontend.get", path), m.stop, func(msg interface{}) {
				m.onFrontendWidgetPublish(path, msg)
			})
		}
	}
	m.broker.OnTopic(m.root+".nested.set", m.stop, func(msg interface{}) {
		if nested, ok := msg.(map[string]any); ok {
			m.Push(nested)
		}
	})

	for _, p := range paths {
		v, _ := record.GetWithPath(cfg.Reference, p)
		m.broker.Publish(m.topic("entries.set", p), v)
		m.broker.Publish(m.topic("frontend.set", p), v)
	}
	m.broker.Publish(m.root+".nested.get", m.Pull())

	m.workers.Add(1)
	go m.uiUpdatePublisherLoop()

	return m
}

func (m *Mirror) topic(segment string, path record.Path) string {
	return m.root + "." + segment + "." + path.String()
}

// Root returns the pub/sub topic root this Mirror publishes/subscribes
// under, e.g. "app.ui" — used by glue to address its topic tree
// directly.
func (m *Mirror) Root() string { return m.root }

// Broker returns the underlying broker, so glue can subscribe directly
// rather than round-tripping through Push/PushPath.
func (m *Mirror) Broker() *broker.Broker { return m.broker }

// Close stops the UI-update broadcaster and unsubscribes every topic
// this Mirror owns. Idempotent.
func (m *Mirror) Close() {
	select {
	case <-m.stop:
		return
	default:
		close(m.stop)
	}
	m.uiUpdate.Set()
	m.workers.Wait()
}

// Pull returns a nested snapshot of the current record state, with
// every path the reference template holds as a sequence restored as a
// []any rather than an index-keyed map.
func (m *Mirror) Pull() map[string]any {
	m.mu.RLock()
	flat := make(record.FlatMap, len(m.flat))
	for k, v := range m.flat {
		flat[k] = v
	}
	m.mu.RUnlock()
	return record.UnflattenTemplated(flat, m.reference)
}

// PullPath returns the value at path, or (nil, false) if path isn't in
// the reference record.
func (m *Mirror) PullPath(path record.Path) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.flat[path.String()]
	return v, ok
}

// Push applies a full or partial nested update, publishing any
// accepted changes to their frontend.set topics.
func (m *Mirror) Push(nested map[string]any) {
	updated := m.pushNoPublish(nested)
	for _, path := range updated {
		v, _ := m.PullPath(path)
		m.broker.Publish(m.topic("frontend.set", path), v)
	}
}

// PushPath applies a single path update, publishing to frontend.set on
// acceptance.
func (m *Mirror) PushPath(path record.Path, newVal any) {
	if m.pushPathNoPublish(path, newVal) {
		m.broker.Publish(m.topic("frontend.set", path), newVal)
	}
}

// WaitUIUpdate blocks until a UI-driven (frontend) edit occurs or
// timeout elapses, returning true only if an update was observed. The
// flag is cleared on a successful wait.
func (m *Mirror) WaitUIUpdate(timeout time.Duration) bool {
	ok := m.uiUpdate.Wait(timeout, m.stop)
	if ok {
		m.uiUpdate.Clear()
	}
	return ok
}

// IsUIUpdate reports whether a UI-driven edit has occurred since the
// last clear, optionally clearing the flag.
func (m *Mirror) IsUIUpdate(clear bool) bool {
	set := m.uiUpdate.IsSet()
	if set && clear {
		m.uiUpdate.Clear()
	}
	return set
}

func (m *Mirror) uiUpdatePublisherLoop() {
	defer m.workers.Done()
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		if !m.WaitUIUpdate(0) {
			return
		}

		m.broker.Publish(m.root+".nested.get", m.Pull())

		select {
		case <-m.stop:
			return
		case <-time.After(m.maxRate):
		}
	}
}

func (m *Mirror) onFrontendWidgetPublish(path record.Path, newVal any) {
	if m.pushPathNoPublish(path, newVal) {
		m.broker.Publish(m.topic("entries.get", path), newVal)
		m.uiUpdate.Set()
	}
}

func (m *Mirror) pushNoPublish(nested map[string]any) []record.Path {
	flatUpdate, paths := record.FlattenPaths(nested)
	var updated []record.Path
	for _, p := range paths {
		if m.pushPathNoPublish(p, flatUpdate[p.String()]) {
			updated = append(updated, p)
		}
	}
	return updated
}

func (m *Mirror) pushPathNoPublish(path record.Path, newVal any) bool {
	key := path.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.flat[key]
	if !ok {
		if m.logger != nil {
			m.logger.Warnf("mirror: path %s not in reference record", key)
		}
		return false
	}
	if !record.MatchType(newVal, existing) {
		if m.logger != nil {
			m.logger.Warnf("mirror: type mismatch on path %s", key)
		}
		return false
	}
	m.flat[key] = newVal
	return true
}

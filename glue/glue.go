// Package glue implements spec.md §4.4's dispatcher: the four fixed
// pairings that wire one serdes.Serdes instance to its UI-facing
// mirror.Mirror instances and debug sink, grounded on
// tsc_dispatcher.py's four link_node_* functions.
package glue

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayo-electronics/t0ve-hostlink/debugsink"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
	"github.com/ayo-electronics/t0ve-hostlink/mirror"
	"github.com/ayo-electronics/t0ve-hostlink/record"
	"github.com/ayo-electronics/t0ve-hostlink/schema"
	"github.com/ayo-electronics/t0ve-hostlink/serdes"
)

// portInfoPaths enumerates every leaf link_node_port_info forwards
// bidirectionally between a Serdes's port.* topics and a port Mirror's
// entries.set/entries.get topics. Types here must match the ones
// Serdes.publishPortStatus actually publishes: plain int, not int64,
// for the two counters.
var portInfoPaths = []record.Path{
	{"command", "request_connect"},
	{"command", "refresh_state"},
	{"status", "connected"},
	{"status", "port_name"},
	{"status", "serial_number"},
	{"status", "commands_enqueued"},
	{"status", "command_queue_space"},
}

// DefaultPortState returns the nested reference record a port Mirror
// must be built with, mirroring tsc_dispatcher.py's DEFAULT_PORT_STATE().
// Only the two command.* leaves are meant to be passed as that
// Mirror's EditablePaths.
func DefaultPortState() map[string]any {
	return map[string]any{
		"command": map[string]any{
			"request_connect": false,
			"refresh_state":   false,
		},
		"status": map[string]any{
			"connected":           false,
			"port_name":           "---",
			"serial_number":       "---",
			"commands_enqueued":   0,
			"command_queue_space": 0,
		},
	}
}

// PortStateEditablePaths returns the subset of DefaultPortState's
// leaves a UI widget is allowed to write.
func PortStateEditablePaths() []record.Path {
	return []record.Path{
		{"command", "request_connect"},
		{"command", "refresh_state"},
	}
}

// Config wires one node's Serdes to its two mirrors and a shared debug
// sink. PortMirror and StateMirror may live on any broker — glue
// bridges topics directly rather than assuming a shared one.
type Config struct {
	Serdes *serdes.Serdes

	// PortMirror must have been built over DefaultPortState().
	PortMirror *mirror.Mirror
	// StateMirror must have been built over a schema.NodeState-shaped
	// reference, e.g. schema.DefaultAll().
	StateMirror *mirror.Mirror

	DebugSink *debugsink.Sink

	Logger interfaces.Logger
}

// Dispatcher owns the broker subscriptions linking one node's Serdes
// to its mirrors and debug sink. Closing it tears down every
// subscription this package created.
type Dispatcher struct {
	cfg  Config
	stop chan struct{}

	connMu    sync.Mutex
	connSet   bool
	connected bool
}

// New wires all four pairings and returns the Dispatcher that owns
// them. Any of PortMirror, StateMirror, or DebugSink may be nil, in
// which case the pairing(s) depending on it are skipped.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{cfg: cfg, stop: make(chan struct{})}

	if cfg.PortMirror != nil {
		d.linkPortInfo()
	}
	if cfg.StateMirror != nil {
		d.linkNodeState()
	}
	if cfg.DebugSink != nil {
		d.linkDebugInfo()
		d.linkDebugTermCtrl()
	}

	return d
}

// Close unsubscribes every topic this Dispatcher wired. Idempotent.
func (d *Dispatcher) Close() {
	select {
	case <-d.stop:
		return
	default:
		close(d.stop)
	}
}

// ---------- Pairing 1: port info ----------

// linkPortInfo bidirectionally forwards every DefaultPortState() leaf
// between the Serdes's port.* topics and the port Mirror's
// entries.set/entries.get topics, per tsc_dispatcher.py's
// link_node_port_info / _forward_port_publish.
func (d *Dispatcher) linkPortInfo() {
	s := d.cfg.Serdes
	m := d.cfg.PortMirror

	for _, p := range portInfoPaths {
		path := p
		serdesTopic := s.Root() + ".port." + path.String()
		entriesSetTopic := m.Root() + ".entries.set." + path.String()
		entriesGetTopic := m.Root() + ".entries.get." + path.String()

		s.Broker().OnTopic(serdesTopic, d.stop, func(msg interface{}) {
			m.Broker().Publish(entriesSetTopic, msg)
		})
		m.Broker().OnTopic(entriesGetTopic, d.stop, func(msg interface{}) {
			s.Broker().Publish(serdesTopic, msg)
		})
	}
}

// ---------- Pairing 2: node state ----------

// linkNodeState forwards the Serdes's whole-NodeState status publish
// into the state Mirror's nested.set, and the state Mirror's
// throttled nested.get snapshot back into the Serdes's command topic,
// per tsc_dispatcher.py's link_node_state.
func (d *Dispatcher) linkNodeState() {
	s := d.cfg.Serdes
	m := d.cfg.StateMirror

	s.Broker().OnTopic(s.Root()+".status", d.stop, func(msg interface{}) {
		state, ok := msg.(schema.NodeState)
		if !ok {
			if d.cfg.Logger != nil {
				d.cfg.Logger.Warnf("glue: node %s: status payload type %T, want schema.NodeState", s.Root(), msg)
			}
			return
		}
		m.Broker().Publish(m.Root()+".nested.set", map[string]any(state))
	})

	m.Broker().OnTopic(m.Root()+".nested.get", d.stop, func(msg interface{}) {
		nested, ok := msg.(map[string]any)
		if !ok {
			if d.cfg.Logger != nil {
				d.cfg.Logger.Warnf("glue: node %s: nested.get payload type %T, want map[string]any", s.Root(), msg)
			}
			return
		}
		s.Broker().Publish(s.Root()+".command", schema.NodeState(nested))
	})
}

// ---------- Pairing 3: debug fan-out ----------

// linkDebugInfo subscribes every known debug level's topic and
// forwards a formatted line into the debug sink, per
// tsc_dispatcher.py's link_node_debug_info / _on_node_debug_info.
func (d *Dispatcher) linkDebugInfo() {
	s := d.cfg.Serdes
	sink := d.cfg.DebugSink

	for _, level := range schema.DebugLevels {
		lvl := level
		topic := s.Root() + ".debug." + strings.ToLower(lvl)
		s.Broker().OnTopic(topic, d.stop, func(msg interface{}) {
			line := fmt.Sprintf("%s: [%s] %v", time.Now().Format(time.RFC3339), lvl, msg)
			sink.Broker().Publish(sink.Root()+".add", line)
		})
	}
}

// ---------- Pairing 4: debug control ----------

// linkDebugTermCtrl clears the debug sink on a disconnected→connected
// transition, per tsc_dispatcher.py's link_node_debug_termctrl /
// _on_port_status_dis_connect.
func (d *Dispatcher) linkDebugTermCtrl() {
	s := d.cfg.Serdes
	sink := d.cfg.DebugSink

	s.Broker().OnTopic(s.Root()+".port.status.connected", d.stop, func(msg interface{}) {
		connected, ok := msg.(bool)
		if !ok {
			return
		}

		d.connMu.Lock()
		wasConnected := d.connected
		wasSet := d.connSet
		d.connected = connected
		d.connSet = true
		d.connMu.Unlock()

		if connected && wasSet && !wasConnected {
			sink.Broker().Publish(sink.Root()+".clear", nil)
		}
	})
}

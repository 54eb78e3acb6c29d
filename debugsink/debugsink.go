// Package debugsink implements a bounded, append-only line buffer
// driven entirely by pub/sub: a headless stand-in for
// ui_scrollable_textbox.py's ScrollableTextBox, minus the Tk widget
// itself (the widget toolkit is out of scope, per spec.md's Non-goals).
package debugsink

import (
	"fmt"
	"sync"

	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
)

// DefaultMaxLines matches ScrollableTextBox's default max_num_lines.
const DefaultMaxLines = 500

// Config configures a Sink instance.
type Config struct {
	TopicRoot string
	MaxLines  int

	Broker *broker.Broker
	Logger interfaces.Logger
}

// DefaultConfig returns a Config with the default topic root and line
// cap applied.
func DefaultConfig() *Config {
	return &Config{TopicRoot: "app.ui.debug", MaxLines: DefaultMaxLines}
}

// Sink is a ring buffer of text lines, subscribed to two topics:
//
//	[root].add   - append a line (payload coerced to string)
//	[root].clear - empty the buffer
//
// Unlike ScrollableTextBox it has no main-thread marshalling concern
// (there's no Tk event loop here), so Add/Clear mutate the buffer
// directly under a mutex.
type Sink struct {
	root string
	max  int

	broker *broker.Broker
	logger interfaces.Logger

	mu    sync.Mutex
	lines []string

	stop chan struct{}
}

// New builds a Sink and subscribes its add/clear topics.
func New(cfg Config) *Sink {
	d := DefaultConfig()
	if cfg.TopicRoot == "" {
		cfg.TopicRoot = d.TopicRoot
	}
	if cfg.MaxLines == 0 {
		cfg.MaxLines = d.MaxLines
	}
	if cfg.Broker == nil {
		cfg.Broker = broker.New()
	}

	s := &Sink{
		root:   cfg.TopicRoot,
		max:    cfg.MaxLines,
		broker: cfg.Broker,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
	}

	s.broker.OnTopic(s.root+".add", s.stop, func(msg interface{}) {
		s.Add(msg)
	})
	s.broker.OnTopic(s.root+".clear", s.stop, func(msg interface{}) {
		s.Clear()
	})

	if s.logger != nil {
		s.logger.Debugf("debugsink: subscribed to %s.add/.clear (max_lines=%d)", s.root, s.max)
	}

	return s
}

// Root returns the topic root this Sink subscribes under.
func (s *Sink) Root() string { return s.root }

// Close unsubscribes both topics. Idempotent.
func (s *Sink) Close() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
}

// Add appends a line, coercing a nil payload to the empty string and
// dropping the oldest line once the buffer exceeds MaxLines.
func (s *Sink) Add(text any) {
	str := ""
	if text != nil {
		str = fmt.Sprintf("%v", text)
	}

	s.mu.Lock()
	s.lines = append(s.lines, str)
	if len(s.lines) > s.max {
		s.lines = append([]string(nil), s.lines[len(s.lines)-s.max:]...)
	}
	s.mu.Unlock()
}

// Clear empties the buffer.
func (s *Sink) Clear() {
	s.mu.Lock()
	s.lines = s.lines[:0]
	s.mu.Unlock()
}

// Lines returns a snapshot of the buffer, oldest line first.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

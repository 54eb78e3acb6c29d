package hostlink

import (
	"time"

	"github.com/ayo-electronics/t0ve-hostlink/debugsink"
	"github.com/ayo-electronics/t0ve-hostlink/glue"
	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
	"github.com/ayo-electronics/t0ve-hostlink/mirror"
	"github.com/ayo-electronics/t0ve-hostlink/port"
	"github.com/ayo-electronics/t0ve-hostlink/schema"
	"github.com/ayo-electronics/t0ve-hostlink/serdes"
)

// NodeConfig configures one node's full runtime: its Serdes/Port pair,
// its two UI mirrors, and the debug sink they fan debug traffic into.
// This is the assembly cmd/hostlinkctl builds one of per connected node.
type NodeConfig struct {
	NodeIndex string

	SerdesConfig serdes.Config
	PortConfig   port.Config

	UITopicRoot        string
	UIMaxPublishRateS   time.Duration
	DebugSinkMaxLines  int

	Broker   *broker.Broker
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// DefaultNodeConfig returns a NodeConfig for the given node index with
// every sub-component's own defaults applied.
func DefaultNodeConfig(nodeIndex string) *NodeConfig {
	return &NodeConfig{
		NodeIndex:         nodeIndex,
		UITopicRoot:       "app.ui",
		UIMaxPublishRateS: 100 * time.Millisecond,
		DebugSinkMaxLines: debugsink.DefaultMaxLines,
	}
}

// Node ties one node's Serdes, its port-info and node-state Mirrors,
// and its debug sink together via a glue.Dispatcher, matching this
// package's role as the assembly point for port/serdes/mirror/glue —
// the concrete per-node runtime cmd/hostlinkctl drives.
type Node struct {
	Index string

	Serdes      *serdes.Serdes
	PortMirror  *mirror.Mirror
	StateMirror *mirror.Mirror
	DebugSink   *debugsink.Sink

	dispatcher *glue.Dispatcher
}

// NewNode builds a Serdes for cfg.NodeIndex, two Mirrors (port-info and
// full node-state) sharing one broker with it, a debug sink, and the
// glue.Dispatcher wiring all of them together.
func NewNode(cfg NodeConfig) (*Node, error) {
	d := DefaultNodeConfig(cfg.NodeIndex)
	if cfg.UITopicRoot == "" {
		cfg.UITopicRoot = d.UITopicRoot
	}
	if cfg.UIMaxPublishRateS == 0 {
		cfg.UIMaxPublishRateS = d.UIMaxPublishRateS
	}
	if cfg.DebugSinkMaxLines == 0 {
		cfg.DebugSinkMaxLines = d.DebugSinkMaxLines
	}
	if cfg.Broker == nil {
		cfg.Broker = broker.New()
	}

	sdCfg := cfg.SerdesConfig
	sdCfg.NodeIndex = cfg.NodeIndex
	sdCfg.PortConfig = cfg.PortConfig
	sdCfg.Broker = cfg.Broker
	sdCfg.Logger = cfg.Logger
	sdCfg.Observer = cfg.Observer

	s, err := serdes.New(sdCfg)
	if err != nil {
		return nil, err
	}

	uiRoot := cfg.UITopicRoot + "." + s.Root()
	portMirror := mirror.New(mirror.Config{
		Reference:          glue.DefaultPortState(),
		EditablePaths:      glue.PortStateEditablePaths(),
		TopicRoot:          uiRoot + ".port",
		MaxPublishInterval: cfg.UIMaxPublishRateS,
		Broker:             cfg.Broker,
		Logger:             cfg.Logger,
	})
	stateMirror := mirror.New(mirror.Config{
		Reference:          schema.DefaultAll(),
		TopicRoot:          uiRoot + ".state",
		MaxPublishInterval: cfg.UIMaxPublishRateS,
		Broker:             cfg.Broker,
		Logger:             cfg.Logger,
	})

	sink := debugsink.New(debugsink.Config{
		TopicRoot: uiRoot + ".debug",
		MaxLines:  cfg.DebugSinkMaxLines,
		Broker:    cfg.Broker,
		Logger:    cfg.Logger,
	})

	dispatcher := glue.New(glue.Config{
		Serdes:      s,
		PortMirror:  portMirror,
		StateMirror: stateMirror,
		DebugSink:   sink,
		Logger:      cfg.Logger,
	})

	return &Node{
		Index:       s.Root(),
		Serdes:      s,
		PortMirror:  portMirror,
		StateMirror: stateMirror,
		DebugSink:   sink,
		dispatcher:  dispatcher,
	}, nil
}

// Close tears down the dispatcher's subscriptions, both mirrors, the
// debug sink, and finally the Serdes (and its Port).
func (n *Node) Close() error {
	n.dispatcher.Close()
	n.PortMirror.Close()
	n.StateMirror.Close()
	n.DebugSink.Close()
	return n.Serdes.Close()
}

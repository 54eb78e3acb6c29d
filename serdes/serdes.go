// Package serdes drives request/response traffic for one node: it owns
// a port.Port, serializes/deserializes Communication frames, and routes
// inbound payloads onto a broker.Broker topic tree rooted at
// app.devices.node_NN, per spec.md §4.2.
package serdes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayo-electronics/t0ve-hostlink/internal/broker"
	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
	"github.com/ayo-electronics/t0ve-hostlink/internal/eventflag"
	"github.com/ayo-electronics/t0ve-hostlink/internal/hlerrors"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
	"github.com/ayo-electronics/t0ve-hostlink/port"
	"github.com/ayo-electronics/t0ve-hostlink/schema"
)

// taggedLogger prefixes every log line with the owning Serdes
// instance's ID, so a log aggregator can correlate lines from several
// Serdes instances running against the same node across reconnects.
type taggedLogger struct {
	id    string
	inner interfaces.Logger
}

func (l *taggedLogger) Printf(format string, args ...interface{}) {
	l.inner.Printf("[serdes "+l.id+"] "+format, args...)
}
func (l *taggedLogger) Debugf(format string, args ...interface{}) {
	l.inner.Debugf("[serdes "+l.id+"] "+format, args...)
}
func (l *taggedLogger) Infof(format string, args ...interface{}) {
	l.inner.Infof("[serdes "+l.id+"] "+format, args...)
}
func (l *taggedLogger) Warnf(format string, args ...interface{}) {
	l.inner.Warnf("[serdes "+l.id+"] "+format, args...)
}
func (l *taggedLogger) Errorf(format string, args ...interface{}) {
	l.inner.Errorf("[serdes "+l.id+"] "+format, args...)
}

var _ interfaces.Logger = (*taggedLogger)(nil)

// Config configures a Serdes instance, mirroring port.Config's
// plain-struct-plus-Default*() pattern.
type Config struct {
	NodeIndex string

	DefaultPollInterval time.Duration
	MaxPollInterval     time.Duration
	AckTimeout          time.Duration

	CommandQueueDepth     int
	FileRequestQueueDepth int
	MaxChunkSize          int
	MaxRetries            int
	ChunkTimeout          time.Duration

	Port       *port.Port // if nil, Serdes builds one from PortConfig
	PortConfig port.Config

	Broker   *broker.Broker
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// DefaultConfig returns a Config for the given node index with spec.md
// §6 defaults applied.
func DefaultConfig(nodeIndex string) *Config {
	return &Config{
		NodeIndex:             nodeIndex,
		DefaultPollInterval:   constants.DefaultPollInterval,
		MaxPollInterval:       constants.MaxPollInterval,
		AckTimeout:            constants.DefaultAckTimeout,
		CommandQueueDepth:     constants.CommandQueueDepth,
		FileRequestQueueDepth: constants.FileRequestQueueDepth,
		MaxChunkSize:          constants.MaxChunkSize,
		MaxRetries:            constants.MaxRetries,
		ChunkTimeout:          constants.FileTransferAckTimeout,
	}
}

// Status is a read-only snapshot of .port.status.*.
type Status struct {
	Connected         bool
	PortName          string
	SerialNumber      string
	CommandsEnqueued  int
	CommandQueueSpace int
}

// Serdes owns one Port for the lifetime of its four worker goroutines:
// transmit, receive, trigger, and file-request.
type Serdes struct {
	instanceID string
	node       string
	root       string
	cfg        Config
	port       *port.Port
	broker     *broker.Broker

	logger   interfaces.Logger
	observer interfaces.Observer

	commandQueue     chan schema.NodeState
	fileRequestQueue chan schema.FileAccess

	refreshState         *eventflag.Flag
	refreshStateExternal *eventflag.Flag
	rxStateAck           *eventflag.Flag
	rxFileAck            *eventflag.Flag

	statusMu     sync.Mutex
	lastStatus   Status
	connectedSet bool

	stop    chan struct{}
	workers sync.WaitGroup
}

// New builds a Serdes for one node, starting its Port (unless one is
// injected via Config.Port) and its four worker goroutines.
func New(cfg Config) (*Serdes, error) {
	label, err := nodeLabel(cfg.NodeIndex)
	if err != nil {
		return nil, err
	}

	d := DefaultConfig(cfg.NodeIndex)
	if cfg.DefaultPollInterval == 0 {
		cfg.DefaultPollInterval = d.DefaultPollInterval
	}
	if cfg.MaxPollInterval == 0 {
		cfg.MaxPollInterval = d.MaxPollInterval
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = d.AckTimeout
	}
	if cfg.CommandQueueDepth == 0 {
		cfg.CommandQueueDepth = d.CommandQueueDepth
	}
	if cfg.FileRequestQueueDepth == 0 {
		cfg.FileRequestQueueDepth = d.FileRequestQueueDepth
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = d.MaxChunkSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.ChunkTimeout == 0 {
		cfg.ChunkTimeout = d.ChunkTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = interfaces.NoOpObserver{}
	}

	p := cfg.Port
	if p == nil {
		portCfg := cfg.PortConfig
		portCfg.NodeIndex = cfg.NodeIndex
		portCfg.Logger = cfg.Logger
		portCfg.Observer = cfg.Observer
		p, err = port.New(portCfg)
		if err != nil {
			return nil, hlerrors.WrapError("new_serdes", err)
		}
	}

	b := cfg.Broker
	if b == nil {
		b = broker.New()
	}

	instanceID := uuid.NewString()
	logger := cfg.Logger
	if logger != nil {
		logger = &taggedLogger{id: instanceID, inner: logger}
	}

	s := &Serdes{
		instanceID:           instanceID,
		node:                 label,
		root:                 "app.devices." + label,
		cfg:                  cfg,
		port:                 p,
		broker:               b,
		logger:               logger,
		observer:             cfg.Observer,
		commandQueue:         make(chan schema.NodeState, cfg.CommandQueueDepth),
		fileRequestQueue:     make(chan schema.FileAccess, cfg.FileRequestQueueDepth),
		refreshState:         eventflag.New(),
		refreshStateExternal: eventflag.New(),
		rxStateAck:           eventflag.New(),
		rxFileAck:            eventflag.New(),
		stop:                 make(chan struct{}),
	}

	s.broker.OnTopic(s.topic("port.command.request_connect"), s.stop, s.onRequestConnect)
	s.broker.OnTopic(s.topic("port.command.refresh_state"), s.stop, s.onRefreshState)
	s.broker.OnTopic(s.topic("command"), s.stop, s.onNodeCommand)
	s.broker.OnTopic(s.topic("file_request"), s.stop, s.onFileRequest)

	s.workers.Add(4)
	go s.transmitLoop()
	go s.receiveLoop()
	go s.triggerLoop()
	go s.fileRequestLoop()

	return s, nil
}

// nodeLabel validates a node index against constants.ValidNodeIndices
// and zero-pads it into "node_NN" form.
func nodeLabel(nodeIndex string) (string, error) {
	valid := false
	for _, v := range constants.ValidNodeIndices {
		if v == nodeIndex {
			valid = true
			break
		}
	}
	if !valid {
		return "", hlerrors.NewError("new_serdes", hlerrors.ErrCodeInvalidNode, fmt.Sprintf("invalid node index %q", nodeIndex))
	}
	padded := nodeIndex
	if len(padded) < 2 {
		padded = strings.Repeat("0", 2-len(padded)) + padded
	}
	return "node_" + padded, nil
}

func (s *Serdes) topic(suffix string) string {
	return s.root + "." + suffix
}

// Root returns the pub/sub topic root this Serdes publishes/subscribes
// under, e.g. "app.devices.node_00" — used by glue to wire a Mirror.
func (s *Serdes) Root() string { return s.root }

// Broker returns the underlying broker, so glue can subscribe directly.
func (s *Serdes) Broker() *broker.Broker { return s.broker }

// InstanceID returns this Serdes instance's correlation ID, the same
// one prefixed onto every log line it emits.
func (s *Serdes) InstanceID() string { return s.instanceID }

// Close tears down the Port and joins all four workers. Idempotent.
func (s *Serdes) Close() error {
	select {
	case <-s.stop:
		return nil
	default:
		close(s.stop)
	}
	s.workers.Wait()
	return s.port.Close()
}

// PushCommand enqueues a NodeState for transmission on the next
// transmit cycle. Drops (with a log warning) if the command queue is
// full.
func (s *Serdes) PushCommand(cmd schema.NodeState) error {
	select {
	case s.commandQueue <- cmd:
		return nil
	default:
		if s.logger != nil {
			s.logger.Warnf("node %s: command queue full, dropping command", s.node)
		}
		return hlerrors.NewNodeError("push_command", s.node, hlerrors.ErrCodeQueueFull, "command queue full")
	}
}

// PushFileRequest enqueues a file access request. Drops (with a log
// warning) if the file-request queue is full.
func (s *Serdes) PushFileRequest(req schema.FileAccess) error {
	select {
	case s.fileRequestQueue <- req:
		return nil
	default:
		if s.logger != nil {
			s.logger.Warnf("node %s: file request queue full, dropping request", s.node)
		}
		return hlerrors.NewNodeError("push_file_request", s.node, hlerrors.ErrCodeQueueFull, "file request queue full")
	}
}

// RequestConnect mirrors .port.command.request_connect: true starts
// discovery, false tears the port down.
func (s *Serdes) RequestConnect(connect bool) {
	if connect {
		s.port.Connect()
	} else {
		s.port.Disconnect()
	}
}

// RequestRefreshState mirrors .port.command.refresh_state: asserts an
// out-of-cycle state fetch on the next trigger tick.
func (s *Serdes) RequestRefreshState() {
	s.refreshStateExternal.Set()
}

// Status returns the most recently published port status snapshot.
func (s *Serdes) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastStatus
}

// ---------- Worker 1: transmit ----------

func (s *Serdes) transmitLoop() {
	defer s.workers.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.refreshState.Wait(s.cfg.DefaultPollInterval, s.stop)
		s.refreshState.Clear()

		select {
		case <-s.stop:
			return
		default:
		}

		if !s.port.Connected() {
			continue
		}

		var command schema.NodeState
		select {
		case command = <-s.commandQueue:
		default:
			command = schema.DefaultCommandEmpty()
		}

		encoded, err := schema.Encode(schema.Communication{Tag: schema.PayloadNodeState, NodeState: command})
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("node %s: encode failed: %v", s.node, err)
			}
			continue
		}

		s.rxStateAck.Clear()
		if err := s.port.WriteFrame(encoded); err != nil {
			if s.logger != nil {
				s.logger.Warnf("node %s: write_frame failed: %v", s.node, err)
			}
			continue
		}

		if !s.rxStateAck.Wait(s.cfg.AckTimeout, s.stop) {
			if s.observer != nil {
				s.observer.ObserveAckTimeout()
			}
			if s.port.Connected() {
				if s.logger != nil {
					s.logger.Infof("node %s: rx timeout; attempting recover()", s.node)
				}
				s.port.Recover(0, 0)
			}
		}
	}
}

// ---------- Worker 2: receive ----------

func (s *Serdes) receiveLoop() {
	defer s.workers.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		frame, ok := s.port.ReadFrame(true, 20*time.Millisecond)
		if !ok {
			continue
		}

		comm, err := schema.Decode(frame)
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("node %s: decode failed: %v", s.node, err)
			}
			continue
		}

		tag, payload := schema.WhichPayload(comm)
		switch tag {
		case schema.PayloadNodeState:
			s.broker.Publish(s.topic("status"), payload)
			s.rxStateAck.Set()
		case schema.PayloadFileAccess:
			s.broker.Publish(s.topic("file_response"), payload)
			s.rxFileAck.Set()
		case schema.PayloadDebugMessage:
			dbg := payload.(schema.DebugMessage)
			s.broker.Publish(s.topic("debug."+strings.ToLower(dbg.Level)), dbg.Msg)
		default:
			if s.logger != nil {
				s.logger.Warnf("node %s: unknown payload type", s.node)
			}
		}
	}
}

// ---------- Worker 3: trigger/connect ----------

func (s *Serdes) triggerLoop() {
	defer s.workers.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.publishPortStatus()

		if s.refreshStateExternal.IsSet() || len(s.commandQueue) > 0 {
			s.refreshStateExternal.Clear()
			s.refreshState.Set()
		}

		select {
		case <-s.stop:
			return
		case <-time.After(s.cfg.MaxPollInterval):
		}
	}
}

// publishPortStatus implements spec.md §8's change-suppression property:
// the boolean connected field only fires on transitions, everything
// else republishes every tick.
func (s *Serdes) publishPortStatus() {
	connected := s.port.Connected()
	portName := s.port.PortName()
	serial := s.port.SerialNumber()
	enqueued := len(s.commandQueue)
	space := cap(s.commandQueue) - enqueued

	s.statusMu.Lock()
	changed := !s.connectedSet || s.lastStatus.Connected != connected
	s.lastStatus = Status{
		Connected:         connected,
		PortName:          portName,
		SerialNumber:      serial,
		CommandsEnqueued:  enqueued,
		CommandQueueSpace: space,
	}
	s.connectedSet = true
	s.statusMu.Unlock()

	if changed {
		s.broker.Publish(s.topic("port.status.connected"), connected)
	}

	name := portName
	if name == "" {
		name = "---"
	}
	serialOut := serial
	if serialOut == "" {
		serialOut = "---"
	}
	s.broker.Publish(s.topic("port.status.port_name"), name)
	s.broker.Publish(s.topic("port.status.serial_number"), serialOut)
	s.broker.Publish(s.topic("port.status.commands_enqueued"), enqueued)
	s.broker.Publish(s.topic("port.status.command_queue_space"), space)
}

// ---------- Worker 4: file request ----------

func (s *Serdes) fileRequestLoop() {
	defer s.workers.Done()
	for {
		select {
		case <-s.stop:
			return
		case req := <-s.fileRequestQueue:
			s.sendFileRequest(req)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (s *Serdes) sendFileRequest(req schema.FileAccess) {
	if !s.port.Connected() {
		if s.logger != nil {
			s.logger.Warnf("node %s: file request dropped: port not connected", s.node)
		}
		return
	}

	encoded, err := schema.Encode(schema.Communication{Tag: schema.PayloadFileAccess, File: req})
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("node %s: encode failed: %v", s.node, err)
		}
		return
	}

	s.rxFileAck.Clear()
	if err := s.port.WriteFrame(encoded); err != nil {
		if s.logger != nil {
			s.logger.Warnf("node %s: write_frame failed: %v", s.node, err)
		}
		return
	}

	if !s.rxFileAck.Wait(s.cfg.AckTimeout, s.stop) {
		if s.observer != nil {
			s.observer.ObserveAckTimeout()
		}
		if s.port.Connected() {
			if s.logger != nil {
				s.logger.Infof("node %s: rx timeout on file request; attempting recover()", s.node)
			}
			s.port.Recover(0, 0)
		}
	}
}

// ---------- Subscription callbacks ----------

func (s *Serdes) onRequestConnect(msg interface{}) {
	connect, ok := msg.(bool)
	if !ok {
		if s.logger != nil {
			s.logger.Warnf("node %s: invalid request_connect payload type %T", s.node, msg)
		}
		return
	}
	s.RequestConnect(connect)
}

func (s *Serdes) onRefreshState(msg interface{}) {
	refresh, ok := msg.(bool)
	if !ok {
		if s.logger != nil {
			s.logger.Warnf("node %s: invalid refresh_state payload type %T", s.node, msg)
		}
		return
	}
	if refresh {
		s.refreshStateExternal.Set()
		s.broker.Publish(s.topic("port.command.refresh_state"), false)
	}
}

func (s *Serdes) onNodeCommand(msg interface{}) {
	cmd, ok := msg.(schema.NodeState)
	if !ok {
		if s.logger != nil {
			s.logger.Warnf("node %s: invalid command payload type %T", s.node, msg)
		}
		return
	}
	_ = s.PushCommand(cmd)
}

func (s *Serdes) onFileRequest(msg interface{}) {
	req, ok := msg.(schema.FileAccess)
	if !ok {
		if s.logger != nil {
			s.logger.Warnf("node %s: invalid file_request payload type %T", s.node, msg)
		}
		return
	}
	_ = s.PushFileRequest(req)
}

// ---------- Supplemented features: file catalog / chunked reads ----------

// ListFiles issues an empty file request (spec.md §3's "list query")
// and decodes the resulting catalog, supplementing the distilled spec
// with the list-then-download flow test_file_request.py exercises.
func (s *Serdes) ListFiles(ctx context.Context) (schema.FileCatalog, error) {
	sub := s.broker.Subscribe(s.topic("file_response"))
	defer s.broker.Unsubscribe(sub, s.topic("file_response"))

	s.broker.Publish(s.topic("file_request"), schema.FileAccess{})

	for {
		select {
		case <-ctx.Done():
			return schema.FileCatalog{}, ctx.Err()
		case msg := <-sub:
			resp, ok := msg.(schema.FileAccess)
			if !ok {
				continue
			}
			catalog, err := schema.DecodeFileCatalog(resp.Data)
			if err != nil {
				continue
			}
			return catalog, nil
		}
	}
}

// ReadFile reads a file of the given size in MaxChunkSize-byte chunks,
// retrying each chunk up to MaxRetries times, per spec.md §4.2's
// chunked file read algorithm.
func (s *Serdes) ReadFile(ctx context.Context, filename string, size int) ([]byte, error) {
	sub := s.broker.Subscribe(s.topic("file_response"))
	defer s.broker.Unsubscribe(sub, s.topic("file_response"))

	out := make([]byte, 0, size)
	offset := 0

	for offset < size {
		remaining := size - offset
		chunkSize := remaining
		if chunkSize > s.cfg.MaxChunkSize {
			chunkSize = s.cfg.MaxChunkSize
		}

		req := schema.FileAccess{
			Filename:     filename,
			Offset:       uint32(offset),
			ReadNotWrite: true,
			Data:         make([]byte, chunkSize),
		}

		chunk, ok := s.readChunkWithRetries(ctx, sub, req)
		if !ok {
			return nil, hlerrors.NewPathError("read_file", s.node, filename, hlerrors.ErrCodeTransferAborted,
				fmt.Sprintf("exhausted retries at offset %d", offset))
		}
		if len(chunk) == 0 {
			return nil, hlerrors.NewPathError("read_file", s.node, filename, hlerrors.ErrCodeTransferAborted,
				fmt.Sprintf("empty chunk at offset %d", offset))
		}

		out = append(out, chunk...)
		offset += len(chunk)
	}

	return out, nil
}

func (s *Serdes) readChunkWithRetries(ctx context.Context, sub chan interface{}, req schema.FileAccess) ([]byte, bool) {
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		s.broker.Publish(s.topic("file_request"), req)

		timer := time.NewTimer(s.cfg.ChunkTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case msg := <-sub:
			timer.Stop()
			resp, ok := msg.(schema.FileAccess)
			if !ok {
				continue
			}
			if req.Matches(resp) && len(resp.Data) > 0 {
				return resp.Data, true
			}
			if s.logger != nil {
				s.logger.Warnf("node %s: file response mismatch for %s@%d", s.node, req.Filename, req.Offset)
			}
		case <-timer.C:
			if s.logger != nil {
				s.logger.Warnf("node %s: timeout waiting for file response at offset %d, retrying", s.node, req.Offset)
			}
		}
	}
	return nil, false
}

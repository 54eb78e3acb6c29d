// Package port owns one serial handle identified by a regular expression
// over its USB serial-number descriptor, and turns it into a durable,
// framed byte transport: supervisor/tx/rx workers plus a small polling
// API (Connect/Disconnect/WriteFrame/ReadFrame/ClearReceiveBuffer/
// Recover) per spec.md §4.1.
package port

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
	"github.com/ayo-electronics/t0ve-hostlink/internal/eventflag"
	"github.com/ayo-electronics/t0ve-hostlink/internal/hlerrors"
	"github.com/ayo-electronics/t0ve-hostlink/internal/interfaces"
)

// State is one of the Port's three lifecycle states (spec.md §4.2
// "State machines").
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config configures a Port, mirroring the teacher's queue.Config
// plain-struct-plus-constructor pattern.
type Config struct {
	// NodeIndex selects the default serial-number regex ("0".."4", "15",
	// or "Any"); ignored if SerialRegex is set.
	NodeIndex string
	// SerialRegex overrides the regex derived from NodeIndex.
	SerialRegex string

	StartCode        byte
	SerialBufferSize int
	TXQueueDepth     int
	RXQueueDepth     int

	SupervisorTickConnected    time.Duration
	SupervisorTickDisconnected time.Duration

	Discoverer Discoverer
	Logger     interfaces.Logger
	Observer   interfaces.Observer
}

// DefaultConfig returns a Config for the given node index with spec.md §6
// defaults applied.
func DefaultConfig(nodeIndex string) *Config {
	return &Config{
		NodeIndex:                  nodeIndex,
		StartCode:                  constants.DefaultStartCode,
		SerialBufferSize:           constants.DefaultSerialBufferSize,
		TXQueueDepth:               constants.TXQueueDepth,
		RXQueueDepth:               constants.TXQueueDepth,
		SupervisorTickConnected:    constants.SupervisorTickConnected,
		SupervisorTickDisconnected: constants.SupervisorTickDisconnected,
		Discoverer:                 NewSysfsDiscoverer(),
	}
}

// Port owns one serial handle for the lifetime of its supervisor
// goroutine. Exclusively owned by one Serdes.
type Port struct {
	cfg   Config
	regex *regexp.Regexp

	logger   interfaces.Logger
	observer interfaces.Observer

	mu               sync.Mutex
	allowConnections bool
	state            State
	portName         string
	serialNumber     string
	handle           SerialHandle

	portError      *eventflag.Flag
	clearRequested *eventflag.Flag
	frameArrived   *eventflag.Flag

	txQueue chan []byte
	rxQueue chan []byte

	// watcher shortcuts the next disconnected-state supervisor tick when
	// a tty device appears; best-effort, nil if fsnotify setup fails
	// (e.g. sandboxed environments without inotify access).
	watcher *fsnotify.Watcher

	stop    chan struct{}
	workers sync.WaitGroup
}

// New builds a Port for one node and starts its supervisor goroutine.
// The Port begins disconnected; call Connect to allow it to start
// discovering a matching device.
func New(cfg Config) (*Port, error) {
	if cfg.StartCode == 0 {
		cfg.StartCode = constants.DefaultStartCode
	}
	if cfg.SerialBufferSize == 0 {
		cfg.SerialBufferSize = constants.DefaultSerialBufferSize
	}
	if cfg.TXQueueDepth == 0 {
		cfg.TXQueueDepth = constants.TXQueueDepth
	}
	if cfg.RXQueueDepth == 0 {
		cfg.RXQueueDepth = cfg.TXQueueDepth
	}
	if cfg.SupervisorTickConnected == 0 {
		cfg.SupervisorTickConnected = constants.SupervisorTickConnected
	}
	if cfg.SupervisorTickDisconnected == 0 {
		cfg.SupervisorTickDisconnected = constants.SupervisorTickDisconnected
	}
	if cfg.Discoverer == nil {
		cfg.Discoverer = NewSysfsDiscoverer()
	}
	if cfg.Observer == nil {
		cfg.Observer = interfaces.NoOpObserver{}
	}

	var regex *regexp.Regexp
	var err error
	if cfg.SerialRegex != "" {
		regex, err = regexp.Compile(cfg.SerialRegex)
	} else {
		regex, err = compileSerialRegex(cfg.NodeIndex)
	}
	if err != nil {
		return nil, hlerrors.NewError("new_port", hlerrors.ErrCodePortOpenFailed, fmt.Sprintf("compile serial regex: %v", err))
	}

	p := &Port{
		cfg:            cfg,
		regex:          regex,
		logger:         cfg.Logger,
		observer:       cfg.Observer,
		txQueue:        make(chan []byte, cfg.TXQueueDepth),
		rxQueue:        make(chan []byte, cfg.RXQueueDepth),
		stop:           make(chan struct{}),
		portError:      eventflag.New(),
		clearRequested: eventflag.New(),
		frameArrived:   eventflag.New(),
	}

	if watcher, err := fsnotify.NewWatcher(); err == nil {
		for _, dir := range []string{"/dev", "/sys/class/tty"} {
			if err := watcher.Add(dir); err != nil && p.logger != nil {
				p.logger.Debugf("fsnotify watch %s: %v", dir, err)
			}
		}
		p.watcher = watcher
	} else if p.logger != nil {
		p.logger.Debugf("fsnotify unavailable, falling back to poll-only discovery: %v", err)
	}

	p.workers.Add(1)
	go p.supervisorLoop()

	return p, nil
}

// hotplugEvents returns the watcher's event channel, or nil (which
// blocks forever in a select, never firing) when fsnotify setup failed.
func (p *Port) hotplugEvents() <-chan fsnotify.Event {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Events
}

// Connect idempotently sets the "allowing connections" flag.
func (p *Port) Connect() {
	p.mu.Lock()
	p.allowConnections = true
	p.mu.Unlock()
}

// Disconnect idempotently clears the flag; teardown happens on the next
// supervisor tick.
func (p *Port) Disconnect() {
	p.mu.Lock()
	p.allowConnections = false
	p.mu.Unlock()
}

// Close stops the supervisor and all active workers, tearing down the
// handle if one is open. Idempotent.
func (p *Port) Close() error {
	select {
	case <-p.stop:
		return nil
	default:
		close(p.stop)
	}
	p.workers.Wait()
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// WriteFrame prepends the frame header and enqueues one frame into the
// bounded TX queue. Rejects oversized payloads; drops (with a log
// warning) when the queue is full.
func (p *Port) WriteFrame(payload []byte) error {
	frame, err := encodeFrame(p.cfg.StartCode, payload)
	if err != nil {
		return err
	}
	select {
	case p.txQueue <- frame:
		return nil
	default:
		if p.logger != nil {
			p.logger.Warnf("tx queue full, dropping %d-byte frame", len(payload))
		}
		return hlerrors.NewError("write_frame", hlerrors.ErrCodeQueueFull, "tx queue full")
	}
}

// ReadFrame returns the next completed inbound payload. If wait is
// false, it returns immediately with ok=false when nothing is queued;
// otherwise it blocks up to timeout.
func (p *Port) ReadFrame(wait bool, timeout time.Duration) ([]byte, bool) {
	if !wait {
		select {
		case frame := <-p.rxQueue:
			return frame, true
		default:
			return nil, false
		}
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case frame := <-p.rxQueue:
		return frame, true
	case <-timer:
		return nil, false
	case <-p.stop:
		return nil, false
	}
}

// ClearReceiveBuffer requests the RX worker discard its accumulated
// buffer (and the OS input buffer) at its next iteration.
func (p *Port) ClearReceiveBuffer() {
	p.clearRequested.Set()
}

// Recover injects a single 0x00 byte every interval, up to attempts
// times, until a frame arrives or the port disconnects.
func (p *Port) Recover(attempts int, interval time.Duration) {
	if attempts <= 0 {
		attempts = constants.DefaultRecoverAttempts
	}
	if interval <= 0 {
		interval = constants.DefaultRecoverInterDelay
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.frameArrived.Clear()
	for i := 0; i < attempts; i++ {
		if !p.Connected() {
			return
		}
		select {
		case <-ticker.C:
			p.mu.Lock()
			h := p.handle
			p.mu.Unlock()
			if h == nil {
				return
			}
			_, _ = h.Write([]byte{0x00})
			if p.frameArrived.IsSet() {
				return
			}
		case <-p.stop:
			return
		}
	}
}

// Connected reports whether the Port currently owns an open handle.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateConnected
}

// PortName returns the OS device path of the currently open handle, or
// the empty string when disconnected.
func (p *Port) PortName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.portName
}

// SerialNumber returns the matched USB serial-number descriptor, or the
// empty string when disconnected.
func (p *Port) SerialNumber() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serialNumber
}

func (p *Port) allowed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowConnections
}

// supervisorLoop drives connect/disconnect decisions. On transition to
// connected it starts fresh TX/RX workers; on a raised port_error signal
// it tears both down, clears the handle, and retries discovery.
func (p *Port) supervisorLoop() {
	defer p.workers.Done()

	for {
		connected := p.Connected()
		tick := p.cfg.SupervisorTickDisconnected
		if connected {
			tick = p.cfg.SupervisorTickConnected
		}

		select {
		case <-p.stop:
			p.teardown()
			return
		case <-time.After(tick):
		case <-p.hotplugEvents():
			// A device appeared or vanished under /dev or
			// /sys/class/tty; re-check immediately instead of waiting
			// out the rest of this tick.
		}

		if !p.allowed() {
			if p.Connected() {
				p.teardown()
			}
			continue
		}

		if p.portError.IsSet() {
			p.teardown()
			p.portError.Clear()
			continue
		}

		if !p.Connected() {
			p.tryConnect()
		}
	}
}

func (p *Port) tryConnect() {
	candidates, err := p.cfg.Discoverer.Enumerate()
	if err != nil {
		if p.logger != nil {
			p.logger.Debugf("enumerate candidates: %v", err)
		}
		return
	}

	for _, c := range candidates {
		if !p.regex.MatchString(c.SerialNumber) {
			continue
		}
		handle, err := p.cfg.Discoverer.Open(c.DevicePath, p.cfg.SerialBufferSize)
		if err != nil {
			if p.logger != nil {
				p.logger.Warnf("open %s failed: %v", c.DevicePath, err)
			}
			continue
		}
		_ = handle.SetDTR(true)
		_ = handle.SetRTS(true)

		p.mu.Lock()
		p.handle = handle
		p.portName = c.DevicePath
		p.serialNumber = c.SerialNumber
		p.state = StateConnected
		p.mu.Unlock()

		p.portError.Clear()
		framer := newFramer(p.cfg.StartCode)

		p.workers.Add(2)
		go p.txLoop(handle)
		go p.rxLoop(handle, framer)
		return
	}
}

func (p *Port) teardown() {
	p.mu.Lock()
	handle := p.handle
	p.handle = nil
	p.state = StateDisconnected
	p.portName = ""
	p.serialNumber = ""
	p.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
}

// txLoop uses a blocking dequeue with a short timeout so it can react
// to the stop signal and a disconnecting port promptly.
func (p *Port) txLoop(handle SerialHandle) {
	defer p.workers.Done()
	for {
		select {
		case <-p.stop:
			return
		case frame := <-p.txQueue:
			if !p.ownsHandle(handle) {
				return
			}
			_, err := handle.Write(frame)
			if p.observer != nil {
				p.observer.ObserveFrameSent(uint64(len(frame)), err == nil)
			}
			if err != nil {
				if p.logger != nil {
					p.logger.Warnf("write error: %v", err)
				}
				p.portError.Set()
				return
			}
		case <-time.After(constants.SupervisorTickConnected):
			if !p.ownsHandle(handle) {
				return
			}
		}
	}
}

// rxLoop performs blocking reads with a short serial read-timeout
// (implemented by the handle's own VMIN/VTIME configuration) and feeds
// completed frames into the rx queue.
func (p *Port) rxLoop(handle SerialHandle, fr *framer) {
	defer p.workers.Done()
	buf := make([]byte, 4096)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if !p.ownsHandle(handle) {
			return
		}

		if p.clearRequested.IsSet() {
			fr.Reset()
			_ = handle.Flush()
			p.clearRequested.Clear()
		}

		n, err := handle.Read(buf)
		if err != nil {
			if isTransientReadError(err) {
				// No data pending yet. The handle is opened blocking and
				// relies on VMIN/VTIME for its ~100ms read timeout, but a
				// handle implementation (or a future O_NONBLOCK fd) may
				// still surface EAGAIN/EWOULDBLOCK here; treat it the same
				// as a timed-out read rather than a fatal I/O error.
				time.Sleep(time.Millisecond)
				continue
			}
			if p.logger != nil {
				p.logger.Warnf("read error: %v", err)
			}
			p.portError.Set()
			return
		}
		if n == 0 {
			// A real handle's VMIN=0/VTIME already blocks ~100ms per
			// spec.md §4.1; a zero-latency fake handle in tests would
			// otherwise spin this loop at full CPU.
			time.Sleep(time.Millisecond)
			continue
		}

		for _, frame := range fr.Feed(buf[:n]) {
			p.frameArrived.Set()
			if p.observer != nil {
				p.observer.ObserveFrameReceived(uint64(len(frame)), true)
			}
			select {
			case p.rxQueue <- frame:
			default:
				if p.logger != nil {
					p.logger.Warnf("rx queue full, dropping %d-byte frame", len(frame))
				}
			}
		}
	}
}

// isTransientReadError reports whether err is a non-fatal "no data
// available right now" signal (EAGAIN/EWOULDBLOCK) rather than a real
// I/O failure, so rxLoop can keep waiting instead of tearing the port
// down over it.
func isTransientReadError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func (p *Port) ownsHandle(handle SerialHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle == handle
}

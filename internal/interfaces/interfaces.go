// Package interfaces provides internal interface definitions shared across
// hostlink's port, serdes, and mirror packages, kept separate from the
// public package to avoid import cycles.
package interfaces

// Logger is the minimal logging surface components accept, satisfied by
// internal/logging.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives counters from the port/serdes layers for metrics
// collection. Implementations must be thread-safe: methods are called
// from worker goroutines without external synchronization.
type Observer interface {
	ObserveFrameSent(bytes uint64, success bool)
	ObserveFrameReceived(bytes uint64, success bool)
	ObserveAckTimeout()
	ObserveRecover(attempts int, success bool)
	ObserveQueueDepth(queue string, depth int)
	ObserveFileChunk(bytes uint64, retry int, success bool)
}

// NoOpObserver discards every observation; used as the default when no
// Observer is configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrameSent(uint64, bool)       {}
func (NoOpObserver) ObserveFrameReceived(uint64, bool)   {}
func (NoOpObserver) ObserveAckTimeout()                  {}
func (NoOpObserver) ObserveRecover(int, bool)             {}
func (NoOpObserver) ObserveQueueDepth(string, int)       {}
func (NoOpObserver) ObserveFileChunk(uint64, int, bool) {}

var _ Observer = NoOpObserver{}

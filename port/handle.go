package port

import "io"

// SerialHandle is the byte-stream abstraction the Port layer drives:
// a readable/writable stream with DTR/RTS lines, a settable read
// timeout, and an input-buffer flush — exactly the physical serial
// driver contract spec.md §1 treats as an external collaborator.
// Production code gets one from Discoverer.Open; tests substitute an
// in-memory fake.
type SerialHandle interface {
	io.Reader
	io.Writer
	io.Closer

	// SetDTR/SetRTS assert or deassert the DTR/RTS control lines.
	SetDTR(on bool) error
	SetRTS(on bool) error

	// Flush discards any buffered input the OS is holding, per
	// clear_receive_buffer()'s "flush the OS input buffer" step.
	Flush() error
}

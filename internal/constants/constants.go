// Package constants holds the default tunables shared across the port,
// serdes, and mirror layers.
package constants

import "time"

// Frame header layout (see port.encodeFrame): 1 start-code byte + 2 big-endian
// length bytes. MaxFramePayload is what fits in the 16-bit length field.
const (
	DefaultStartCode        byte = 0xEE
	MaxFramePayload              = 0xFFFF
	FrameHeaderLen               = 3
	DefaultSerialBufferSize      = 32 * 1024
)

// Serial line parameters (spec §6).
const (
	BaudRate         = 115200
	ReadTimeout      = 100 * time.Millisecond
	WriteTimeout     = 1 * time.Second
	SupervisorTickConnected    = 100 * time.Millisecond
	SupervisorTickDisconnected = 500 * time.Millisecond
)

// Queue bounds (spec §3 invariants).
const (
	TXQueueDepth          = 8
	CommandQueueDepth     = 16
	FileRequestQueueDepth = 16
)

// Serdes polling/ack defaults (spec §6).
const (
	DefaultPollInterval = 500 * time.Millisecond
	MaxPollInterval     = 100 * time.Millisecond
	DefaultAckTimeout   = 5 * time.Second
	// FileTransferAckTimeout is the rx_timeout_s override the UI tool uses
	// during file-transfer scenarios, per spec §6.
	FileTransferAckTimeout = 3 * time.Second
)

// recover() defaults: inject a 0x00 byte every DefaultRecoverInterDelay,
// up to DefaultRecoverAttempts times, aborting as soon as a frame arrives.
const (
	DefaultRecoverAttempts  = 65536
	DefaultRecoverInterDelay = 20 * time.Millisecond
)

// Chunked file transfer constants (spec §4.2, §6).
const (
	MaxChunkSize  = 16384
	MaxRetries    = 3
)

// MagicNumber is the sentinel the device uses to sanity-check wire-format
// compatibility; stamped into every outbound NodeState by the schema
// defaulting helpers.
const MagicNumber uint32 = 0xA5A5A5A5

// Mirror defaults (spec §4.3, §6).
const DefaultUIMaxPublishRate = 100 * time.Millisecond

// Default serial-number regex patterns (spec §6). NodeRegex(n) is built at
// runtime from NodeRegexTemplate; AnyNodeRegex matches any two-digit index.
const (
	NodeRegexTemplate = `^[0-9A-F]{24}_NODE_%s$`
	AnyNodeRegex      = `^[0-9A-F]{24}_NODE_(?:[0-9]{2})$`
)

// Valid node index tokens, mirroring the original host software's sanity
// check on construction.
var ValidNodeIndices = []string{"0", "1", "2", "3", "4", "15", "Any"}

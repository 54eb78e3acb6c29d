// Package hostlink ties together the port, serdes, and mirror layers into
// one per-node runtime.
package hostlink

import "github.com/ayo-electronics/t0ve-hostlink/internal/constants"

// Re-exported defaults for callers assembling port.Config / serdes.Config /
// mirror.Config without reaching into internal/constants directly.
const (
	DefaultStartCode     = constants.DefaultStartCode
	MaxFramePayload      = constants.MaxFramePayload
	TXQueueDepth         = constants.TXQueueDepth
	CommandQueueDepth    = constants.CommandQueueDepth
	FileRequestQueueDepth = constants.FileRequestQueueDepth
	DefaultPollInterval  = constants.DefaultPollInterval
	MaxPollInterval      = constants.MaxPollInterval
	DefaultAckTimeout    = constants.DefaultAckTimeout
	MaxChunkSize         = constants.MaxChunkSize
	MaxRetries           = constants.MaxRetries
	MagicNumber          = constants.MagicNumber
)

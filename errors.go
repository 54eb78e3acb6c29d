package hostlink

import (
	"github.com/ayo-electronics/t0ve-hostlink/internal/hlerrors"
)

// Re-exported error types so callers assembling a Node don't need to
// reach into internal/hlerrors directly; port, serdes, and mirror
// import internal/hlerrors themselves to avoid importing this package.
type (
	Error     = hlerrors.Error
	ErrorCode = hlerrors.ErrorCode
)

const (
	ErrCodePortNotFound    = hlerrors.ErrCodePortNotFound
	ErrCodePortOpenFailed  = hlerrors.ErrCodePortOpenFailed
	ErrCodeSerialIO        = hlerrors.ErrCodeSerialIO
	ErrCodeFrameTooLarge   = hlerrors.ErrCodeFrameTooLarge
	ErrCodeQueueFull       = hlerrors.ErrCodeQueueFull
	ErrCodeDecode          = hlerrors.ErrCodeDecode
	ErrCodeEncode          = hlerrors.ErrCodeEncode
	ErrCodeAckTimeout      = hlerrors.ErrCodeAckTimeout
	ErrCodeTypeMismatch    = hlerrors.ErrCodeTypeMismatch
	ErrCodeUnknownPayload  = hlerrors.ErrCodeUnknownPayload
	ErrCodeInvalidNode     = hlerrors.ErrCodeInvalidNode
	ErrCodeFileMismatch    = hlerrors.ErrCodeFileMismatch
	ErrCodeTransferAborted = hlerrors.ErrCodeTransferAborted
)

var (
	NewError          = hlerrors.NewError
	NewErrorWithErrno = hlerrors.NewErrorWithErrno
	NewNodeError      = hlerrors.NewNodeError
	NewPathError      = hlerrors.NewPathError
	WrapError         = hlerrors.WrapError
	IsCode            = hlerrors.IsCode
	IsErrno           = hlerrors.IsErrno
)

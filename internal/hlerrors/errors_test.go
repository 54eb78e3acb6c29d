package hlerrors

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := NewError("write_frame", ErrCodeFrameTooLarge, "payload exceeds 65535 bytes")

	assert.Equal(t, "write_frame", err.Op)
	assert.Equal(t, ErrCodeFrameTooLarge, err.Code)
	assert.Equal(t, "hostlink: payload exceeds 65535 bytes (op=write_frame)", err.Error())
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("connect", ErrCodePortOpenFailed, syscall.EACCES)

	assert.Equal(t, syscall.EACCES, err.Errno)
	assert.Equal(t, ErrCodePortOpenFailed, err.Code)
}

func TestNodeError(t *testing.T) {
	err := NewNodeError("push_node_command", "node_00", ErrCodeQueueFull, "command queue full")

	assert.Equal(t, "node_00", err.Node)
	assert.Equal(t, "hostlink: command queue full (op=push_node_command)", err.Error())
}

func TestPathError(t *testing.T) {
	err := NewPathError("push_path", "node_00", "comms.offset_ctrl.enable", ErrCodeTypeMismatch, "expected bool")

	assert.Equal(t, "node_00", err.Node)
	assert.Equal(t, "comms.offset_ctrl.enable", err.Path)
	assert.Equal(t, ErrCodeTypeMismatch, err.Code)
}

func TestWrapError(t *testing.T) {
	inner := syscall.ENOENT
	err := WrapError("discover_port", inner)

	assert.Equal(t, ErrCodePortNotFound, err.Code)
	assert.Equal(t, syscall.ENOENT, err.Errno)
	assert.True(t, errors.Is(err, syscall.ENOENT))
}

func TestWrapErrorPreservesStructuredContext(t *testing.T) {
	original := NewNodeError("recover", "node_01", ErrCodeAckTimeout, "no frame after recover")
	wrapped := WrapError("transmit_loop", original)

	assert.Equal(t, "transmit_loop", wrapped.Op)
	assert.Equal(t, "node_01", wrapped.Node)
	assert.Equal(t, ErrCodeAckTimeout, wrapped.Code)
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError("noop", nil))
}

func TestIsCode(t *testing.T) {
	err := NewError("read_frame", ErrCodeAckTimeout, "operation timed out")

	assert.True(t, IsCode(err, ErrCodeAckTimeout))
	assert.False(t, IsCode(err, ErrCodeSerialIO))
	assert.False(t, IsCode(nil, ErrCodeAckTimeout))
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("write_frame", ErrCodeSerialIO, syscall.EIO)

	assert.True(t, IsErrno(err, syscall.EIO))
	assert.False(t, IsErrno(err, syscall.EPERM))
	assert.False(t, IsErrno(nil, syscall.EIO))
}

func TestErrorIsMatchesOnCode(t *testing.T) {
	a := NewError("write_frame", ErrCodeQueueFull, "tx queue full")
	b := &Error{Code: ErrCodeQueueFull}

	assert.True(t, errors.Is(a, b))
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected ErrorCode
	}{
		{syscall.ENOENT, ErrCodePortNotFound},
		{syscall.ENXIO, ErrCodePortNotFound},
		{syscall.EBUSY, ErrCodePortOpenFailed},
		{syscall.EACCES, ErrCodePortOpenFailed},
		{syscall.EPERM, ErrCodePortOpenFailed},
		{syscall.ETIMEDOUT, ErrCodeAckTimeout},
		{syscall.EIO, ErrCodeSerialIO},
	}

	for _, tc := range testCases {
		code := mapErrnoToCode(tc.errno)
		assert.Equal(t, tc.expected, code, "mapErrnoToCode(%v)", tc.errno)
	}
}

package hostlink

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrorFacade exercises the root package's re-exported error
// constructors and codes; the full behavioral test suite lives in
// internal/hlerrors, which this package is a thin facade over.
func TestErrorFacade(t *testing.T) {
	err := NewNodeError("write_frame", "node_00", ErrCodeQueueFull, "tx queue full")
	assert.Equal(t, ErrCodeQueueFull, err.Code)
	assert.True(t, IsCode(err, ErrCodeQueueFull))

	wrapped := WrapError("recover", syscall.ENOENT)
	assert.Equal(t, ErrCodePortNotFound, wrapped.Code)
	assert.True(t, IsErrno(wrapped, syscall.ENOENT))
}

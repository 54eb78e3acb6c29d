package port

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
)

// TestFramingRoundTrip is spec.md §8's invariant 1: for any payload
// length up to 65535, encoding then feeding the wire bytes back through
// the framer yields exactly that payload, and concatenating several
// encoded frames yields the sequence in order.
func TestFramingRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 3, 255, 256, 4095, 65535}
	r := rand.New(rand.NewSource(1))

	for _, n := range sizes {
		payload := make([]byte, n)
		r.Read(payload)

		wire, err := encodeFrame(constants.DefaultStartCode, payload)
		require.NoError(t, err)

		fr := newFramer(constants.DefaultStartCode)
		frames := fr.Feed(wire)
		require.Len(t, frames, 1)
		assert.Equal(t, payload, frames[0])
	}
}

func TestFramingRoundTripSequence(t *testing.T) {
	p1 := []byte("first")
	p2 := []byte{}
	p3 := bytes.Repeat([]byte{0xAB}, 512)

	var wire []byte
	for _, p := range [][]byte{p1, p2, p3} {
		enc, err := encodeFrame(constants.DefaultStartCode, p)
		require.NoError(t, err)
		wire = append(wire, enc...)
	}

	fr := newFramer(constants.DefaultStartCode)
	frames := fr.Feed(wire)
	require.Len(t, frames, 3)
	assert.Equal(t, p1, frames[0])
	assert.Equal(t, p2, frames[1])
	assert.Equal(t, p3, frames[2])
}

// TestFramingSelfHeal is invariant 2: arbitrary bytes preceding a valid
// frame, that never form a valid header themselves, are dropped rather
// than wedging the framer.
func TestFramingSelfHeal(t *testing.T) {
	payload := []byte{0x77, 0x88}
	valid, err := encodeFrame(constants.DefaultStartCode, payload)
	require.NoError(t, err)

	noise := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x01, 0x02, 0x03}
	fr := newFramer(constants.DefaultStartCode)
	frames := fr.Feed(append(noise, valid...))

	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
}

// TestFramingScenarioA is spec.md §8 scenario A.
func TestFramingScenarioA(t *testing.T) {
	fr := newFramer(0xEE)
	frames := fr.Feed([]byte{0xEE, 0x00, 0x03, 0x11, 0x22, 0x33})

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, frames[0])
	assert.Empty(t, fr.buf)
}

// TestFramingScenarioB is spec.md §8 scenario B: a noise-prefixed frame
// followed by a lone start-code byte that must be retained pending more
// length bytes.
func TestFramingScenarioB(t *testing.T) {
	fr := newFramer(0xEE)
	frames := fr.Feed([]byte{0xAA, 0xBB, 0xEE, 0x00, 0x02, 0x77, 0x88, 0xEE})

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x77, 0x88}, frames[0])
	assert.Equal(t, []byte{0xEE}, fr.buf)
}

// TestResetDiscardsBufferedBytes covers clear_receive_buffer's
// "discard the accumulated buffer" half directly against the framer.
func TestResetDiscardsBufferedBytes(t *testing.T) {
	fr := newFramer(constants.DefaultStartCode)
	fr.Feed([]byte{constants.DefaultStartCode, 0x00, 0x05, 0x01})
	require.NotEmpty(t, fr.buf)

	fr.Reset()
	assert.Nil(t, fr.buf)
}

package port

import (
	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
	"github.com/ayo-electronics/t0ve-hostlink/internal/hlerrors"
)

// frameHeader builds [start_code][length big-endian] for payload,
// rejecting payloads that don't fit the 16-bit length field.
func frameHeader(startCode byte, payload []byte) ([]byte, error) {
	if len(payload) > constants.MaxFramePayload {
		return nil, hlerrors.NewError("write_frame", hlerrors.ErrCodeFrameTooLarge, "payload exceeds 65535 bytes")
	}
	length := len(payload)
	return []byte{startCode, byte(length >> 8), byte(length)}, nil
}

// encodeFrame returns the full wire frame (header + payload) for one
// write_frame call.
func encodeFrame(startCode byte, payload []byte) ([]byte, error) {
	header, err := frameHeader(startCode, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}

// framer implements the RX state machine of spec.md §4.1: scan for
// start_code, drop the prefix, wait for a full length-delimited
// payload, and self-heal past stray bytes that don't form a valid
// header. It is not safe for concurrent use — the RX worker is its
// only caller.
type framer struct {
	startCode byte
	buf       []byte
}

func newFramer(startCode byte) *framer {
	return &framer{startCode: startCode}
}

// Feed appends data to the internal buffer and returns every frame
// payload that becomes complete as a result, in arrival order.
func (f *framer) Feed(data []byte) [][]byte {
	f.buf = append(f.buf, data...)

	var frames [][]byte
	for {
		frame, ok := f.tryExtract()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	return frames
}

// Reset discards any buffered bytes, implementing
// clear_receive_buffer()'s "discard the accumulated buffer" half.
func (f *framer) Reset() {
	f.buf = nil
}

func (f *framer) tryExtract() ([]byte, bool) {
	idx := -1
	for i, b := range f.buf {
		if b == f.startCode {
			idx = i
			break
		}
	}
	if idx == -1 {
		// No marker anywhere in the buffer: nothing useful is
		// recoverable from it, so drop it entirely per step 1.
		f.buf = nil
		return nil, false
	}
	if idx > 0 {
		f.buf = f.buf[idx:]
	}

	if len(f.buf) < constants.FrameHeaderLen {
		return nil, false
	}

	length := int(f.buf[1])<<8 | int(f.buf[2])
	total := constants.FrameHeaderLen + length
	if len(f.buf) < total {
		return nil, false
	}

	payload := make([]byte, length)
	copy(payload, f.buf[constants.FrameHeaderLen:total])
	f.buf = f.buf[total:]
	return payload, true
}

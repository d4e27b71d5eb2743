/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package wire

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Frame envelope: [packed-int32 length][payload], where the payload is the
// packed channel id followed by the codec-encoded message body. The length
// counts payload bytes only.

type (
	// FrameBuffer accumulates one outbound frame. The first MaxPackedInt32
	// bytes are reserved for the length prefix, which is packed in place by
	// Frame() once the payload size is known.
	FrameBuffer struct {
		buf []byte
	}

	// ErrFrameTooLarge is returned for frames exceeding the configured
	// maximum in either direction.
	ErrFrameTooLarge struct {
		size, limit int
		incoming    bool
	}
)

func (e *ErrFrameTooLarge) Error() string {
	dir := "outgoing"
	if e.incoming {
		dir = "incoming"
	}
	return fmt.Sprintf("%s frame of %d bytes exceeds the maximum of %d bytes",
		dir, e.size, e.limit)
}

func NewFrameBuffer() *FrameBuffer {
	fb := &FrameBuffer{buf: make([]byte, MaxPackedInt32, 512)}
	return fb
}

// Write implements io.Writer; the codec and filter pipeline encode into it.
func (fb *FrameBuffer) Write(p []byte) (int, error) {
	fb.buf = append(fb.buf, p...)
	return len(p), nil
}

// PayloadLen returns the number of payload bytes accumulated so far.
func (fb *FrameBuffer) PayloadLen() int { return len(fb.buf) - MaxPackedInt32 }

// Reset drops the payload, keeping the underlying array.
func (fb *FrameBuffer) Reset() { fb.buf = fb.buf[:MaxPackedInt32] }

// Frame packs the length into the reserved prefix and returns the complete
// frame: exactly len(packed length) + payload-length bytes.
func (fb *FrameBuffer) Frame() []byte {
	var tmp [MaxPackedInt32]byte
	enc := AppendInt32(tmp[:0], int32(fb.PayloadLen()))
	off := MaxPackedInt32 - len(enc)
	copy(fb.buf[off:], enc)
	return fb.buf[off:]
}

// ReadFrame reads one frame from r: the packed length, then exactly that
// many payload bytes. With maxIn > 0 an oversize length fails before the
// payload buffer is allocated.
func ReadFrame(r io.Reader, maxIn int) ([]byte, error) {
	n, err := ReadFrameLen(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("invalid frame length %d", n)
	}
	if maxIn > 0 && int(n) > maxIn {
		return nil, &ErrFrameTooLarge{size: int(n), limit: maxIn, incoming: true}
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// ReadFrameLen parses the packed frame length byte-by-byte, suitable for a
// stream where no more than the envelope may be consumed.
func ReadFrameLen(r io.Reader) (int32, error) {
	return ReadInt32(oneByteReader{r})
}

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(o.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

package handler

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Persistent-mode wire format: each frame is a big-endian uint32 length
// followed by one status byte and the payload. Status 0 is a response
// payload; status 1 is an error message.
const (
	frameStatusOK    = 0
	frameStatusError = 1

	// maxFrameSize is the maximum allowed frame payload (16MB).
	maxFrameSize = 16 * 1024 * 1024
)

func writeFrame(w io.Writer, status byte, payload []byte) error {
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(1+len(payload)))
	buf[4] = status
	copy(buf[5:], payload)

	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func readFrame(r io.Reader) (byte, []byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return 0, nil, err
	}

	frameLen := binary.BigEndian.Uint32(lenBuf)
	if frameLen == 0 {
		return 0, nil, fmt.Errorf("empty frame")
	}
	if frameLen > maxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes (max %d)", frameLen, maxFrameSize)
	}

	data := make([]byte, frameLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return data[0], data[1:], nil
}

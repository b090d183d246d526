package base

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const frameHeaderSize = 20

// maxFrameSize bounds the payload of a single frame
const maxFrameSize = 64 << 20

var errFrameTooLarge = errors.New("frame exceeds maximum size")

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: minor (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, minor uint64, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(data))
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], minor)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from r using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) (minor uint64, requestID uint64, data []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(r, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	minor = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	contentLength := int(binary.BigEndian.Uint32(buf[16:20]))

	if contentLength == 0 {
		return minor, requestID, []byte{}, nil
	}
	if contentLength > maxFrameSize {
		return minor, requestID, nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, contentLength)
	}

	if len(buf) < contentLength {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return minor, requestID, buf[:contentLength], nil
}

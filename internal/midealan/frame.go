// Package midealan implements the appliance's LAN protocol: the 0x8370
// transport framing, AES-encrypted payloads keyed from the pairing key, and
// the 0xAC command bodies for querying and applying state. It backs the
// gateway.Session interface; nothing above the gateway sees these bytes.
package midealan

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Transport frame types.
const (
	TypeHandshakeRequest  = 0x0
	TypeHandshakeResponse = 0x1
	TypeEncryptedResponse = 0x3
	TypeEncryptedRequest  = 0x6
)

const (
	frameMagic     = 0x8370
	frameHeaderLen = 6
	// Frames beyond this are not legitimate appliance traffic.
	maxFramePayload = 4096
)

// Frame is one transport unit on the wire: a fixed header followed by an
// opaque (usually encrypted) payload.
type Frame struct {
	Type    byte
	Payload []byte
}

// EncodeFrame writes a frame: magic, payload length, a reserved 0x20 marker
// byte, and the type.
func EncodeFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > maxFramePayload {
		return fmt.Errorf("frame payload too large: %d bytes", len(f.Payload))
	}

	header := make([]byte, frameHeaderLen)
	binary.BigEndian.PutUint16(header[0:2], frameMagic)
	binary.BigEndian.PutUint16(header[2:4], uint16(len(f.Payload)))
	header[4] = 0x20
	header[5] = f.Type

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("failed to write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one frame from the connection.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, frameHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, fmt.Errorf("failed to read frame header: %w", err)
	}

	if magic := binary.BigEndian.Uint16(header[0:2]); magic != frameMagic {
		return Frame{}, fmt.Errorf("bad frame magic 0x%04x", magic)
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length > maxFramePayload {
		return Frame{}, fmt.Errorf("frame payload too large: %d bytes", length)
	}

	f := Frame{Type: header[5]}
	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, fmt.Errorf("failed to read frame payload: %w", err)
		}
	}
	return f, nil
}

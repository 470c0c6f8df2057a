package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// Close status codes used by the server.
const (
	CloseNormal          uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseUnsupportedData uint16 = 1003
	ClosePolicyViolation uint16 = 1008
	CloseMessageTooBig   uint16 = 1009
)

// maxControlPayload is the RFC 6455 limit for control frame payloads.
const maxControlPayload = 125

var (
	// ErrFrameTooLarge is returned when a frame exceeds the configured limit.
	ErrFrameTooLarge = errors.New("frame payload exceeds limit")

	// ErrUnsupportedFrame is returned for fragmented frames, continuation
	// frames and frames with reserved bits set (extensions are not negotiated).
	ErrUnsupportedFrame = errors.New("unsupported frame")

	// ErrUnmaskedFrame is returned when a client frame is not masked.
	ErrUnmaskedFrame = errors.New("client frame is not masked")
)

// Frame represents a WebSocket frame
type Frame struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte
}

// ReadFrame reads a WebSocket frame from the reader. A maxPayload of zero
// disables the size check. io.EOF is returned unchanged when the reader is
// exhausted before the first byte.
func ReadFrame(r io.Reader, maxPayload uint64) (*Frame, error) {
	frame := &Frame{}

	// Read first two bytes. A clean EOF before the first one ends the stream.
	var header [2]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	// Parse first byte: FIN, RSV1-3, Opcode
	frame.FIN = (header[0] & 0x80) != 0
	frame.RSV1 = (header[0] & 0x40) != 0
	frame.RSV2 = (header[0] & 0x20) != 0
	frame.RSV3 = (header[0] & 0x10) != 0
	frame.Opcode = header[0] & 0x0F

	// Parse second byte: MASK, Payload length
	frame.Masked = (header[1] & 0x80) != 0
	payloadLen := uint64(header[1] & 0x7F)

	// Extended payload length
	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Length = binary.BigEndian.Uint64(ext[:])
	default:
		frame.Length = payloadLen
	}

	// Refuse oversized frames before allocating the payload
	if maxPayload > 0 && frame.Length > maxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, frame.Length, maxPayload)
	}

	// Masking key (client frames only)
	if frame.Masked {
		if _, err := io.ReadFull(r, frame.MaskKey[:]); err != nil {
			return nil, fmt.Errorf("failed to read mask key: %w", err)
		}
	}

	// Payload
	if frame.Length > 0 {
		payload := make([]byte, frame.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		if frame.Masked {
			payload = unmaskPayload(payload, frame.MaskKey)
		}
		frame.Payload = payload
	}

	return frame, nil
}

// ValidateClientFrame enforces the subset of RFC 6455 the server speaks:
// masked, unfragmented frames without extension bits.
func (f *Frame) ValidateClientFrame() error {
	if !f.Masked {
		return ErrUnmaskedFrame
	}
	if f.RSV1 || f.RSV2 || f.RSV3 {
		return fmt.Errorf("%w: reserved bits set", ErrUnsupportedFrame)
	}
	if !f.FIN || f.Opcode == OpcodeContinuation {
		return fmt.Errorf("%w: fragmented message", ErrUnsupportedFrame)
	}
	if f.IsControl() && f.Length > maxControlPayload {
		return fmt.Errorf("%w: control frame payload of %d bytes", ErrUnsupportedFrame, f.Length)
	}
	return nil
}

// IsControl reports whether the frame is a close, ping or pong frame.
func (f *Frame) IsControl() bool {
	return f.Opcode&0x8 != 0
}

// unmaskPayload applies the XOR mask in place and returns the payload.
func unmaskPayload(payload []byte, maskKey [4]byte) []byte {
	for i := range payload {
		payload[i] ^= maskKey[i%4]
	}
	return payload
}

// EncodeFrame builds a single unmasked server-to-client frame with FIN set.
func EncodeFrame(opcode byte, payload []byte) []byte {
	payloadLen := len(payload)
	frame := make([]byte, 0, payloadLen+10)
	frame = append(frame, 0x80|opcode)

	switch {
	case payloadLen < 126:
		frame = append(frame, byte(payloadLen))
	case payloadLen < 65536:
		frame = append(frame, 126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(payloadLen))
	default:
		frame = append(frame, 127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(payloadLen))
	}

	return append(frame, payload...)
}

// EncodeClosePayload builds the body of a close frame. The reason is
// truncated so the payload fits in a control frame.
func EncodeClosePayload(code uint16, reason string) []byte {
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), code)
	return append(payload, reason...)
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	switch f.Opcode {
	case OpcodeContinuation:
		return "Continuation"
	case OpcodeText:
		return "Text"
	case OpcodeBinary:
		return "Binary"
	case OpcodeClose:
		return "Close"
	case OpcodePing:
		return "Ping"
	case OpcodePong:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", f.Opcode)
	}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, f.Length)
}

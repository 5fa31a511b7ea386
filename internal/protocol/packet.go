// Package protocol implements the command-response engine spoken over the
// node's short-range command link: length-prefixed binary framing, a fixed
// opcode catalog and an at-most-one-in-flight dispatch loop.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Opcode identifies a command on the wire.
type Opcode uint8

const (
	OpGetLatestSample   Opcode = 0x01
	OpGetSystemStatus   Opcode = 0x02
	OpSetPlantProfile   Opcode = 0x03
	OpGetHistory        Opcode = 0x04
	OpSystemReset       Opcode = 0x05
	OpGetDeviceInfo     Opcode = 0x06
	OpSetTime           Opcode = 0x07
	OpGetSampleByTime   Opcode = 0x0A
	OpGetDigitalInput   Opcode = 0x0B
	OpGetPlantProfile   Opcode = 0x0C
	OpSetNetworkConfig  Opcode = 0x0D
	OpGetNetworkConfig  Opcode = 0x0E
	OpNetworkConnect    Opcode = 0x0F
	OpGetTimezone       Opcode = 0x10
	OpSyncTime          Opcode = 0x11
	OpNetworkDisconnect Opcode = 0x12
	OpSaveNetworkConfig Opcode = 0x13
	OpSavePlantProfile  Opcode = 0x14
	OpSetTimezone       Opcode = 0x15
	OpSaveTimezone      Opcode = 0x16
	OpGetLatestSampleV2 Opcode = 0x17
)

// Status is the response status code.
type Status uint8

const (
	StatusSuccess          Status = 0x00
	StatusError            Status = 0x01
	StatusInvalidCommand   Status = 0x02
	StatusInvalidParameter Status = 0x03
	// StatusBusy is reserved. The dispatcher handles busy by silently
	// dropping the colliding frame instead of NACKing it.
	StatusBusy         Status = 0x04
	StatusNotSupported Status = 0x05
)

const (
	// RequestHeaderSize is opcode + sequence + u16 payload length.
	RequestHeaderSize = 4
	// ResponseHeaderSize is opcode echo + status + sequence echo + u16
	// payload length.
	ResponseHeaderSize = 5
	// MaxResponseSize is the fixed response buffer ceiling, header included.
	MaxResponseSize = 256
	// MaxResponsePayload is the largest payload a response can carry.
	MaxResponsePayload = MaxResponseSize - ResponseHeaderSize
)

// ErrFrameTooShort marks a frame smaller than the fixed request header.
var ErrFrameTooShort = errors.New("protocol: frame shorter than header")

// ErrLengthMismatch marks a frame whose declared payload length does not
// match the bytes actually received.
var ErrLengthMismatch = errors.New("protocol: declared payload length mismatch")

// Request is a decoded command frame.
type Request struct {
	Opcode  Opcode
	Seq     uint8
	Payload []byte
}

// Response is a command result ready for encoding.
type Response struct {
	Opcode  Opcode
	Status  Status
	Seq     uint8
	Payload []byte
}

// DecodeRequest parses one complete command frame. The frame must carry
// exactly the payload bytes its header declares.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) < RequestHeaderSize {
		return Request{}, ErrFrameTooShort
	}

	declared := int(binary.LittleEndian.Uint16(frame[2:4]))
	if len(frame) != RequestHeaderSize+declared {
		return Request{}, fmt.Errorf("%w: declared %d, received %d",
			ErrLengthMismatch, declared, len(frame)-RequestHeaderSize)
	}

	return Request{
		Opcode:  Opcode(frame[0]),
		Seq:     frame[1],
		Payload: frame[RequestHeaderSize:],
	}, nil
}

// Encode serializes the response. Payloads beyond the response ceiling are
// truncated; handlers are written to never exceed it.
func (r Response) Encode() []byte {
	payload := r.Payload
	if len(payload) > MaxResponsePayload {
		payload = payload[:MaxResponsePayload]
	}

	out := make([]byte, ResponseHeaderSize+len(payload))
	out[0] = byte(r.Opcode)
	out[1] = byte(r.Status)
	out[2] = r.Seq
	binary.LittleEndian.PutUint16(out[3:5], uint16(len(payload)))
	copy(out[ResponseHeaderSize:], payload)
	return out
}

// EncodeRequest serializes a command frame. Primarily used by tests and the
// paired-controller tooling.
func EncodeRequest(r Request) []byte {
	out := make([]byte, RequestHeaderSize+len(r.Payload))
	out[0] = byte(r.Opcode)
	out[1] = r.Seq
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(r.Payload)))
	copy(out[RequestHeaderSize:], r.Payload)
	return out
}

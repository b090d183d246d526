package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Mode    uint8  `json:"mode,omitempty"`    // Used for: Open
	Offset  int64  `json:"offset,omitempty"`  // Used for: Read, Write (request: position, response: new position)
	Length  uint64 `json:"length,omitempty"`  // Used for: Read (request: buffer size)
	Value   []byte `json:"value,omitempty"`   // Used for: Write (request), Read (response)
	Quantum uint64 `json:"quantum,omitempty"` // Used for: Configure
	QSet    uint64 `json:"qset,omitempty"`    // Used for: Configure

	// Response only fields
	Count uint64 `json:"count,omitempty"` // Used for: Write responses (bytes accepted)
	Code  uint64 `json:"code,omitempty"`  // device.RetCode of the error, 0 on success
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (JSON encoded device.SessionInfo), Custom
}

// AsError reconstructs the error carried by a response (nil if there is none)
func (m *Message) AsError() error {
	if m.Err == "" && m.Code == uint64(device.RetCSuccess) {
		return nil
	}
	code := device.RetCode(m.Code)
	if code == device.RetCSuccess {
		code = device.RetCInternalError
	}
	return device.NewError(code, m.Err)
}

// Geometry returns the geometry carried by a Configure request
func (m *Message) Geometry() qstore.Geometry {
	return qstore.Geometry{Quantum: int(m.Quantum), QSet: int(m.QSet)}
}

// setError stores code and message of err in the message
func (m *Message) setError(err error) *Message {
	if err == nil {
		return m
	}
	var devErr *device.Error
	if errors.As(err, &devErr) {
		m.Code = uint64(devErr.Code)
		m.Err = devErr.Msg
	} else {
		m.Code = uint64(device.RetCInternalError)
		m.Err = err.Error()
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewOpenRequest creates a new Open request
func NewOpenRequest(mode device.Mode) *Message {
	return &Message{
		MsgType: MsgTDevOpen,
		Mode:    uint8(mode),
	}
}

// NewOpenResponse creates a new Open response
func NewOpenResponse(err error) *Message {
	return (&Message{MsgType: MsgTDevOpen}).setError(err)
}

// NewReadRequest creates a new Read request for up to length bytes at offset
func NewReadRequest(offset int64, length int) *Message {
	return &Message{
		MsgType: MsgTDevRead,
		Offset:  offset,
		Length:  uint64(length),
	}
}

// NewReadResponse creates a new Read response
func NewReadResponse(value []byte, offset int64, err error) *Message {
	msg := &Message{
		MsgType: MsgTDevRead,
		Value:   value,
		Offset:  offset,
		Count:   uint64(len(value)),
	}
	return msg.setError(err)
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(offset int64, value []byte) *Message {
	return &Message{
		MsgType: MsgTDevWrite,
		Offset:  offset,
		Value:   value,
	}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(count int, offset int64, err error) *Message {
	msg := &Message{
		MsgType: MsgTDevWrite,
		Count:   uint64(count),
		Offset:  offset,
	}
	return msg.setError(err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest() *Message {
	return &Message{MsgType: MsgTDevRelease}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(err error) *Message {
	return (&Message{MsgType: MsgTDevRelease}).setError(err)
}

// NewResetRequest creates a new Reset request
func NewResetRequest() *Message {
	return &Message{MsgType: MsgTDevReset}
}

// NewResetResponse creates a new Reset response
func NewResetResponse(err error) *Message {
	return (&Message{MsgType: MsgTDevReset}).setError(err)
}

// NewConfigureRequest creates a new Configure request
func NewConfigureRequest(geometry qstore.Geometry) *Message {
	return &Message{
		MsgType: MsgTDevConfigure,
		Quantum: uint64(geometry.Quantum),
		QSet:    uint64(geometry.QSet),
	}
}

// NewConfigureResponse creates a new Configure response
func NewConfigureResponse(err error) *Message {
	return (&Message{MsgType: MsgTDevConfigure}).setError(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTDevInfo}
}

// NewInfoResponse creates a new Info response. The info is carried JSON encoded in Meta.
func NewInfoResponse(info device.SessionInfo, err error) *Message {
	msg := &Message{MsgType: MsgTDevInfo}
	if err != nil {
		return msg.setError(err)
	}
	meta, mErr := json.Marshal(info)
	if mErr != nil {
		return msg.setError(fmt.Errorf("failed to encode info: %w", mErr))
	}
	msg.Meta = meta
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	return msg.setError(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	return (&Message{MsgType: MsgTError}).setError(err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:      "success",
	MsgTError:        "error",
	MsgTDevOpen:      "open",
	MsgTDevRead:      "read",
	MsgTDevWrite:     "write",
	MsgTDevRelease:   "release",
	MsgTDevReset:     "reset",
	MsgTDevConfigure: "configure",
	MsgTDevInfo:      "info",
	MsgTCustom:       "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ISession operations

	MsgTDevOpen      // Open the device
	MsgTDevRead      // Read at most one quantum
	MsgTDevWrite     // Write at most one quantum
	MsgTDevRelease   // Release a handle
	MsgTDevReset     // Reset the device
	MsgTDevConfigure // Change the geometry of an empty device
	MsgTDevInfo      // Get a snapshot of the device state

	// Custom operations

	MsgTCustom // Custom operation type
)

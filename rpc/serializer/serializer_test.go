package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Open request
		{
			MsgType: common.MsgTDevOpen,
			Mode:    2,
		},

		// Write request
		{
			MsgType: common.MsgTDevWrite,
			Offset:  4000,
			Value:   []byte("test-value"),
		},

		// Read response
		{
			MsgType: common.MsgTDevRead,
			Offset:  4010,
			Value:   []byte("test-value"),
			Count:   10,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Code:    3,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTDevConfigure,
			Mode:    1,
			Offset:  1 << 40,
			Length:  4000,
			Value:   []byte("test-quantum-value"),
			Quantum: 4000,
			QSet:    1000,
			Count:   18,
			Code:    4,
			Err:     "out of memory",
			Meta:    []byte(`{"size":0}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is skipped, the JSON serializer rejects it
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestErrorRoundTrip tests that device errors survive the wire with their code
func TestErrorRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			resp := common.NewWriteResponse(0, 12, deviceErr())

			data, err := serializer.Serialize(*resp)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if got := result.AsError(); got == nil || got.Error() != deviceErr().Error() {
				t.Errorf("Error mismatch: expected %v, got %v", deviceErr(), got)
			}
			if result.Offset != 12 {
				t.Errorf("Offset mismatch: expected 12, got %d", result.Offset)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty slices are kept",
			msg: common.Message{
				MsgType: common.MsgTDevRead,
				Value:   []byte{},
				Meta:    []byte{},
			},
		},
		{
			name: "Negative offset",
			msg: common.Message{
				MsgType: common.MsgTDevWrite,
				Offset:  -1,
				Value:   []byte("x"),
			},
		},
		{
			name: "Maximum values",
			msg: common.Message{
				MsgType: common.MsgTDevConfigure,
				Mode:    255,
				Length:  ^uint64(0),
				Quantum: ^uint64(0),
				QSet:    ^uint64(0),
				Count:   ^uint64(0),
				Code:    ^uint64(0),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResetsFields tests that a reused message does not keep stale fields
func TestBinaryDeserializeResetsFields(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{MsgType: common.MsgTDevRead, Offset: 7, Value: []byte("stale"), Err: "stale"}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTSuccess}) {
		t.Errorf("Expected stale fields to be cleared, got %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Truncated offset",
			data:        []byte{1, 0, 0x02, 0, 0, 0, 1}, // Offset flag but only 4 bytes
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 0x08, 0, 0, 0, 10, 'a'}, // Claims value length 10 but only 1 byte provided
			expectError: true,
		},
		{
			name:        "Missing error string",
			data:        []byte{1, 0x01, 0x00}, // Err flag without data
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func deviceErr() error {
	return device.NewError(device.RetCOutOfMemory, "write: no memory left for quantum")
}

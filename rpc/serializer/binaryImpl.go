package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/qdev/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	1 byte  message type
//	2 bytes field flags (big endian)
//	fields in declaration order, only those whose flag is set
//
// Integers are 8 bytes big endian (Mode is 1 byte), byte slices and strings
// are prefixed with a 4 byte length.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasMode    uint16 = 1 << 0
	hasOffset  uint16 = 1 << 1
	hasLength  uint16 = 1 << 2
	hasValue   uint16 = 1 << 3
	hasQuantum uint16 = 1 << 4
	hasQSet    uint16 = 1 << 5
	hasCount   uint16 = 1 << 6
	hasCode    uint16 = 1 << 7
	hasErr     uint16 = 1 << 8
	hasMeta    uint16 = 1 << 9
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, b.sizeBytes(msg)), pos: headerSize}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16
	if msg.Mode != 0 {
		flags |= hasMode
		w.putByte(msg.Mode)
	}
	if msg.Offset != 0 {
		flags |= hasOffset
		w.putUint64(uint64(msg.Offset))
	}
	if msg.Length != 0 {
		flags |= hasLength
		w.putUint64(msg.Length)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.putBytes(msg.Value)
	}
	if msg.Quantum != 0 {
		flags |= hasQuantum
		w.putUint64(msg.Quantum)
	}
	if msg.QSet != 0 {
		flags |= hasQSet
		w.putUint64(msg.QSet)
	}
	if msg.Count != 0 {
		flags |= hasCount
		w.putUint64(msg.Count)
	}
	if msg.Code != 0 {
		flags |= hasCode
		w.putUint64(msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putBytes([]byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)
	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])
	r := binaryReader{data: data, pos: headerSize}

	msg.Mode = 0
	if flags&hasMode != 0 {
		msg.Mode = r.byte("Mode")
	}
	msg.Offset = 0
	if flags&hasOffset != 0 {
		msg.Offset = int64(r.uint64("Offset"))
	}
	msg.Length = 0
	if flags&hasLength != 0 {
		msg.Length = r.uint64("Length")
	}
	msg.Value = nil
	if flags&hasValue != 0 {
		msg.Value = r.bytes("Value")
	}
	msg.Quantum = 0
	if flags&hasQuantum != 0 {
		msg.Quantum = r.uint64("Quantum")
	}
	msg.QSet = 0
	if flags&hasQSet != 0 {
		msg.QSet = r.uint64("QSet")
	}
	msg.Count = 0
	if flags&hasCount != 0 {
		msg.Count = r.uint64("Count")
	}
	msg.Code = 0
	if flags&hasCode != 0 {
		msg.Code = r.uint64("Code")
	}
	msg.Err = ""
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("Err"))
	}
	msg.Meta = nil
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("Meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Mode != 0 {
		size += 1
	}
	for _, v := range []uint64{uint64(msg.Offset), msg.Length, msg.Quantum, msg.QSet, msg.Count, msg.Code} {
		if v != 0 {
			size += 8
		}
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// binaryWriter writes into a buffer that was sized by sizeBytes
type binaryWriter struct {
	buf []byte
	pos int
}

func (w *binaryWriter) putByte(v byte) {
	w.buf[w.pos] = v
	w.pos++
}

func (w *binaryWriter) putUint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:w.pos+8], v)
	w.pos += 8
}

func (w *binaryWriter) putBytes(v []byte) {
	binary.BigEndian.PutUint32(w.buf[w.pos:w.pos+4], uint32(len(v)))
	w.pos += 4
	w.pos += copy(w.buf[w.pos:], v)
}

// binaryReader reads fields and remembers the first error, later reads return zero values
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binaryReader) byte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *binaryReader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// bytes returns a copy of the length prefixed field (an empty, non nil slice for length 0)
func (r *binaryReader) bytes(field string) []byte {
	if !r.need(4, field+" length") {
		return nil
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if !r.need(n, field+" data") {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v
}

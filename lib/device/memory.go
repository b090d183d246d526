package device

import (
	"fmt"
)

// IMemory is the pair of copy primitives through which device data enters
// and leaves the store. dst and src have the same length when called by a session.
type IMemory interface {
	// CopyIn moves caller bytes (src) into a quantum (dst)
	CopyIn(dst, src []byte) error
	// CopyOut moves quantum bytes (src) into the caller buffer (dst)
	CopyOut(dst, src []byte) error
}

// DirectMemory copies between plain Go slices
type DirectMemory struct{}

func (DirectMemory) CopyIn(dst, src []byte) error {
	return directCopy(dst, src)
}

func (DirectMemory) CopyOut(dst, src []byte) error {
	return directCopy(dst, src)
}

func directCopy(dst, src []byte) error {
	if len(dst) < len(src) {
		return fmt.Errorf("short destination: %d < %d bytes", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

package qstore

import (
	"errors"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplQSet Implementation = "qset"
)

// Default geometry of a store (bytes per quantum, slots per segment)
const (
	DefaultQuantum = 4000
	DefaultQSet    = 1000
)

// Feature represents store features as bit flags
type Feature uint64

const (
	FeatureLocate      Feature = 1 << iota // Support for Locate operations
	FeatureReadAt                          // Support for segment ReadAt operations
	FeatureWriteAt                         // Support for segment WriteAt operations
	FeatureReset                           // Support for Reset operations
	FeatureSetGeometry                     // Support for changing the geometry of an empty store
	FeatureMemoryLimit                     // Support for a bounded allocation budget
)

func (f Feature) String() string {
	switch f {
	case FeatureLocate:
		return "Locate"
	case FeatureReadAt:
		return "ReadAt"
	case FeatureWriteAt:
		return "WriteAt"
	case FeatureReset:
		return "Reset"
	case FeatureSetGeometry:
		return "SetGeometry"
	case FeatureMemoryLimit:
		return "MemoryLimit"
	default:
		return "Unknown"
	}
}

type StoreInfo struct {
	SizeBytes         int64          `json:"size_bytes"`
	StoreType         Implementation `json:"store_type"`
	Geometry          Geometry       `json:"geometry"`
	Segments          int            `json:"segments"`
	Quanta            int            `json:"quanta"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrOutOfMemory is returned when a segment, slot array or quantum could not be allocated
	ErrOutOfMemory = errors.New("qstore: out of memory")
	// ErrInvalidGeometry is returned for non-positive or overflowing geometries
	ErrInvalidGeometry = errors.New("qstore: invalid geometry")
	// ErrNotEmpty is returned when the geometry of a store holding segments is changed
	ErrNotEmpty = errors.New("qstore: store is not empty")
	// ErrOutOfRange is returned for slot indices or in-slot offsets outside the geometry
	ErrOutOfRange = errors.New("qstore: position out of range")
)

// --------------------------------------------------------------------------
// Geometry
// --------------------------------------------------------------------------

// Geometry describes the shape of a store: Quantum bytes per quantum buffer
// and QSet slots per segment.
type Geometry struct {
	Quantum int `json:"quantum"`
	QSet    int `json:"qset"`
}

// DefaultGeometry returns the geometry used when nothing else is configured
func DefaultGeometry() Geometry {
	return Geometry{Quantum: DefaultQuantum, QSet: DefaultQSet}
}

// ItemSize returns the number of bytes addressed by one segment
func (g Geometry) ItemSize() int64 {
	return int64(g.Quantum) * int64(g.QSet)
}

// Validate checks that both values are positive and their product fits into an int64
func (g Geometry) Validate() error {
	if g.Quantum <= 0 || g.QSet <= 0 {
		return fmt.Errorf("%w: quantum=%d qset=%d (both must be positive)", ErrInvalidGeometry, g.Quantum, g.QSet)
	}
	if int64(g.Quantum) > math.MaxInt64/int64(g.QSet) {
		return fmt.Errorf("%w: quantum=%d qset=%d overflows the item size", ErrInvalidGeometry, g.Quantum, g.QSet)
	}
	return nil
}

// Position is a byte offset translated into the two-level index of a store
type Position struct {
	Item   int64 // segment index
	Slot   int   // slot index within the segment
	Offset int   // byte offset within the quantum
}

// Translate converts a byte offset into (segment, slot, in-slot offset).
// The offset must not be negative and the geometry must be valid.
func (g Geometry) Translate(offset int64) Position {
	itemSize := g.ItemSize()
	rest := offset % itemSize
	return Position{
		Item:   offset / itemSize,
		Slot:   int(rest / int64(g.Quantum)),
		Offset: int(rest % int64(g.Quantum)),
	}
}

func (g Geometry) String() string {
	return fmt.Sprintf("quantum=%d qset=%d", g.Quantum, g.QSet)
}

// CopyFunc moves len(src) bytes into dst. It is the hook through which
// external copy-in/copy-out primitives reach the quanta. A non-nil error
// means the transfer faulted.
type CopyFunc func(dst, src []byte) error

// --------------------------------------------------------------------------
// Store Interface
// --------------------------------------------------------------------------

// ISegment is a materialized quantum set of a store
type ISegment interface {
	// Index returns the position of the segment in the list
	Index() int64

	// ReadAt copies up to min(len(p), quantum-off) bytes from the quantum in the given slot into p
	// using copyOut (nil means a plain copy). A segment without slot array or an unallocated slot
	// yields 0 bytes and no error.
	ReadAt(slot, off int, p []byte, copyOut CopyFunc) (n int, err error)

	// WriteAt materializes the slot array and the quantum of the given slot if absent and copies
	// up to min(len(p), quantum-off) bytes from p into it using copyIn (nil means a plain copy).
	// A single call never crosses a quantum boundary; callers loop for larger ranges.
	WriteAt(slot, off int, p []byte, copyIn CopyFunc) (n int, err error)

	// HasSlots returns whether the slot array of the segment is allocated
	HasSlots() bool

	// HasQuantum returns whether the quantum in the given slot is allocated
	HasQuantum(slot int) bool
}

// IQuantumStore defines the interface for sparse quantum store implementations.
// A store is a list of segments, each segment an array of lazily allocated
// quanta. Implementations are not required to be thread-safe: the owner
// (usually a device session) serializes all calls.
type IQuantumStore interface {

	// --------------------------------------------------------------------------
	// Segment Operations
	// --------------------------------------------------------------------------

	// Locate returns the segment with the given index. Missing segments up to
	// and including the index are created, in order.
	// If the missing segments do not fit into the memory limit or the maximum size,
	// ErrOutOfMemory is returned and the list stays as it was.
	Locate(item int64) (segment ISegment, err error)

	// Reset releases every quantum, slot array and segment. Resetting an empty store is a no-op.
	Reset()

	// --------------------------------------------------------------------------
	// Geometry
	// --------------------------------------------------------------------------

	// Geometry returns the current geometry
	Geometry() (geometry Geometry)

	// SetGeometry changes the geometry. It returns ErrNotEmpty if the store holds segments.
	SetGeometry(geometry Geometry) (err error)

	// --------------------------------------------------------------------------
	// Statistics
	// --------------------------------------------------------------------------

	// Segments returns the number of materialized segments
	Segments() (count int)

	// AllocatedBytes returns the number of bytes charged against the memory limit
	AllocatedBytes() (size int64)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the store implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the store.
	GetInfo() (info StoreInfo)

	// Close releases all memory of the store.
	Close() (err error)
}

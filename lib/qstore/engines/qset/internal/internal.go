package internal

import (
	"fmt"

	"github.com/ValentinKolb/qdev/lib/qstore"
)

// --------------------------------------------------------------------------
// Allocation Costs
// --------------------------------------------------------------------------

const (
	SegmentOverhead = 16 // bytes charged for the segment header (index + slot array reference)
	SlotPointerSize = 8  // bytes charged per slot of a slot array
)

// --------------------------------------------------------------------------
// Budget (tracks allocations against an optional limit)
// --------------------------------------------------------------------------

// Budget counts allocated bytes. A limit of 0 means unlimited.
type Budget struct {
	limit int64
	used  int64
}

func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Charge reserves n bytes and reports whether the limit allows it.
// A refused charge changes nothing.
func (b *Budget) Charge(n int64) bool {
	if b.limit > 0 && b.used+n > b.limit {
		return false
	}
	b.used += n
	return true
}

// Fits reports whether count reservations of size bytes each would stay within the limit
func (b *Budget) Fits(count, size int64) bool {
	if b.limit == 0 || count <= 0 {
		return true
	}
	return count <= (b.limit-b.used)/size
}

// Clear forgets every reservation
func (b *Budget) Clear() {
	b.used = 0
}

func (b *Budget) Used() int64 {
	return b.used
}

func (b *Budget) Limit() int64 {
	return b.limit
}

// --------------------------------------------------------------------------
// Segment (one quantum set)
// --------------------------------------------------------------------------

// Segment is a quantum set: an optional slot array whose entries point to
// lazily allocated quanta. A nil slots slice means the slot array itself is
// not allocated yet, a nil entry means the quantum is not allocated.
type Segment struct {
	index    int64
	geometry qstore.Geometry
	slots    [][]byte
	quanta   int
	budget   *Budget
}

// NewSegment creates an empty segment. The caller has already charged SegmentOverhead.
func NewSegment(index int64, geometry qstore.Geometry, budget *Budget) *Segment {
	return &Segment{index: index, geometry: geometry, budget: budget}
}

func (s *Segment) Index() int64 {
	return s.index
}

func (s *Segment) HasSlots() bool {
	return s.slots != nil
}

func (s *Segment) HasQuantum(slot int) bool {
	return s.slots != nil && slot >= 0 && slot < len(s.slots) && s.slots[slot] != nil
}

// Quanta returns the number of allocated quanta of this segment
func (s *Segment) Quanta() int {
	return s.quanta
}

func (s *Segment) checkPosition(slot, off int) error {
	if slot < 0 || slot >= s.geometry.QSet || off < 0 || off >= s.geometry.Quantum {
		return fmt.Errorf("%w: slot=%d offset=%d (%s)", qstore.ErrOutOfRange, slot, off, s.geometry)
	}
	return nil
}

// ReadAt copies bytes out of the quantum in slot, starting at off.
func (s *Segment) ReadAt(slot, off int, p []byte, copyOut qstore.CopyFunc) (int, error) {
	if err := s.checkPosition(slot, off); err != nil {
		return 0, err
	}
	if !s.HasQuantum(slot) {
		return 0, nil
	}

	quantum := s.slots[slot]
	n := min(len(p), len(quantum)-off)
	if err := transfer(copyOut, p[:n], quantum[off:off+n]); err != nil {
		return 0, err
	}
	return n, nil
}

// WriteAt materializes the slot array and the quantum if needed, then copies p into the quantum at off.
func (s *Segment) WriteAt(slot, off int, p []byte, copyIn qstore.CopyFunc) (int, error) {
	if err := s.checkPosition(slot, off); err != nil {
		return 0, err
	}

	if s.slots == nil {
		if !s.budget.Charge(int64(s.geometry.QSet) * SlotPointerSize) {
			return 0, fmt.Errorf("%w: slot array of segment %d", qstore.ErrOutOfMemory, s.index)
		}
		s.slots = make([][]byte, s.geometry.QSet)
	}

	if s.slots[slot] == nil {
		if !s.budget.Charge(int64(s.geometry.Quantum)) {
			return 0, fmt.Errorf("%w: quantum %d of segment %d", qstore.ErrOutOfMemory, slot, s.index)
		}
		s.slots[slot] = make([]byte, s.geometry.Quantum)
		s.quanta++
	}

	quantum := s.slots[slot]
	n := min(len(p), len(quantum)-off)
	if err := transfer(copyIn, quantum[off:off+n], p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// Drop releases all quanta and the slot array
func (s *Segment) Drop() {
	for i := range s.slots {
		s.slots[i] = nil
	}
	s.slots = nil
	s.quanta = 0
}

func transfer(fn qstore.CopyFunc, dst, src []byte) error {
	if fn == nil {
		copy(dst, src)
		return nil
	}
	return fn(dst, src)
}

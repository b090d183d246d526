// Package qset implements the qstore.IQuantumStore interface as an ordered
// list of quantum sets, the layout used by scull style character devices.
//
// The package focuses on:
//   - Lazy, in-order creation of segments when an offset is first located
//   - Lazy allocation of the slot array and of each quantum on first write
//   - An optional memory limit that turns allocations into ErrOutOfMemory
//   - Occupancy statistics for monitoring
//
// Key Components:
//
//   - qsetImpl: The store. It keeps the segments in a slice indexed by segment
//     number and charges every allocation against an internal.Budget.
//
//   - internal.Segment: One quantum set. Reads of unallocated slots yield no data,
//     writes allocate what is missing and never cross a quantum boundary.
//
//   - internal.Budget: Byte accounting. Each segment costs internal.SegmentOverhead
//     bytes, each slot array internal.SlotPointerSize bytes per slot and each
//     quantum its full size. A refused charge leaves earlier allocations in place.
//
// Thread Safety:
//
//	The store is not thread-safe. All calls must be serialized by the owner.
//
// Example:
//
//	store, err := qset.NewQSetStore(&qset.Options{
//		Geometry:    qstore.Geometry{Quantum: 4, QSet: 2},
//		MemoryLimit: 1 << 20,
//	})
//	seg, err := store.Locate(0)
//	n, err := seg.WriteAt(0, 0, []byte("ABCD"), nil)
package qset

// Package qstore provides a standardized interface for sparse quantum store implementations.
// A quantum store is a byte array that grows on demand and is addressed through a two-level
// index: an ordered list of segments ("quantum sets"), each holding a fixed number of slots,
// each slot lazily pointing to a fixed-size buffer ("quantum").
//
// The package focuses on:
//   - A unified interface for segment lookup, segment-level reads and writes, and reset
//   - Offset translation through the Geometry type
//   - Feature discovery through capability flags
//   - Standardized metadata reporting
//
// Key Components:
//
//   - IQuantumStore Interface: The core interface that all store implementations must satisfy.
//     It provides Locate (walk and extend the segment list), Reset (release everything),
//     geometry management (Geometry, SetGeometry) and statistics (Segments, AllocatedBytes, GetInfo).
//
//   - ISegment Interface: A materialized segment. ReadAt and WriteAt operate on exactly one
//     quantum per call and never cross a quantum boundary. Moving bytes in or out of a quantum
//     goes through a CopyFunc so that callers can plug in their own copy primitives (and their
//     own fault behavior).
//
//   - Geometry: Quantum (bytes per quantum) and QSet (slots per segment). Translate turns a byte
//     offset into a Position (segment, slot, in-slot offset) with item size = Quantum * QSet.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
// Sparseness:
//
//	Segments are always created in order up to the requested index, there are no holes at the
//	segment level. Holes only exist at the slot level: a slot stays unallocated until a byte
//	inside its range is written, and reading an unallocated slot yields no data.
//
// Thread Safety:
//
//	Stores are not thread-safe. The owner (a device session in this module) holds an exclusive
//	lock around every call.
//
// Related Packages:
//
// The engines/qset package (github.com/ValentinKolb/qdev/lib/qstore/engines/qset) provides the
// segment list implementation with an optional memory limit.
//
// The util package (github.com/ValentinKolb/qdev/lib/qstore/util) provides statistics helpers
// used for store metadata.
//
// The testing package (github.com/ValentinKolb/qdev/lib/qstore/testing) provides
// standardized tests and benchmarks for store implementations.
//   - RunStoreTests: Runs a standardized test suite to validate implementations
//   - RunStoreBenchmarks: Provides performance benchmarks for comparing implementations
package qstore

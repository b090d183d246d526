// Package testing provides standardised tests and benchmarks for
// store implementations that satisfy the qstore.IQuantumStore interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the IQuantumStore contract
//     (in-order segment creation, lazy quanta, quantum boundaries, reset, memory limit)
//   - benchmark: Performance tests for sequential and random segment access
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(geometry qstore.Geometry, memoryLimit int64) qstore.IQuantumStore {
//		return NewMyStore(geometry, memoryLimit)
//	}
//
//	// Running the standard test suite
//	qstoretesting.RunStoreTests(t, "MyStore", factory)
//
//	// Running performance benchmarks
//	qstoretesting.RunStoreBenchmarks(b, "MyStore", factory)
package testing

// Package util provides utility components for
// store implementations that satisfy the qstore.IQuantumStore interface
// and for the device sessions built on top of them.
//
// The package contains:
//   - statistics: Stats and DistributionStats for describing how evenly quanta are spread
//     over the segments of a store, and transfer histograms (rcrowley/go-metrics) with a
//     JSON friendly Summary for tracking the size of read and write requests
//
// This package is particularly useful for:
//   - Store developers implementing the IQuantumStore interface
//   - Monitoring systems that need to report store occupancy and request sizes
package util

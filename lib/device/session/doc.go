// Package session implements the device.ISession interface on top of a qstore.IQuantumStore.
//
// This session implementation is local: the store lives in the memory of the
// calling process. One semaphore of weight 1 guards the store and the size of the
// device, it is acquired with the caller's context so waiting can be interrupted.
//
// Every call follows the same pattern:
//  1. acquire the device lock (a done context fails with device.ErrRestart)
//  2. translate the position into (segment, slot, offset) using the current geometry
//  3. locate the segment and move at most the rest of one quantum
//  4. release the lock on every path
//
// Per device metrics (bytes read and written, operations by result, current size)
// are registered on an optional VictoriaMetrics metrics.Set.
package session

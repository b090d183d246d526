// Package device defines the entry points of a logical storage device and the
// types shared by its implementations, the registry, the RPC front end and the CLI.
//
// The package focuses on:
//   - The ISession interface (open, read, write, release, reset, configure, info)
//   - A coded error type that survives serialization over RPC
//   - The copy primitives (IMemory) through which data enters and leaves a device
//   - A position tracking File handle that adapts a session to the io interfaces
//
// Key Components:
//
//   - ISession: One logical device. Every blocking call takes a context.Context and waits on a
//     single exclusive device lock. A done context turns into ErrRestart without touching state.
//     Reads and writes move at most one quantum per call, so callers loop (File does that for writes).
//
//   - Error and RetCode: Every error returned by a session is an *Error. errors.Is matches
//     by code, so errors.Is(err, device.ErrOutOfMemory) is true for any out of memory error
//     regardless of its message. End of data is not an error: Read returns 0, nil.
//
//   - IMemory and DirectMemory: CopyIn and CopyOut are handed to the store for every transfer.
//     A failing primitive surfaces as ErrFault.
//
//   - File: io.Reader, io.Writer, io.Seeker and io.Closer over an ISession. Read maps the
//     end of data to io.EOF. Write loops until everything is accepted.
//
// Related Packages:
//
// The session package (github.com/ValentinKolb/qdev/lib/device/session) implements ISession
// on top of a qstore.IQuantumStore.
//
// The registry package (github.com/ValentinKolb/qdev/lib/device/registry) owns a table of
// sessions addressed by minor number.
package device

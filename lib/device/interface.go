package device

import (
	"context"

	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/util"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// StoreFactory is a function type that creates the store used by a session.
// This is used to abstract the creation of the store from the session implementation.
type StoreFactory func() (qstore.IQuantumStore, error)

// Mode is the access mode passed to Open
type Mode uint8

const (
	ModeReadOnly  Mode = iota // open for reading
	ModeWriteOnly             // open for writing only, truncates the device
	ModeReadWrite             // open for reading and writing
)

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "ReadOnly"
	case ModeWriteOnly:
		return "WriteOnly"
	case ModeReadWrite:
		return "ReadWrite"
	default:
		return "Unknown"
	}
}

// SessionInfo is a snapshot of the state of a device
type SessionInfo struct {
	Size     int64            `json:"size"`
	Geometry qstore.Geometry  `json:"geometry"`
	Opens    int64            `json:"opens"`
	Reads    util.Summary     `json:"reads"`
	Writes   util.Summary     `json:"writes"`
	Store    qstore.StoreInfo `json:"store"`
}

// ISession is the entry point surface of one logical device.
// Every method that takes a context blocks on the exclusive device lock and
// returns ErrRestart if the context is done before the lock is acquired.
// All errors are of type *Error.
type ISession interface {
	// Open records an open of the device. Opening with ModeWriteOnly resets the device
	// (size 0, all memory released, default geometry restored).
	Open(ctx context.Context, mode Mode) (err error)

	// Read copies at most one quantum of data starting at *pos into p and advances *pos.
	// Reading at or beyond the end of data returns 0 and no error (end of stream).
	Read(ctx context.Context, p []byte, pos *int64) (n int, err error)

	// Write copies at most one quantum of data from p into the device at *pos, advances *pos
	// and extends the size of the device. Callers loop to write larger ranges.
	Write(ctx context.Context, p []byte, pos *int64) (n int, err error)

	// Release records that a handle was closed. It never blocks.
	Release() (err error)

	// Reset releases all memory of the device and restores the default geometry.
	Reset(ctx context.Context) (err error)

	// Configure changes the geometry of an empty device.
	Configure(ctx context.Context, geometry qstore.Geometry) (err error)

	// Info returns a snapshot of the device state.
	Info(ctx context.Context) (info SessionInfo, err error)
}

package device

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// File (position tracking handle)
// --------------------------------------------------------------------------

// File is an open handle on a session that tracks its own position.
// It implements io.Reader, io.Writer, io.Seeker and io.Closer. All calls use
// the context the file was opened with.
//
// Thread-safety: A File must not be used from multiple goroutines at once.
// Multiple files on the same session are safe.
type File struct {
	ctx     context.Context
	session ISession
	pos     int64
	closed  bool
}

var ErrClosed = errors.New("device: file already closed")

// OpenFile opens the session with the given mode and returns a handle positioned at 0
func OpenFile(ctx context.Context, session ISession, mode Mode) (*File, error) {
	if err := session.Open(ctx, mode); err != nil {
		return nil, err
	}
	return &File{ctx: ctx, session: session}, nil
}

// Pos returns the current position
func (f *File) Pos() int64 {
	return f.pos
}

// Read issues a single device read. The end of data (and unwritten holes,
// which read as no data) are reported as io.EOF.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.session.Read(f.ctx, p, &f.pos)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write loops until all of p is written or an error occurs
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	written := 0
	for written < len(p) {
		n, err := f.session.Write(f.ctx, p[written:], &f.pos)
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Seek sets the position for the next Read or Write. io.SeekEnd is relative to the device size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		info, err := f.session.Info(f.ctx)
		if err != nil {
			return f.pos, err
		}
		base = info.Size
	default:
		return f.pos, Errorf(RetCInvalidOperation, "invalid whence %d", whence)
	}

	if base+offset < 0 {
		return f.pos, Errorf(RetCInvalidOperation, "negative position %d", base+offset)
	}
	f.pos = base + offset
	return f.pos, nil
}

// ReadAll reads from the current position until the end of data
func (f *File) ReadAll() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// Close releases the handle, further calls fail with ErrClosed
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return f.session.Release()
}

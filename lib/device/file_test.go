package device_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/device/session"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/engines/qset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) device.ISession {
	t.Helper()
	s, err := session.NewSession(func() (qstore.IQuantumStore, error) {
		return qset.NewQSetStore(&qset.Options{Geometry: qstore.Geometry{Quantum: 4, QSet: 2}})
	}, nil)
	require.NoError(t, err)
	return s
}

func TestFileWriteReadAll(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	w, err := device.OpenFile(ctx, s, device.ModeWriteOnly)
	require.NoError(t, err)
	n, err := w.Write([]byte("hello quantum world"))
	require.NoError(t, err)
	assert.Equal(t, 19, n)
	assert.Equal(t, int64(19), w.Pos())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), device.ErrClosed)

	r, err := device.OpenFile(ctx, s, device.ModeReadOnly)
	require.NoError(t, err)
	data, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello quantum world", string(data))

	// at the end of data Read reports io.EOF
	n, err = r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileReadStopsAtQuantum(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	f, err := device.OpenFile(ctx, s, device.ModeReadWrite)
	require.NoError(t, err)
	_, err = f.Write([]byte("ABCDEFGHIJ"))
	require.NoError(t, err)

	_, err = f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "CD", string(buf[:n]))
}

func TestFileSeek(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	f, err := device.OpenFile(ctx, s, device.ModeReadWrite)
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := f.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	pos, err = f.Seek(1, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	_, err = f.Seek(-100, io.SeekCurrent)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)
	_, err = f.Seek(0, 42)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)
	assert.Equal(t, int64(8), f.Pos())

	var out bytes.Buffer
	_, err = io.Copy(&out, f)
	require.NoError(t, err)
	assert.Equal(t, "89", out.String())
}

func TestFileWriteError(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())

	f, err := device.OpenFile(ctx, s, device.ModeReadWrite)
	require.NoError(t, err)
	cancel()

	n, err := f.Write([]byte("data"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, device.ErrRestart)
}

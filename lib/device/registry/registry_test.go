package registry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupAndGet(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Setup(2, 3, qstore.Geometry{Quantum: 4, QSet: 2}))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []uint64{2, 3, 4}, r.Minors())

	s, err := r.Get(3)
	require.NoError(t, err)
	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, qstore.Geometry{Quantum: 4, QSet: 2}, info.Geometry)

	_, err = r.Get(7)
	assert.ErrorIs(t, err, device.ErrNoDevice)
}

func TestCreateDefaultsAndDuplicates(t *testing.T) {
	r := New(nil)
	s, err := r.Create(0, qstore.Geometry{})
	require.NoError(t, err)

	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, qstore.DefaultGeometry(), info.Geometry)

	_, err = r.Create(0, qstore.Geometry{})
	assert.ErrorIs(t, err, device.ErrInvalidOperation)

	_, err = r.Create(1, qstore.Geometry{Quantum: -4, QSet: 2})
	assert.ErrorIs(t, err, device.ErrInvalidOperation)

	assert.ErrorIs(t, r.Setup(0, 0, qstore.Geometry{}), device.ErrInvalidOperation)
	assert.Error(t, r.Setup(0, 2, qstore.Geometry{}))
}

func TestDevicesAreIndependent(t *testing.T) {
	r := New(&Options{MemoryLimit: 1 << 16})
	require.NoError(t, r.Setup(0, 2, qstore.Geometry{Quantum: 4, QSet: 2}))
	ctx := context.Background()

	a, _ := r.Get(0)
	b, _ := r.Get(1)

	pos := int64(0)
	_, err := a.Write(ctx, []byte("AAAA"), &pos)
	require.NoError(t, err)

	pos = 0
	n, err := b.Read(ctx, make([]byte, 4), &pos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryLimitPerDevice(t *testing.T) {
	// room for one segment header, one slot array and one quantum
	r := New(&Options{MemoryLimit: 16 + 2*8 + 4})
	require.NoError(t, r.Setup(0, 1, qstore.Geometry{Quantum: 4, QSet: 2}))
	s, _ := r.Get(0)

	pos := int64(4)
	_, err := s.Write(context.Background(), []byte("ABCD"), &pos)
	require.NoError(t, err)
	_, err = s.Write(context.Background(), []byte("ABCD"), &pos)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)
}

func TestMaxSizePerDevice(t *testing.T) {
	r := New(&Options{MaxSize: 16})
	require.NoError(t, r.Setup(0, 1, qstore.Geometry{Quantum: 1, QSet: 1}))
	s, _ := r.Get(0)
	ctx := context.Background()

	pos := int64(15)
	_, err := s.Write(ctx, []byte("A"), &pos)
	require.NoError(t, err)

	pos = 1 << 22
	n, err := s.Write(ctx, []byte("B"), &pos)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)
	assert.Equal(t, 0, n)

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.Size)
	assert.Equal(t, 16, info.Store.Segments)
}

func TestTeardown(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Setup(0, 4, qstore.Geometry{Quantum: 4, QSet: 2}))
	ctx := context.Background()

	sessions := make([]device.ISession, 0, 4)
	for _, minor := range r.Minors() {
		s, err := r.Get(minor)
		require.NoError(t, err)
		pos := int64(0)
		_, err = s.Write(ctx, []byte("DATA"), &pos)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	require.NoError(t, r.Teardown(ctx))
	assert.Equal(t, 0, r.Len())

	for _, s := range sessions {
		info, err := s.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.Size)
		assert.Equal(t, 0, info.Store.Segments)
	}
}

// failingSession is a device whose reset always fails
type failingSession struct {
	device.ISession
}

func (failingSession) Reset(context.Context) error {
	return errors.New("reset failed")
}

// gatedMemory holds every CopyIn until open is closed
type gatedMemory struct {
	entered chan struct{}
	open    chan struct{}
}

func (m *gatedMemory) CopyIn(dst, src []byte) error {
	m.entered <- struct{}{}
	<-m.open
	copy(dst, src)
	return nil
}

func (m *gatedMemory) CopyOut(dst, src []byte) error {
	copy(dst, src)
	return nil
}

func TestTeardownResetsEveryDeviceDespiteFailure(t *testing.T) {
	mem := &gatedMemory{entered: make(chan struct{}, 1), open: make(chan struct{})}
	r := New(&Options{Memory: mem})
	require.NoError(t, r.Setup(1, 1, qstore.Geometry{Quantum: 4, QSet: 2}))
	r.devices.Store(0, failingSession{})
	ctx := context.Background()

	busy, _ := r.Get(1)
	written := make(chan error, 1)
	go func() {
		pos := int64(0)
		_, err := busy.Write(ctx, []byte("DATA"), &pos)
		written <- err
	}()
	<-mem.entered

	// the failing device returns at once while the busy one still waits for its lock
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(mem.open)
	}()

	err := r.Teardown(ctx)
	assert.EqualError(t, err, "device 0: reset failed")
	require.NoError(t, <-written)
	assert.Equal(t, 0, r.Len())

	info, err := busy.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
	assert.Equal(t, 0, info.Store.Segments)
}

func TestTeardownCancelled(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Setup(0, 2, qstore.Geometry{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Teardown(ctx), device.ErrRestart)
	assert.Equal(t, 0, r.Len())
}

func TestWritePrometheus(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Setup(5, 1, qstore.Geometry{Quantum: 4, QSet: 2}))
	s, _ := r.Get(5)

	pos := int64(0)
	_, err := s.Write(context.Background(), []byte("AB"), &pos)
	require.NoError(t, err)

	var out bytes.Buffer
	r.WritePrometheus(&out)
	assert.Contains(t, out.String(), `qdev_size_bytes{device="5"} 2`)
	assert.Contains(t, out.String(), `qdev_write_bytes_total{device="5"} 2`)
}

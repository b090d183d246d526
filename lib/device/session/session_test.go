package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/engines/qset"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

var small = qstore.Geometry{Quantum: 4, QSet: 2}

func factory(geometry qstore.Geometry, memoryLimit int64) device.StoreFactory {
	return func() (qstore.IQuantumStore, error) {
		return qset.NewQSetStore(&qset.Options{Geometry: geometry, MemoryLimit: memoryLimit})
	}
}

func newTestSession(t *testing.T, geometry qstore.Geometry, opts *Options) device.ISession {
	t.Helper()
	s, err := NewSession(factory(geometry, 0), opts)
	require.NoError(t, err)
	return s
}

// writeAll writes p at offset by looping over single device writes
func writeAll(t *testing.T, s device.ISession, offset int64, p []byte) {
	t.Helper()
	pos := offset
	for len(p) > 0 {
		n, err := s.Write(context.Background(), p, &pos)
		require.NoError(t, err)
		require.Positive(t, n)
		p = p[n:]
	}
}

// readRange reads length bytes at offset, stopping early at the end of data
func readRange(t *testing.T, s device.ISession, offset int64, length int) []byte {
	t.Helper()
	out := make([]byte, 0, length)
	pos := offset
	for len(out) < length {
		buf := make([]byte, length-len(out))
		n, err := s.Read(context.Background(), buf, &pos)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}

func size(t *testing.T, s device.ISession) int64 {
	t.Helper()
	info, err := s.Info(context.Background())
	require.NoError(t, err)
	return info.Size
}

// faultMemory rejects every transfer
type faultMemory struct{}

func (faultMemory) CopyIn(dst, src []byte) error  { return errors.New("bad user pointer") }
func (faultMemory) CopyOut(dst, src []byte) error { return errors.New("bad user pointer") }

// readFaultMemory accepts writes but rejects every read
type readFaultMemory struct{}

func (readFaultMemory) CopyIn(dst, src []byte) error  { copy(dst, src); return nil }
func (readFaultMemory) CopyOut(dst, src []byte) error { return errors.New("bad user pointer") }

// blockingMemory blocks CopyIn until release is closed
type blockingMemory struct {
	entered chan struct{}
	release chan struct{}
}

func (m *blockingMemory) CopyIn(dst, src []byte) error {
	close(m.entered)
	<-m.release
	copy(dst, src)
	return nil
}

func (m *blockingMemory) CopyOut(dst, src []byte) error {
	copy(dst, src)
	return nil
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestWriteThenRead(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	pos := int64(0)
	n, err := s.Write(ctx, []byte("AB"), &pos)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), pos)

	pos = 0
	buf := make([]byte, 8)
	n, err = s.Read(ctx, buf, &pos)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("AB"), buf[:n])
	assert.Equal(t, int64(2), pos)
}

func TestQuantumSetScenario(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	// each write stops at the next quantum boundary
	data := []byte("ABCDEFGHIJ")
	pos := int64(0)
	var accepted []int
	for pos < int64(len(data)) {
		n, err := s.Write(ctx, data[pos:], &pos)
		require.NoError(t, err)
		accepted = append(accepted, n)
	}
	assert.Equal(t, []int{4, 4, 2}, accepted)
	assert.Equal(t, int64(10), size(t, s))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Store.Segments)
	assert.Equal(t, 3, info.Store.Quanta)

	// read stops at the end of data
	pos = 8
	buf := make([]byte, 10)
	n, err := s.Read(ctx, buf, &pos)
	require.NoError(t, err)
	assert.Equal(t, "IJ", string(buf[:n]))

	// read stops at the quantum boundary
	pos = 6
	n, err = s.Read(ctx, buf, &pos)
	require.NoError(t, err)
	assert.Equal(t, "GH", string(buf[:n]))

	// end of stream
	pos = 10
	n, err = s.Read(ctx, buf, &pos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, data, readRange(t, s, 0, 100))
}

func TestSpanAcrossSegments(t *testing.T) {
	s := newTestSession(t, small, nil)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	writeAll(t, s, 5, payload)

	assert.Equal(t, int64(105), size(t, s))
	assert.Equal(t, payload, readRange(t, s, 5, len(payload)))
	assert.Equal(t, payload[10:30], readRange(t, s, 15, 20))
}

func TestSizeIsHighWaterMark(t *testing.T) {
	s := newTestSession(t, small, nil)

	writeAll(t, s, 20, []byte("XY"))
	assert.Equal(t, int64(22), size(t, s))

	// a write below the size does not shrink it
	writeAll(t, s, 0, []byte("AB"))
	assert.Equal(t, int64(22), size(t, s))

	writeAll(t, s, 22, []byte("Z"))
	assert.Equal(t, int64(23), size(t, s))
}

func TestReadAtOrBeyondSize(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()
	buf := make([]byte, 4)

	pos := int64(0)
	n, err := s.Read(ctx, buf, &pos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	writeAll(t, s, 0, []byte("ABC"))

	for _, at := range []int64{3, 4, 1000} {
		pos := at
		n, err := s.Read(ctx, buf, &pos)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "read at %d", at)
		assert.Equal(t, at, pos, "position must not move at %d", at)
	}
}

func TestReadHoleYieldsNoData(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	// offset 12 lives in segment 1, slot 1. Segment 0 exists but has no slot array.
	writeAll(t, s, 12, []byte("Q"))

	pos := int64(0)
	n, err := s.Read(ctx, make([]byte, 4), &pos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// slot 0 of segment 1 is unallocated while slot 1 holds data
	pos = 8
	n, err = s.Read(ctx, make([]byte, 4), &pos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestResetClearsContent(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	writeAll(t, s, 0, []byte("ABCDEFGHIJ"))
	require.NoError(t, s.Reset(ctx))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
	assert.Equal(t, 0, info.Store.Segments)
	assert.Equal(t, int64(0), info.Store.SizeBytes)
	assert.Empty(t, readRange(t, s, 0, 10))

	// idempotent
	require.NoError(t, s.Reset(ctx))
}

func TestOpenWriteOnlyTruncates(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	writeAll(t, s, 0, []byte("ABCDEFGH"))

	require.NoError(t, s.Open(ctx, device.ModeReadOnly))
	assert.Equal(t, int64(8), size(t, s))

	require.NoError(t, s.Open(ctx, device.ModeReadWrite))
	assert.Equal(t, int64(8), size(t, s))

	require.NoError(t, s.Open(ctx, device.ModeWriteOnly))
	assert.Equal(t, int64(0), size(t, s))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Opens)

	assert.ErrorIs(t, s.Open(ctx, device.Mode(42)), device.ErrInvalidOperation)
	require.NoError(t, s.Release())
}

func TestResetRestoresDefaultGeometry(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	wide := qstore.Geometry{Quantum: 16, QSet: 4}
	require.NoError(t, s.Configure(ctx, wide))

	pos := int64(0)
	n, err := s.Write(ctx, []byte("0123456789ABCDEFGHIJ"), &pos)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	require.NoError(t, s.Open(ctx, device.ModeWriteOnly))
	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, small, info.Geometry)
}

func TestConfigure(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Configure(ctx, qstore.Geometry{Quantum: 0, QSet: 1}), device.ErrInvalidOperation)

	writeAll(t, s, 0, []byte("A"))
	assert.ErrorIs(t, s.Configure(ctx, qstore.Geometry{Quantum: 8, QSet: 8}), device.ErrInvalidOperation)

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Configure(ctx, qstore.Geometry{Quantum: 8, QSet: 8}))

	pos := int64(0)
	n, err := s.Write(ctx, []byte("ABCDEFGHIJ"), &pos)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestNegativeOrMissingPosition(t *testing.T) {
	s := newTestSession(t, small, nil)
	ctx := context.Background()

	pos := int64(-1)
	_, err := s.Write(ctx, []byte("A"), &pos)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)
	_, err = s.Read(ctx, make([]byte, 1), &pos)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)
	_, err = s.Read(ctx, make([]byte, 1), nil)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)
}

func TestRestartOnCancelledContext(t *testing.T) {
	s := newTestSession(t, small, nil)
	writeAll(t, s, 0, []byte("ABCD"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pos := int64(4)
	n, err := s.Write(ctx, []byte("EFGH"), &pos)
	assert.ErrorIs(t, err, device.ErrRestart)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(4), pos)

	pos = 0
	_, err = s.Read(ctx, make([]byte, 4), &pos)
	assert.ErrorIs(t, err, device.ErrRestart)
	assert.Equal(t, int64(0), pos)

	assert.ErrorIs(t, s.Reset(ctx), device.ErrRestart)
	assert.ErrorIs(t, s.Open(ctx, device.ModeWriteOnly), device.ErrRestart)
	assert.ErrorIs(t, s.Configure(ctx, small), device.ErrRestart)
	_, err = s.Info(ctx)
	assert.ErrorIs(t, err, device.ErrRestart)

	// nothing changed
	assert.Equal(t, []byte("ABCD"), readRange(t, s, 0, 10))
}

func TestRestartWhileLockHeld(t *testing.T) {
	mem := &blockingMemory{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(t, small, &Options{Memory: mem})

	done := make(chan error, 1)
	go func() {
		pos := int64(0)
		_, err := s.Write(context.Background(), []byte("ABCD"), &pos)
		done <- err
	}()
	<-mem.entered

	// the writer holds the lock, a bounded wait is interrupted
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	pos := int64(0)
	_, err := s.Read(ctx, make([]byte, 4), &pos)
	assert.ErrorIs(t, err, device.ErrRestart)

	close(mem.release)
	require.NoError(t, <-done)
	assert.Equal(t, []byte("ABCD"), readRange(t, s, 0, 4))
}

func TestFaultReleasesLock(t *testing.T) {
	s, err := NewSession(factory(small, 0), &Options{Memory: faultMemory{}})
	require.NoError(t, err)
	ctx := context.Background()

	pos := int64(0)
	n, err := s.Write(ctx, []byte("ABCD"), &pos)
	assert.ErrorIs(t, err, device.ErrFault)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), pos)

	// the lock was released and the size did not move
	assert.Equal(t, int64(0), size(t, s))
}

func TestFaultOnRead(t *testing.T) {
	s := newTestSession(t, small, &Options{Memory: readFaultMemory{}})
	ctx := context.Background()

	writeAll(t, s, 0, []byte("ABCD"))

	pos := int64(1)
	n, err := s.Read(ctx, make([]byte, 4), &pos)
	assert.ErrorIs(t, err, device.ErrFault)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(1), pos)
	assert.Equal(t, int64(4), size(t, s))
}

func TestOutOfMemoryKeepsEarlierAllocations(t *testing.T) {
	// one segment header, one slot array and one quantum
	limit := int64(16 + 2*8 + 4)
	s, err := NewSession(factory(small, limit), nil)
	require.NoError(t, err)
	ctx := context.Background()

	pos := int64(0)
	n, err := s.Write(ctx, []byte("ABCDEFGH"), &pos)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.Write(ctx, []byte("EFGH"), &pos)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(4), pos)

	// a new segment fails as well
	pos = 8
	_, err = s.Write(ctx, []byte("IJ"), &pos)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, 1, info.Store.Quanta)
	assert.Equal(t, []byte("ABCD"), readRange(t, s, 0, 8))
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	const (
		writers = 8
		rounds  = 200
		quanta  = 32
	)
	s := newTestSession(t, small, nil)

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		fill := bytes.Repeat([]byte{byte('A' + w)}, small.Quantum)
		seed := int64(w)
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < rounds; i++ {
				pos := int64(r.Intn(quanta) * small.Quantum)
				n, err := s.Write(context.Background(), fill, &pos)
				if err != nil {
					return err
				}
				if n != small.Quantum {
					return fmt.Errorf("short write: %d", n)
				}
			}
			return nil
		})
	}

	// concurrent readers only ever see whole quanta of one writer
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			buf := make([]byte, small.Quantum)
			for i := 0; i < rounds; i++ {
				pos := int64((i % quanta) * small.Quantum)
				n, err := s.Read(context.Background(), buf, &pos)
				if err != nil {
					return err
				}
				if n > 0 && !bytes.Equal(buf[:n], bytes.Repeat(buf[:1], n)) {
					return fmt.Errorf("interleaved quantum %q", buf[:n])
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	data := readRange(t, s, 0, quanta*small.Quantum)
	for q := 0; q+small.Quantum <= len(data); q += small.Quantum {
		chunk := data[q : q+small.Quantum]
		assert.Equal(t, bytes.Repeat(chunk[:1], small.Quantum), chunk, "quantum at %d", q)
	}

	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(writers*rounds), info.Writes.Count)
}

func TestMetrics(t *testing.T) {
	set := metrics.NewSet()
	s := newTestSession(t, small, &Options{Metrics: set, Label: "3"})
	ctx := context.Background()

	writeAll(t, s, 0, []byte("ABCDEF"))
	readRange(t, s, 0, 6)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = s.Reset(cancelled)

	var out bytes.Buffer
	set.WritePrometheus(&out)
	text := out.String()

	assert.Contains(t, text, `qdev_write_bytes_total{device="3"} 6`)
	assert.Contains(t, text, `qdev_read_bytes_total{device="3"} 6`)
	assert.Contains(t, text, `qdev_size_bytes{device="3"} 6`)
	assert.Contains(t, text, `qdev_ops_total{device="3",op="write",result="ok"} 2`)
	assert.Contains(t, text, `qdev_ops_total{device="3",op="reset",result="restart"} 1`)
}

func TestNewSessionStoreError(t *testing.T) {
	_, err := NewSession(factory(qstore.Geometry{Quantum: -1, QSet: 1}, 0), nil)
	assert.ErrorIs(t, err, qstore.ErrInvalidGeometry)
}

func TestInfoTransferSizes(t *testing.T) {
	s := newTestSession(t, qstore.DefaultGeometry(), nil)
	ctx := context.Background()

	chunk := bytes.Repeat([]byte("q"), qstore.DefaultQuantum)
	for i := 0; i < 10; i++ {
		writeAll(t, s, int64(i*qstore.DefaultQuantum), chunk)
	}
	readRange(t, s, 0, 2*qstore.DefaultQuantum)

	info, err := s.Info(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(10), info.Writes.Count)
	assert.Equal(t, int64(40000), info.Writes.Total)
	assert.InDelta(t, 4000.0, info.Writes.Average, 1e-9)
	assert.InDelta(t, 4000.0, info.Writes.P50, 1e-9)
	assert.InDelta(t, 4000.0, info.Writes.P99, 1e-9)
	assert.Equal(t, int64(4000), info.Writes.Max)

	assert.Equal(t, int64(2), info.Reads.Count)
	assert.InDelta(t, 4000.0, info.Reads.P99, 1e-9)
}

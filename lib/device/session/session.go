package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/util"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/semaphore"
)

// --------------------------------------------------------------------------
// Session structure
// --------------------------------------------------------------------------

type sessionImpl struct {
	lock     *semaphore.Weighted // exclusive device lock
	store    qstore.IQuantumStore
	defaults qstore.Geometry // geometry restored on reset
	memory   device.IMemory

	size  atomic.Int64 // only written while holding the lock
	opens atomic.Int64

	reads  gometrics.Histogram // sizes of successful reads
	writes gometrics.Histogram // sizes of successful writes

	metrics *sessionMetrics // nil if no metrics set is configured
}

// Options configures a session
type Options struct {
	Memory  device.IMemory // copy primitives (nil = device.DirectMemory)
	Metrics *metrics.Set   // set to register the device metrics on (nil = no metrics)
	Label   string         // value of the "device" label of all metrics
}

// NewSession creates a new local session on the store created by factory.
// The geometry the store starts with becomes the default geometry of the device.
func NewSession(factory device.StoreFactory, opts *Options) (device.ISession, error) {
	if opts == nil {
		opts = &Options{}
	}

	store, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	s := &sessionImpl{
		lock:     semaphore.NewWeighted(1),
		store:    store,
		defaults: store.Geometry(),
		memory:   opts.Memory,
		reads:    util.NewTransferHistogram(),
		writes:   util.NewTransferHistogram(),
	}
	if s.memory == nil {
		s.memory = device.DirectMemory{}
	}
	if opts.Metrics != nil {
		s.metrics = newSessionMetrics(opts.Metrics, opts.Label, &s.size)
	}

	return s, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// acquire takes the device lock or fails with a restart error once ctx is done
func (s *sessionImpl) acquire(ctx context.Context, op string) error {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return device.Errorf(device.RetCRestart, "%s interrupted while waiting for the device lock: %v", op, err)
	}
	return nil
}

func (s *sessionImpl) release() {
	s.lock.Release(1)
}

// reset drops all memory, zeroes the size and restores the default geometry.
// The caller must hold the lock.
func (s *sessionImpl) reset() error {
	s.store.Reset()
	s.size.Store(0)
	if err := s.store.SetGeometry(s.defaults); err != nil {
		return device.Errorf(device.RetCInternalError, "failed to restore geometry %s: %v", s.defaults, err)
	}
	return nil
}

// storeError converts errors of the store into device errors
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, qstore.ErrOutOfMemory):
		return device.Errorf(device.RetCOutOfMemory, "%s: %v", op, err)
	case errors.Is(err, qstore.ErrOutOfRange), errors.Is(err, qstore.ErrNotEmpty), errors.Is(err, qstore.ErrInvalidGeometry):
		return device.Errorf(device.RetCInvalidOperation, "%s: %v", op, err)
	default:
		return device.Errorf(device.RetCInternalError, "%s: %v", op, err)
	}
}

// checkPos validates a position pointer passed to Read or Write
func checkPos(op string, pos *int64) error {
	if pos == nil {
		return device.Errorf(device.RetCInvalidOperation, "%s: missing position", op)
	}
	if *pos < 0 {
		return device.Errorf(device.RetCInvalidOperation, "%s: negative position %d", op, *pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see device/interface.go)
// --------------------------------------------------------------------------

func (s *sessionImpl) Open(ctx context.Context, mode device.Mode) (err error) {
	defer func() { s.metrics.observe("open", err) }()

	switch mode {
	case device.ModeReadOnly, device.ModeReadWrite:
	case device.ModeWriteOnly:
		if err := s.acquire(ctx, "open"); err != nil {
			return err
		}
		defer s.release()
		if err := s.reset(); err != nil {
			return err
		}
	default:
		return device.Errorf(device.RetCInvalidOperation, "open: unknown mode %d", mode)
	}

	s.opens.Add(1)
	return nil
}

func (s *sessionImpl) Read(ctx context.Context, p []byte, pos *int64) (n int, err error) {
	defer func() { s.metrics.observeTransfer("read", n, err) }()

	if err := checkPos("read", pos); err != nil {
		return 0, err
	}
	if err := s.acquire(ctx, "read"); err != nil {
		return 0, err
	}
	defer s.release()

	size := s.size.Load()
	if *pos >= size || len(p) == 0 {
		return 0, nil
	}
	if rest := size - *pos; int64(len(p)) > rest {
		p = p[:rest]
	}

	at := s.store.Geometry().Translate(*pos)
	seg, err := s.store.Locate(at.Item)
	if err != nil {
		return 0, storeError("read", err)
	}

	n, err = seg.ReadAt(at.Slot, at.Offset, p, s.memory.CopyOut)
	if err != nil {
		if errors.Is(err, qstore.ErrOutOfRange) {
			return 0, storeError("read", err)
		}
		return 0, device.Errorf(device.RetCFault, "read: copy out at %d failed: %v", *pos, err)
	}

	*pos += int64(n)
	s.reads.Update(int64(n))
	return n, nil
}

func (s *sessionImpl) Write(ctx context.Context, p []byte, pos *int64) (n int, err error) {
	defer func() { s.metrics.observeTransfer("write", n, err) }()

	if err := checkPos("write", pos); err != nil {
		return 0, err
	}
	if err := s.acquire(ctx, "write"); err != nil {
		return 0, err
	}
	defer s.release()

	if len(p) == 0 {
		return 0, nil
	}

	at := s.store.Geometry().Translate(*pos)
	seg, err := s.store.Locate(at.Item)
	if err != nil {
		return 0, storeError("write", err)
	}

	n, err = seg.WriteAt(at.Slot, at.Offset, p, s.memory.CopyIn)
	if err != nil {
		if errors.Is(err, qstore.ErrOutOfMemory) || errors.Is(err, qstore.ErrOutOfRange) {
			return 0, storeError("write", err)
		}
		return 0, device.Errorf(device.RetCFault, "write: copy in at %d failed: %v", *pos, err)
	}

	*pos += int64(n)
	if *pos > s.size.Load() {
		s.size.Store(*pos)
	}
	s.writes.Update(int64(n))
	return n, nil
}

func (s *sessionImpl) Release() error {
	s.metrics.observe("release", nil)
	return nil
}

func (s *sessionImpl) Reset(ctx context.Context) (err error) {
	defer func() { s.metrics.observe("reset", err) }()

	if err := s.acquire(ctx, "reset"); err != nil {
		return err
	}
	defer s.release()

	return s.reset()
}

func (s *sessionImpl) Configure(ctx context.Context, geometry qstore.Geometry) (err error) {
	defer func() { s.metrics.observe("configure", err) }()

	if err := geometry.Validate(); err != nil {
		return device.Errorf(device.RetCInvalidOperation, "configure: %v", err)
	}
	if err := s.acquire(ctx, "configure"); err != nil {
		return err
	}
	defer s.release()

	if size := s.size.Load(); size > 0 {
		return device.Errorf(device.RetCInvalidOperation, "configure: device holds %d bytes, reset it first", size)
	}
	if err := s.store.SetGeometry(geometry); err != nil {
		return storeError("configure", err)
	}
	return nil
}

func (s *sessionImpl) Info(ctx context.Context) (info device.SessionInfo, err error) {
	if err := s.acquire(ctx, "info"); err != nil {
		return device.SessionInfo{}, err
	}
	defer s.release()

	return device.SessionInfo{
		Size:     s.size.Load(),
		Geometry: s.store.Geometry(),
		Opens:    s.opens.Load(),
		Reads:    util.Summarize(s.reads),
		Writes:   util.Summarize(s.writes),
		Store:    s.store.GetInfo(),
	}, nil
}

package registry

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/device/session"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/engines/qset"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// Options configures the devices created by a registry
type Options struct {
	MemoryLimit int64          // Memory limit per device in bytes (0 = unlimited)
	MaxSize     int64          // Maximum addressable size per device in bytes (0 = unlimited)
	Memory      device.IMemory // Copy primitives of all devices (nil = device.DirectMemory)
}

// Registry is a table of devices addressed by minor number.
//
// Thread-safety: All methods are safe for concurrent use.
type Registry struct {
	devices *xsync.MapOf[uint64, device.ISession]
	metrics *metrics.Set
	opts    Options
}

// New creates an empty registry with the given options (optional)
func New(opts *Options) *Registry {
	if opts == nil {
		opts = &Options{}
	}
	return &Registry{
		devices: xsync.NewMapOf[uint64, device.ISession](),
		metrics: metrics.NewSet(),
		opts:    *opts,
	}
}

// Create adds a device with the given default geometry (zero value = qstore.DefaultGeometry).
// It fails if a device with this minor already exists.
func (r *Registry) Create(minor uint64, geometry qstore.Geometry) (device.ISession, error) {
	if _, ok := r.devices.Load(minor); ok {
		return nil, device.Errorf(device.RetCInvalidOperation, "device %d already exists", minor)
	}

	s, err := session.NewSession(func() (qstore.IQuantumStore, error) {
		return qset.NewQSetStore(&qset.Options{
			Geometry:    geometry,
			MemoryLimit: r.opts.MemoryLimit,
			MaxSize:     r.opts.MaxSize,
		})
	}, &session.Options{
		Memory:  r.opts.Memory,
		Metrics: r.metrics,
		Label:   strconv.FormatUint(minor, 10),
	})
	if err != nil {
		return nil, device.Errorf(device.RetCInvalidOperation, "device %d: %v", minor, err)
	}

	if _, loaded := r.devices.LoadOrStore(minor, s); loaded {
		return nil, device.Errorf(device.RetCInvalidOperation, "device %d already exists", minor)
	}
	return s, nil
}

// Setup creates count devices with consecutive minors starting at first
func (r *Registry) Setup(first uint64, count int, geometry qstore.Geometry) error {
	if count <= 0 {
		return device.Errorf(device.RetCInvalidOperation, "device count must be positive, got %d", count)
	}
	for i := 0; i < count; i++ {
		if _, err := r.Create(first+uint64(i), geometry); err != nil {
			return fmt.Errorf("setup failed after %d devices: %w", i, err)
		}
	}
	return nil
}

// Get returns the device with the given minor or ErrNoDevice
func (r *Registry) Get(minor uint64) (device.ISession, error) {
	s, ok := r.devices.Load(minor)
	if !ok {
		return nil, device.Errorf(device.RetCNoDevice, "no device with minor %d", minor)
	}
	return s, nil
}

// Minors returns the minors of all devices in ascending order
func (r *Registry) Minors() []uint64 {
	minors := make([]uint64, 0, r.devices.Size())
	r.devices.Range(func(minor uint64, _ device.ISession) bool {
		minors = append(minors, minor)
		return true
	})
	slices.Sort(minors)
	return minors
}

// Len returns the number of devices
func (r *Registry) Len() int {
	return r.devices.Size()
}

// Teardown resets all devices concurrently and empties the table.
// Every device gets its own reset attempt, a failing reset does not cancel the others.
// The table is emptied even if a reset fails, the first error is returned.
func (r *Registry) Teardown(ctx context.Context) error {
	var g errgroup.Group
	r.devices.Range(func(minor uint64, s device.ISession) bool {
		g.Go(func() error {
			if err := s.Reset(ctx); err != nil {
				return fmt.Errorf("device %d: %w", minor, err)
			}
			return nil
		})
		return true
	})
	err := g.Wait()
	r.devices.Clear()
	return err
}

// WritePrometheus writes the metrics of all devices in Prometheus text format
func (r *Registry) WritePrometheus(w io.Writer) {
	r.metrics.WritePrometheus(w)
}

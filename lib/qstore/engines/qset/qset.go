package qset

import (
	"fmt"

	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/lib/qstore/engines/qset/internal"
	"github.com/ValentinKolb/qdev/lib/qstore/util"
)

// --------------------------------------------------------------------------
// Core QSet store structure
// --------------------------------------------------------------------------

// qsetImpl implements a sparse store as a list of quantum sets
type qsetImpl struct {
	geometry qstore.Geometry
	segments []*internal.Segment
	budget   *internal.Budget
	maxSize  int64
}

// Options configures the qsetImpl behavior during initialization
type Options struct {
	Geometry    qstore.Geometry // Geometry of the store (zero value = default geometry)
	MemoryLimit int64           // Maximum number of allocated bytes (0 = unlimited)
	MaxSize     int64           // Highest addressable offset + 1 (0 = unlimited)
}

// DefaultOptions returns the default qsetImpl options
func DefaultOptions() *Options {
	return &Options{
		Geometry:    qstore.DefaultGeometry(),
		MemoryLimit: 0,
		MaxSize:     0,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewQSetStore creates a new empty store with the specified options (optional).
// It fails if the geometry is invalid or the memory limit or maximum size is negative.
func NewQSetStore(opts *Options) (qstore.IQuantumStore, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	geometry := opts.Geometry
	if geometry == (qstore.Geometry{}) {
		geometry = qstore.DefaultGeometry()
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if opts.MemoryLimit < 0 {
		return nil, fmt.Errorf("qset: negative memory limit %d", opts.MemoryLimit)
	}
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("qset: negative maximum size %d", opts.MaxSize)
	}

	return &qsetImpl{
		geometry: geometry,
		budget:   internal.NewBudget(opts.MemoryLimit),
		maxSize:  opts.MaxSize,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see qstore.IQuantumStore)
// --------------------------------------------------------------------------

func (q *qsetImpl) Locate(item int64) (qstore.ISegment, error) {
	if item < 0 {
		return nil, fmt.Errorf("%w: segment %d", qstore.ErrOutOfRange, item)
	}

	if item < int64(len(q.segments)) {
		return q.segments[item], nil
	}

	// refuse up front when the walk cannot complete
	if q.maxSize > 0 && item > (q.maxSize-1)/q.geometry.ItemSize() {
		return nil, fmt.Errorf("%w: segment %d starts beyond the maximum size of %d bytes", qstore.ErrOutOfMemory, item, q.maxSize)
	}
	missing := item - int64(len(q.segments)) + 1
	if missing <= 0 || !q.budget.Fits(missing, internal.SegmentOverhead) {
		return nil, fmt.Errorf("%w: segments %d..%d exceed the memory limit", qstore.ErrOutOfMemory, len(q.segments), item)
	}

	for int64(len(q.segments)) <= item {
		if !q.budget.Charge(internal.SegmentOverhead) {
			return nil, fmt.Errorf("%w: segment %d", qstore.ErrOutOfMemory, len(q.segments))
		}
		q.segments = append(q.segments, internal.NewSegment(int64(len(q.segments)), q.geometry, q.budget))
	}

	return q.segments[item], nil
}

func (q *qsetImpl) Reset() {
	for i, seg := range q.segments {
		seg.Drop()
		q.segments[i] = nil
	}
	q.segments = nil
	q.budget.Clear()
}

func (q *qsetImpl) Geometry() qstore.Geometry {
	return q.geometry
}

func (q *qsetImpl) SetGeometry(geometry qstore.Geometry) error {
	if err := geometry.Validate(); err != nil {
		return err
	}
	if len(q.segments) > 0 {
		return fmt.Errorf("%w: %d segments allocated", qstore.ErrNotEmpty, len(q.segments))
	}
	q.geometry = geometry
	return nil
}

func (q *qsetImpl) Segments() int {
	return len(q.segments)
}

func (q *qsetImpl) AllocatedBytes() int64 {
	return q.budget.Used()
}

func (q *qsetImpl) SupportsFeature(feature qstore.Feature) bool {
	supported := qstore.FeatureLocate | qstore.FeatureReadAt | qstore.FeatureWriteAt |
		qstore.FeatureReset | qstore.FeatureSetGeometry | qstore.FeatureMemoryLimit
	return feature&supported == feature
}

// GetInfo returns statistics about the store
func (q *qsetImpl) GetInfo() qstore.StoreInfo {
	quanta := 0
	slotArrays := 0
	occupancy := make([]float64, len(q.segments))
	for i, seg := range q.segments {
		quanta += seg.Quanta()
		if seg.HasSlots() {
			slotArrays++
		}
		occupancy[i] = float64(seg.Quanta())
	}

	// Metadata for this specific store implementation
	meta := &struct {
		MemoryLimit   int64                  `json:"memory_limit"`
		MaxSize       int64                  `json:"max_size"`
		SlotArrays    int                    `json:"slot_arrays"`
		ItemSize      int64                  `json:"item_size"`
		SlotOccupancy util.DistributionStats `json:"slot_occupancy"`
		Info          string                 `json:"info"`
	}{
		MemoryLimit:   q.budget.Limit(),
		MaxSize:       q.maxSize,
		SlotArrays:    slotArrays,
		ItemSize:      q.geometry.ItemSize(),
		SlotOccupancy: util.NewDistributionStats(occupancy),
		Info:          "SizeBytes counts quanta, slot arrays and segment headers charged against the memory limit.",
	}

	return qstore.StoreInfo{
		SizeBytes: q.budget.Used(),
		StoreType: qstore.ImplQSet,
		Geometry:  q.geometry,
		Segments:  len(q.segments),
		Quanta:    quanta,
		SupportedFeatures: []qstore.Feature{
			qstore.FeatureLocate,
			qstore.FeatureReadAt | qstore.FeatureWriteAt,
			qstore.FeatureReset,
			qstore.FeatureSetGeometry,
			qstore.FeatureMemoryLimit,
		},
		Metadata: meta,
	}
}

func (q *qsetImpl) Close() error {
	q.Reset()
	return nil
}

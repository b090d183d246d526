package testing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ValentinKolb/qdev/lib/qstore"
)

// StoreFactory creates a new empty store with the given geometry and memory limit (0 = unlimited)
type StoreFactory func(geometry qstore.Geometry, memoryLimit int64) qstore.IQuantumStore

// small geometry used by most tests: 4 byte quanta, 2 slots per segment
var small = qstore.Geometry{Quantum: 4, QSet: 2}

// RunStoreTests runs the conformance test suite for a store implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("LocateCreatesInOrder", func(t *testing.T) {
			testLocateCreatesInOrder(t, factory(small, 0))
		})

		t.Run("LocateReturnsExisting", func(t *testing.T) {
			testLocateReturnsExisting(t, factory(small, 0))
		})

		t.Run("ReadUnallocated", func(t *testing.T) {
			testReadUnallocated(t, factory(small, 0))
		})

		t.Run("QuantumBoundary", func(t *testing.T) {
			testQuantumBoundary(t, factory(small, 0))
		})

		t.Run("CopyFunc", func(t *testing.T) {
			testCopyFunc(t, factory(small, 0))
		})

		t.Run("OutOfRange", func(t *testing.T) {
			testOutOfRange(t, factory(small, 0))
		})

		t.Run("Reset", func(t *testing.T) {
			testReset(t, factory(small, 0))
		})

		t.Run("SetGeometry", func(t *testing.T) {
			testSetGeometry(t, factory(small, 0))
		})

		t.Run("MemoryLimit", func(t *testing.T) {
			testMemoryLimit(t, factory)
		})

		t.Run("DefaultGeometry", func(t *testing.T) {
			testDefaultGeometry(t, factory(qstore.DefaultGeometry(), 0))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(small, 0))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the store supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, store qstore.IQuantumStore, feature qstore.Feature) {
	if !store.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustLocate fails the test immediately if the segment cannot be located
func mustLocate(t testing.TB, store qstore.IQuantumStore, item int64) qstore.ISegment {
	seg, err := store.Locate(item)
	if err != nil {
		t.Fatalf("Locate(%d) failed: %v", item, err)
	}
	return seg
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testLocateCreatesInOrder(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate)

	if store.Segments() != 0 {
		t.Errorf("Expected new store to have 0 segments, got %d", store.Segments())
	}

	seg := mustLocate(t, store, 3)
	if seg.Index() != 3 {
		t.Errorf("Expected segment index 3, got %d", seg.Index())
	}
	if store.Segments() != 4 {
		t.Errorf("Expected 4 segments after Locate(3), got %d", store.Segments())
	}

	for i := int64(0); i < 4; i++ {
		seg := mustLocate(t, store, i)
		if seg.Index() != i {
			t.Errorf("Expected segment index %d, got %d", i, seg.Index())
		}
		if seg.HasSlots() {
			t.Errorf("Expected segment %d to have no slot array", i)
		}
	}

	if store.Segments() != 4 {
		t.Errorf("Locating existing segments must not create new ones, got %d", store.Segments())
	}
}

func testLocateReturnsExisting(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	seg := mustLocate(t, store, 1)
	if n, err := seg.WriteAt(1, 0, []byte("WXYZ"), nil); err != nil || n != 4 {
		t.Fatalf("Expected WriteAt to accept 4 bytes, got %d (%v)", n, err)
	}

	again := mustLocate(t, store, 1)
	if !again.HasQuantum(1) {
		t.Errorf("Expected the located segment to hold the written quantum")
	}

	buf := make([]byte, 4)
	n, err := again.ReadAt(1, 0, buf, nil)
	if err != nil || n != 4 {
		t.Fatalf("Expected ReadAt to return 4 bytes, got %d (%v)", n, err)
	}
	if !bytes.Equal(buf, []byte("WXYZ")) {
		t.Errorf("Expected %q, got %q", "WXYZ", buf)
	}
}

func testReadUnallocated(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	seg := mustLocate(t, store, 0)
	buf := make([]byte, 4)

	// no slot array
	if n, err := seg.ReadAt(0, 0, buf, nil); n != 0 || err != nil {
		t.Errorf("Expected 0 bytes and no error without slot array, got %d (%v)", n, err)
	}

	// slot array but unallocated quantum
	if _, err := seg.WriteAt(0, 0, []byte("A"), nil); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if !seg.HasSlots() || seg.HasQuantum(1) {
		t.Errorf("Expected slot array with only quantum 0 allocated")
	}
	if n, err := seg.ReadAt(1, 0, buf, nil); n != 0 || err != nil {
		t.Errorf("Expected 0 bytes and no error for unallocated quantum, got %d (%v)", n, err)
	}
}

func testQuantumBoundary(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	seg := mustLocate(t, store, 0)

	n, err := seg.WriteAt(0, 2, []byte("ABCDEF"), nil)
	if err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected WriteAt to stop at the quantum boundary (2 bytes), got %d", n)
	}
	if seg.HasQuantum(1) {
		t.Errorf("WriteAt must not touch the next quantum")
	}

	buf := make([]byte, 10)
	n, err = seg.ReadAt(0, 0, buf, nil)
	if err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected ReadAt to return one full quantum (4 bytes), got %d", n)
	}

	// unwritten bytes of an allocated quantum read as zero
	if !bytes.Equal(buf[:n], []byte{0, 0, 'A', 'B'}) {
		t.Errorf("Expected %v, got %v", []byte{0, 0, 'A', 'B'}, buf[:n])
	}

	n, err = seg.ReadAt(0, 3, buf, nil)
	if err != nil || n != 1 || buf[0] != 'B' {
		t.Errorf("Expected 1 byte 'B' at offset 3, got %d %q (%v)", n, buf[:n], err)
	}
}

func testCopyFunc(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	seg := mustLocate(t, store, 0)
	fault := errors.New("copy fault")
	failing := func(dst, src []byte) error { return fault }

	calls := 0
	counting := func(dst, src []byte) error {
		calls++
		copy(dst, src)
		return nil
	}

	if n, err := seg.WriteAt(0, 0, []byte("ABCD"), counting); err != nil || n != 4 {
		t.Fatalf("Expected WriteAt with copy func to accept 4 bytes, got %d (%v)", n, err)
	}
	if calls != 1 {
		t.Errorf("Expected the copy func to be called once, got %d", calls)
	}

	if n, err := seg.WriteAt(0, 0, []byte("XXXX"), failing); !errors.Is(err, fault) || n != 0 {
		t.Errorf("Expected the copy fault to be returned with 0 bytes, got %d (%v)", n, err)
	}

	buf := make([]byte, 4)
	if n, err := seg.ReadAt(0, 0, buf, failing); !errors.Is(err, fault) || n != 0 {
		t.Errorf("Expected the copy fault to be returned on read with 0 bytes, got %d (%v)", n, err)
	}

	if _, err := seg.ReadAt(0, 0, buf, counting); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected the copy func to be called twice, got %d", calls)
	}
}

func testOutOfRange(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	if _, err := store.Locate(-1); !errors.Is(err, qstore.ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange for a negative segment, got %v", err)
	}

	seg := mustLocate(t, store, 0)
	buf := make([]byte, 1)

	cases := []struct{ slot, off int }{{-1, 0}, {2, 0}, {0, -1}, {0, 4}}
	for _, c := range cases {
		if _, err := seg.WriteAt(c.slot, c.off, buf, nil); !errors.Is(err, qstore.ErrOutOfRange) {
			t.Errorf("Expected ErrOutOfRange for WriteAt(%d, %d), got %v", c.slot, c.off, err)
		}
		if _, err := seg.ReadAt(c.slot, c.off, buf, nil); !errors.Is(err, qstore.ErrOutOfRange) {
			t.Errorf("Expected ErrOutOfRange for ReadAt(%d, %d), got %v", c.slot, c.off, err)
		}
	}
}

func testReset(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureLocate|qstore.FeatureWriteAt|qstore.FeatureReset)

	// resetting an empty store is a no-op
	store.Reset()
	if store.Segments() != 0 || store.AllocatedBytes() != 0 {
		t.Errorf("Expected empty store after Reset")
	}

	for i := int64(0); i < 3; i++ {
		seg := mustLocate(t, store, i)
		if _, err := seg.WriteAt(1, 0, []byte("DATA"), nil); err != nil {
			t.Fatalf("WriteAt failed: %v", err)
		}
	}
	if store.AllocatedBytes() == 0 {
		t.Errorf("Expected allocated bytes after writes")
	}

	store.Reset()
	if store.Segments() != 0 {
		t.Errorf("Expected 0 segments after Reset, got %d", store.Segments())
	}
	if store.AllocatedBytes() != 0 {
		t.Errorf("Expected 0 allocated bytes after Reset, got %d", store.AllocatedBytes())
	}

	seg := mustLocate(t, store, 0)
	if seg.HasSlots() {
		t.Errorf("Expected a fresh segment after Reset")
	}

	store.Reset()
	store.Reset()
	if store.Segments() != 0 {
		t.Errorf("Expected Reset to be idempotent")
	}
}

func testSetGeometry(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	requireFeature(t, store, qstore.FeatureSetGeometry)

	if store.Geometry() != small {
		t.Errorf("Expected geometry %s, got %s", small, store.Geometry())
	}

	if err := store.SetGeometry(qstore.Geometry{Quantum: 0, QSet: 2}); !errors.Is(err, qstore.ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry, got %v", err)
	}

	bigger := qstore.Geometry{Quantum: 8, QSet: 3}
	if err := store.SetGeometry(bigger); err != nil {
		t.Fatalf("SetGeometry on empty store failed: %v", err)
	}
	if store.Geometry() != bigger {
		t.Errorf("Expected geometry %s, got %s", bigger, store.Geometry())
	}

	mustLocate(t, store, 0)
	if err := store.SetGeometry(small); !errors.Is(err, qstore.ErrNotEmpty) {
		t.Errorf("Expected ErrNotEmpty, got %v", err)
	}
	if store.Geometry() != bigger {
		t.Errorf("A refused SetGeometry must not change the geometry")
	}

	store.Reset()
	if err := store.SetGeometry(small); err != nil {
		t.Errorf("SetGeometry after Reset failed: %v", err)
	}
}

func testMemoryLimit(t *testing.T, factory StoreFactory) {
	// two segment headers (16 each), one slot array (2*8) and one quantum (4)
	const limit = 16*2 + 8*2 + 4

	store := factory(small, limit)
	defer store.Close()

	requireFeature(t, store, qstore.FeatureMemoryLimit|qstore.FeatureLocate|qstore.FeatureWriteAt)

	seg := mustLocate(t, store, 1)
	if n, err := seg.WriteAt(0, 0, []byte("ABCD"), nil); err != nil || n != 4 {
		t.Fatalf("Expected the first quantum to fit, got %d (%v)", n, err)
	}
	if store.AllocatedBytes() != limit {
		t.Errorf("Expected %d allocated bytes, got %d", limit, store.AllocatedBytes())
	}

	// next quantum exceeds the limit
	n, err := seg.WriteAt(1, 0, []byte("EFGH"), nil)
	if !errors.Is(err, qstore.ErrOutOfMemory) || n != 0 {
		t.Errorf("Expected ErrOutOfMemory with 0 bytes, got %d (%v)", n, err)
	}
	if seg.HasQuantum(1) {
		t.Errorf("A failed allocation must not leave a quantum behind")
	}
	if !seg.HasQuantum(0) {
		t.Errorf("Earlier allocations must survive a failed allocation")
	}

	// a new segment header exceeds the limit as well
	if _, err := store.Locate(2); !errors.Is(err, qstore.ErrOutOfMemory) {
		t.Errorf("Expected ErrOutOfMemory from Locate, got %v", err)
	}
	if store.Segments() != 2 {
		t.Errorf("Expected the existing 2 segments to stay, got %d", store.Segments())
	}

	// reset frees the budget
	store.Reset()
	if _, err := store.Locate(2); err != nil {
		t.Errorf("Expected Locate to succeed after Reset, got %v", err)
	}

	// a deep Locate is refused up front and leaves the list alone
	store.Reset()
	mustLocate(t, store, 0)
	if _, err := store.Locate(10); !errors.Is(err, qstore.ErrOutOfMemory) {
		t.Errorf("Expected ErrOutOfMemory for a deep Locate, got %v", err)
	}
	if store.Segments() != 1 {
		t.Errorf("Expected the single existing segment to stay, got %d", store.Segments())
	}

	// an offset near the end of the int64 range fails immediately
	if _, err := store.Locate(1 << 62); !errors.Is(err, qstore.ErrOutOfMemory) {
		t.Errorf("Expected ErrOutOfMemory for Locate(1<<62), got %v", err)
	}
	if store.Segments() != 1 {
		t.Errorf("Expected no new segments after a refused Locate, got %d", store.Segments())
	}
}

func testDefaultGeometry(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	g := store.Geometry()
	if g.Quantum != qstore.DefaultQuantum || g.QSet != qstore.DefaultQSet {
		t.Errorf("Expected default geometry, got %s", g)
	}
	if g.ItemSize() != 4000*1000 {
		t.Errorf("Expected item size 4000000, got %d", g.ItemSize())
	}
}

func testInfo(t *testing.T, store qstore.IQuantumStore) {
	defer store.Close()

	seg := mustLocate(t, store, 2)
	if _, err := seg.WriteAt(0, 0, []byte("A"), nil); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if _, err := seg.WriteAt(1, 0, []byte("B"), nil); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	info := store.GetInfo()
	if info.Segments != 3 {
		t.Errorf("Expected 3 segments, got %d", info.Segments)
	}
	if info.Quanta != 2 {
		t.Errorf("Expected 2 quanta, got %d", info.Quanta)
	}
	if info.SizeBytes != store.AllocatedBytes() {
		t.Errorf("Expected SizeBytes %d, got %d", store.AllocatedBytes(), info.SizeBytes)
	}
	if info.Geometry != small {
		t.Errorf("Expected geometry %s, got %s", small, info.Geometry)
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected supported features to be reported")
	}
}

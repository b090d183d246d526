package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/qdev/lib/qstore"
)

// RunStoreBenchmarks runs all benchmarks for a store implementation
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("SequentialWrite", func(b *testing.B) {
			benchmarkSequentialWrite(b, factory(qstore.DefaultGeometry(), 0))
		})

		b.Run("SequentialRead", func(b *testing.B) {
			benchmarkSequentialRead(b, factory(qstore.DefaultGeometry(), 0))
		})

		b.Run("RandomWrite", func(b *testing.B) {
			benchmarkRandomWrite(b, factory(qstore.Geometry{Quantum: 64, QSet: 16}, 0))
		})

		b.Run("LocateDeep", func(b *testing.B) {
			benchmarkLocateDeep(b, factory(qstore.Geometry{Quantum: 16, QSet: 4}, 0))
		})

		b.Run("Reset", func(b *testing.B) {
			benchmarkReset(b, factory(qstore.Geometry{Quantum: 64, QSet: 16}, 0))
		})
	})
}

// writeOffset writes p at the byte offset by looping over quanta
func writeOffset(store qstore.IQuantumStore, offset int64, p []byte) error {
	geometry := store.Geometry()
	for len(p) > 0 {
		pos := geometry.Translate(offset)
		seg, err := store.Locate(pos.Item)
		if err != nil {
			return err
		}
		n, err := seg.WriteAt(pos.Slot, pos.Offset, p, nil)
		if err != nil {
			return err
		}
		p = p[n:]
		offset += int64(n)
	}
	return nil
}

func benchmarkSequentialWrite(b *testing.B, store qstore.IQuantumStore) {
	b.Cleanup(func() {
		store.Close()
	})

	requireFeature(b, store, qstore.FeatureLocate|qstore.FeatureWriteAt)

	chunk := make([]byte, 1024)
	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writeOffset(store, int64(i)*int64(len(chunk)), chunk); err != nil {
			b.Fatalf("write failed: %v", err)
		}
	}
}

func benchmarkSequentialRead(b *testing.B, store qstore.IQuantumStore) {
	b.Cleanup(func() {
		store.Close()
	})

	requireFeature(b, store, qstore.FeatureLocate|qstore.FeatureReadAt|qstore.FeatureWriteAt)

	// prepare one segment worth of data
	geometry := store.Geometry()
	if err := writeOffset(store, 0, make([]byte, geometry.ItemSize())); err != nil {
		b.Fatalf("prepare failed: %v", err)
	}

	buf := make([]byte, geometry.Quantum)
	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seg, err := store.Locate(0)
		if err != nil {
			b.Fatalf("locate failed: %v", err)
		}
		if _, err := seg.ReadAt(i%geometry.QSet, 0, buf, nil); err != nil {
			b.Fatalf("read failed: %v", err)
		}
	}
}

func benchmarkRandomWrite(b *testing.B, store qstore.IQuantumStore) {
	b.Cleanup(func() {
		store.Close()
	})

	requireFeature(b, store, qstore.FeatureLocate|qstore.FeatureWriteAt)

	const span = 1 << 20
	value := []byte("random-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writeOffset(store, rand.Int63n(span), value); err != nil {
			b.Fatalf("write failed: %v", err)
		}
	}
}

func benchmarkLocateDeep(b *testing.B, store qstore.IQuantumStore) {
	b.Cleanup(func() {
		store.Close()
	})

	requireFeature(b, store, qstore.FeatureLocate)

	const depth = 4096
	if _, err := store.Locate(depth); err != nil {
		b.Fatalf("prepare failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Locate(int64(i % depth)); err != nil {
			b.Fatalf("locate failed: %v", err)
		}
	}
}

func benchmarkReset(b *testing.B, store qstore.IQuantumStore) {
	b.Cleanup(func() {
		store.Close()
	})

	requireFeature(b, store, qstore.FeatureLocate|qstore.FeatureWriteAt|qstore.FeatureReset)

	data := make([]byte, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		if err := writeOffset(store, 0, data); err != nil {
			b.Fatalf("prepare failed: %v", err)
		}
		b.StartTimer()
		store.Reset()
	}
}

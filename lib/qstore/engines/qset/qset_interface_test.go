package qset

import (
	"testing"

	"github.com/ValentinKolb/qdev/lib/qstore"
	qstoretesting "github.com/ValentinKolb/qdev/lib/qstore/testing"
)

func newTestStore(geometry qstore.Geometry, memoryLimit int64) qstore.IQuantumStore {
	store, err := NewQSetStore(&Options{Geometry: geometry, MemoryLimit: memoryLimit})
	if err != nil {
		panic(err)
	}
	return store
}

func Test(t *testing.T) {
	qstoretesting.RunStoreTests(t, "QSetStore", newTestStore)
}

func Benchmark(b *testing.B) {
	qstoretesting.RunStoreBenchmarks(b, "QSetStore", newTestStore)
}

package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStats(t *testing.T) {
	assert.Equal(t, Stats{}, NewStats(nil))

	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.StdDeviation, 1e-9)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.InDelta(t, 2.0/9.0, s.MinMaxRatio, 1e-9)
}

func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{3, 3, 3})
	assert.InDelta(t, 1.0, even.DistributionQuality, 1e-9)

	skewed := NewDistributionStats([]float64{0, 0, 9})
	assert.Less(t, skewed.DistributionQuality, even.DistributionQuality)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(NewTransferHistogram()))
}

func TestSummarizeUniformSizes(t *testing.T) {
	h := NewTransferHistogram()
	for i := 0; i < 10; i++ {
		h.Update(4000)
	}

	sum := Summarize(h)
	assert.Equal(t, int64(10), sum.Count)
	assert.Equal(t, int64(40000), sum.Total)
	assert.InDelta(t, 4000.0, sum.Average, 1e-9)
	assert.InDelta(t, 4000.0, sum.P50, 1e-9)
	assert.InDelta(t, 4000.0, sum.P99, 1e-9)
	assert.Equal(t, int64(4000), sum.Max)
}

func TestSummarizeMixedSizes(t *testing.T) {
	h := NewTransferHistogram()
	for _, size := range []int64{1, 10, 10, 4000, 4000} {
		h.Update(size)
	}

	sum := Summarize(h)
	require.Equal(t, int64(5), sum.Count)
	assert.Equal(t, int64(8021), sum.Total)
	assert.InDelta(t, 8021.0/5, sum.Average, 1e-9)
	assert.InDelta(t, 10.0, sum.P50, 1e-9)
	assert.InDelta(t, 4000.0, sum.P99, 1e-9)
	assert.Equal(t, int64(4000), sum.Max)
}

func TestTransferHistogramConcurrent(t *testing.T) {
	h := NewTransferHistogram()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				h.Update(int64(j))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), Summarize(h).Count)
}

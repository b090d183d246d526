package util

import (
	"math"

	gometrics "github.com/rcrowley/go-metrics"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, standard deviation (population formula), minimum
// and maximum of the given values. An empty input yields the zero Stats.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var squares float64
	for _, v := range values {
		squares += (v - mean) * (v - mean)
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(squares / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// DistributionStats extends Stats with a quality score in [0, 1].
// 1 means every sample has the same value.
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly the values are spread. The score
// averages (1 - coefficient of variation, capped at 1) and the min/max ratio.
func NewDistributionStats(values []float64) DistributionStats {
	stats := NewStats(values)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// Transfer sizes
// ----------------------------------------------------------------------------

// transferSampleSize is the reservoir size of a transfer histogram.
// Percentiles are exact until this many requests were recorded.
const transferSampleSize = 4096

// NewTransferHistogram creates a histogram for request sizes in bytes
func NewTransferHistogram() gometrics.Histogram {
	return gometrics.NewHistogram(gometrics.NewUniformSample(transferSampleSize))
}

// Summary is a JSON friendly snapshot of a transfer histogram
type Summary struct {
	Count   int64   `json:"count"`
	Total   int64   `json:"total"`
	Average float64 `json:"average"`
	P50     float64 `json:"p50"`
	P99     float64 `json:"p99"`
	Max     int64   `json:"max"`
}

// Summarize takes a consistent snapshot of h
func Summarize(h gometrics.Histogram) Summary {
	snap := h.Snapshot()
	ps := snap.Percentiles([]float64{0.5, 0.99})
	return Summary{
		Count:   snap.Count(),
		Total:   snap.Sum(),
		Average: snap.Mean(),
		P50:     ps[0],
		P99:     ps[1],
		Max:     snap.Max(),
	}
}

package sweep

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is the aggregate of one phase's trial durations at one size.
type Stats struct {
	N      int
	MinMs  float64
	MaxMs  float64
	MeanMs float64
}

// Reduce aggregates trial durations into min/max/mean milliseconds. It is
// pure: the same input always yields the same Stats. An empty sequence
// yields the zero Stats.
func Reduce(samples []time.Duration) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	ms := make([]float64, len(samples))
	for i, d := range samples {
		ms[i] = d.Seconds() * 1000
	}
	return Stats{
		N:      len(ms),
		MinMs:  floats.Min(ms),
		MaxMs:  floats.Max(ms),
		MeanMs: stat.Mean(ms, nil),
	}
}

// BandwidthMBps derives throughput from the mean latency as MiB transferred
// per mean second. A zero mean (every trial failed and reported a zero
// duration) yields +Inf so the report shows an impossible value instead of
// hiding a division fault.
func (s Stats) BandwidthMBps(sizeBytes int) float64 {
	if s.MeanMs == 0 {
		return math.Inf(1)
	}
	mib := float64(sizeBytes) / (1024 * 1024)
	return mib / (s.MeanMs / 1000)
}

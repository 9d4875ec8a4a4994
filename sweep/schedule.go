// Package sweep is the benchmarking engine: it generates the size schedule,
// runs repeated timed trials per size against a transfer backend, reduces
// the trial durations into per-phase statistics, and hands rows to the
// report sinks.
package sweep

import (
	"math"
	"math/bits"
)

// MinSize is the first size of the staged-growth schedule.
const MinSize = 1024

// MaxSizePower is the largest exponent whose power of two still fits int.
const MaxSizePower = bits.UintSize - 2

// DefaultCeiling bounds the staged-growth schedule when no ceiling is
// configured.
const DefaultCeiling = 67186688

// PiecewiseSizes returns the staged-growth size ladder: starting at MinSize,
// the step widens as the size crosses each threshold, from 1 KiB steps up to
// 4 MiB steps. Every returned size is <= bound. A bound below MinSize yields
// nil, not an error. The output depends only on bound.
func PiecewiseSizes(bound int) []int {
	var sizes []int
	for cur := MinSize; cur <= bound; {
		sizes = append(sizes, cur)
		switch {
		case cur < 20480:
			cur += 1024
		case cur < 51200:
			cur += 2048
		case cur < 102400:
			cur += 10240
		case cur < 1126400:
			cur += 102400
		case cur < 16855040:
			cur += 1048576
		case cur < 33632256:
			cur += 2097152
		default:
			cur += 4194304
		}
	}
	return sizes
}

// PowerOfTwoSizes returns floor(2^k) for k in [minPower, maxPower], nil when
// the range is empty. The high end is clamped to MaxSizePower; past that a
// power of two no longer fits int.
func PowerOfTwoSizes(minPower, maxPower int) []int {
	if maxPower > MaxSizePower {
		maxPower = MaxSizePower
	}
	var sizes []int
	for k := minPower; k <= maxPower; k++ {
		sizes = append(sizes, int(math.Floor(math.Pow(2, float64(k)))))
	}
	return sizes
}

package analysis

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultPartitionSize is the number of samples each worker folds before
// partial accumulators are merged.
const DefaultPartitionSize = 4096

// VarianceAccumulator keeps a running count, sum, mean and sum of squared
// deviations (M2) using Welford's update. The zero value is ready to use.
type VarianceAccumulator struct {
	count int64
	sum   float64
	mean  float64
	m2    float64
}

// Add folds one value into the accumulator.
func (a *VarianceAccumulator) Add(v float64) {
	n := float64(a.count)
	delta := v - a.mean
	a.m2 += delta * delta * n / (n + 1)
	a.mean += delta / (n + 1)
	a.count++
	a.sum += v
}

// Merge combines other into a using the parallel variance formula. Merge is
// associative, so partitions may be folded in any grouping.
func (a *VarianceAccumulator) Merge(other VarianceAccumulator) {
	if other.count == 0 {
		return
	}
	if a.count == 0 {
		*a = other
		return
	}

	na := float64(a.count)
	nb := float64(other.count)
	n := na + nb
	delta := other.mean - a.mean

	a.mean += delta * nb / n
	a.m2 += other.m2 + delta*delta*na*nb/n
	a.count += other.count
	a.sum += other.sum
}

func (a VarianceAccumulator) Count() int64 { return a.count }

func (a VarianceAccumulator) Sum() float64 { return a.sum }

func (a VarianceAccumulator) Mean() float64 { return a.mean }

// Sigma returns the sample standard deviation when isSample is set and more
// than one value was added, otherwise the population standard deviation.
func (a VarianceAccumulator) Sigma(isSample bool) float64 {
	switch {
	case isSample && a.count > 1:
		return math.Sqrt(a.m2 / float64(a.count-1))
	case a.count > 0:
		return math.Sqrt(a.m2 / float64(a.count))
	default:
		return 0
	}
}

// Accumulate folds values sequentially.
func Accumulate[T Number](values []T) VarianceAccumulator {
	var acc VarianceAccumulator
	for _, v := range values {
		acc.Add(float64(v))
	}
	return acc
}

// AccumulateParallel splits values into partitions of partitionSize, folds
// each partition on its own goroutine and merges the partials in partition
// order, so the result does not depend on scheduling.
func AccumulateParallel[T Number](values []T, partitionSize int) VarianceAccumulator {
	if partitionSize <= 0 {
		partitionSize = DefaultPartitionSize
	}
	if len(values) <= partitionSize {
		return Accumulate(values)
	}

	partitions := (len(values) + partitionSize - 1) / partitionSize
	partials := make([]VarianceAccumulator, partitions)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < partitions; i++ {
		lo := i * partitionSize
		hi := min(lo+partitionSize, len(values))
		g.Go(func() error {
			partials[i] = Accumulate(values[lo:hi])
			return nil
		})
	}
	// partition folds never fail
	_ = g.Wait()

	var acc VarianceAccumulator
	for _, p := range partials {
		acc.Merge(p)
	}
	return acc
}

package analysis

import (
	"fmt"
	"math/rand"
	"testing"
)

func benchmarkPopulation(n int) []float64 {
	rng := rand.New(rand.NewSource(1))
	population := make([]float64, n)
	for i := range population {
		population[i] = rng.NormFloat64() * 15
	}
	return population
}

// BenchmarkTukeyBoxPlot measures construction plus a full boxplot
func BenchmarkTukeyBoxPlot(b *testing.B) {
	for _, n := range []int{100, 10000, 1000000} {
		population := benchmarkPopulation(n)

		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				e, err := NewQuantileEstimator(population, true)
				if err != nil {
					b.Fatalf("estimator failed: %v", err)
				}
				_ = e.TukeyBoxPlot()
			}
		})
	}
}

// BenchmarkRobustEstimator measures the castaway and constant elimination pipeline
func BenchmarkRobustEstimator(b *testing.B) {
	population := benchmarkPopulation(100000)
	for i := 0; i < 50; i++ {
		population = append(population, -1000)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e, err := NewCastawayConstantEstimator(population, true, true, nil)
		if err != nil {
			b.Fatalf("estimator failed: %v", err)
		}
		if len(e.ConstantScraps()) == 0 {
			b.Errorf("expected constant scraps")
		}
	}
}

// BenchmarkAccumulate compares the sequential and partitioned moment folds
func BenchmarkAccumulate(b *testing.B) {
	population := benchmarkPopulation(1000000)

	b.Run("sequential", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = Accumulate(population).Sigma(true)
		}
	})

	b.Run("parallel", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = AccumulateParallel(population, DefaultPartitionSize).Sigma(true)
		}
	})
}

// BenchmarkTrendRegression measures a quadratic fit
func BenchmarkTrendRegression(b *testing.B) {
	rng := rand.New(rand.NewSource(2))
	points := make([]DataPoint[float64], 10000)
	for i := range points {
		x := float64(i)
		p, err := NewDataPoint(x, 3+0.5*x-0.01*x*x+rng.NormFloat64())
		if err != nil {
			b.Fatalf("point failed: %v", err)
		}
		points[i] = p
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		r, err := NewTrendRegression(points, Quadratic)
		if err != nil {
			b.Fatalf("regression failed: %v", err)
		}
		_ = r.R2()
	}
}

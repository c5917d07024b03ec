package analysis

import (
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func oneToTen() []float64 {
	return []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

func TestNewQuantileEstimatorErrors(t *testing.T) {
	_, err := NewQuantileEstimator([]float64{}, true)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPopulation)

	_, err = NewQuantileEstimator[int](nil, false)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPopulation)

	_, err = NewQuantileEstimator([]float64{1, math.Inf(1)}, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidValue)

	_, err = NewQuantileEstimator([]float64{1, 2}, true, WithSigmaFactor(0))
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)
}

func TestQuantileEstimatorDoesNotMutateInput(t *testing.T) {
	population := []int{5, 3, 9, 1}
	e, err := NewQuantileEstimator(population, true)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 3, 9, 1}, population)
	assert.Equal(t, []int{1, 3, 5, 9}, e.Trunk())
}

func TestSampleQuantiles(t *testing.T) {
	e, err := NewQuantileEstimator(oneToTen(), true)
	require.NoError(t, err)

	tests := []struct {
		name     string
		p        float64
		expected float64
	}{
		{name: "zero is the minimum", p: 0, expected: 1},
		{name: "below 1/(n+1) is the minimum", p: 0.05, expected: 1},
		{name: "exactly on an order statistic", p: 3.0 / 11.0, expected: 3},
		{name: "first quartile", p: 0.25, expected: 2.75},
		{name: "median", p: 0.5, expected: 5.5},
		{name: "third quartile", p: 0.75, expected: 8.25},
		{name: "at n/(n+1) is the maximum", p: 10.0 / 11.0, expected: 10},
		{name: "one is the maximum", p: 1, expected: 10},
		{name: "negative clamps to minimum", p: -0.5, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, e.Quantile(tt.p), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(e.Quantile(math.NaN())))
}

func TestPopulationQuantiles(t *testing.T) {
	e, err := NewQuantileEstimator(oneToTen(), false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		p        float64
		expected float64
	}{
		{name: "zero is the minimum", p: 0, expected: 1},
		{name: "fractional position takes the element", p: 0.25, expected: 3},
		{name: "even position averages neighbours", p: 0.4, expected: 4.5},
		{name: "odd position takes the element", p: 0.5, expected: 6},
		{name: "odd position near the top", p: 0.9, expected: 10},
		{name: "even position near the bottom", p: 0.2, expected: 2.5},
		{name: "third quartile", p: 0.75, expected: 8},
		{name: "one is the maximum", p: 1, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, e.Quantile(tt.p), 1e-12)
		})
	}
}

func TestPopulationMedianParity(t *testing.T) {
	six, err := NewQuantileEstimator([]float64{6, 5, 4, 3, 2, 1}, false)
	require.NoError(t, err)
	// n*p = 3 is odd
	assert.Equal(t, 4.0, six.Quantile(0.5))
	assert.Equal(t, 4.0, six.Quartile2())

	eight, err := NewQuantileEstimator([]float64{1, 2, 3, 4, 5, 6, 7, 8}, false)
	require.NoError(t, err)
	// n*p = 2 and 4 are even
	assert.Equal(t, 2.5, eight.Quartile1())
	assert.Equal(t, 4.5, eight.Quartile2())
	// n*p = 6 is even
	assert.Equal(t, 6.5, eight.Quartile3())
}

func TestQuartiles(t *testing.T) {
	e, err := NewQuantileEstimator([]int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, true)
	require.NoError(t, err)

	assert.Equal(t, 1.0, e.Quartile0())
	assert.InDelta(t, 2.75, e.Quartile1(), 1e-12)
	assert.Equal(t, 5.5, e.Quartile2())
	assert.InDelta(t, 8.25, e.Quartile3(), 1e-12)
	assert.Equal(t, 10.0, e.Quartile4())
}

func TestSingleElement(t *testing.T) {
	for _, isSample := range []bool{true, false} {
		e, err := NewQuantileEstimator([]float64{7}, isSample)
		require.NoError(t, err)

		for _, p := range []float64{0, 0.1, 0.5, 0.9, 1} {
			assert.Equal(t, 7.0, e.Quantile(p))
		}
		assert.Equal(t, [7]float64{7, 7, 7, 7, 7, 7, 7}, e.TukeyBoxPlot())
		assert.Equal(t, 0.0, e.Sigma())
	}
}

func TestToleranceModes(t *testing.T) {
	skewed := []float64{1, 2, 3, 4, 10, 20, 30, 40, 50, 60}
	clustered := []float64{5, 5, 5, 5, 5, 5, 5, 5, 9}
	zeros := []float64{0, 0, 0, 0, 0}

	tests := []struct {
		name         string
		population   []float64
		mode         ToleranceMode
		lower, upper float64
	}{
		{name: "asymmetric keeps skew", population: skewed, mode: ToleranceAsymmetric, lower: 12.25, upper: 27.5},
		{name: "symmetric halves the span", population: skewed, mode: ToleranceSymmetric, lower: 19.875, upper: 19.875},
		{name: "canonical halves the span", population: skewed, mode: ToleranceCanonical, lower: 19.875, upper: 19.875},
		{name: "asymmetric falls back to sigma", population: clustered, mode: ToleranceAsymmetric, lower: 4.0 / 3.0 * QuartileSigmaFactor, upper: 4.0 / 3.0 * QuartileSigmaFactor},
		{name: "symmetric falls back to sigma", population: clustered, mode: ToleranceSymmetric, lower: 4.0 / 3.0 * QuartileSigmaFactor, upper: 4.0 / 3.0 * QuartileSigmaFactor},
		{name: "canonical never falls back", population: clustered, mode: ToleranceCanonical, lower: 0, upper: 0},
		{name: "all zero stays zero", population: zeros, mode: ToleranceAsymmetric, lower: 0, upper: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewQuantileEstimator(tt.population, true, WithToleranceMode(tt.mode))
			require.NoError(t, err)

			lower, upper := e.ToleranceInterval()
			assert.InDelta(t, tt.lower, lower, 1e-4)
			assert.InDelta(t, tt.upper, upper, 1e-4)
		})
	}
}

func TestToleranceIntervalFor(t *testing.T) {
	e, err := NewQuantileEstimator(oneToTen(), true)
	require.NoError(t, err)

	// 3 sigma leaves less than 1/(n+1) in each tail, so the full range is used
	lower, upper := e.ToleranceIntervalFor(3)
	assert.InDelta(t, 4.5, lower, 1e-12)
	assert.InDelta(t, 4.5, upper, 1e-12)
}

func TestParseToleranceMode(t *testing.T) {
	for _, mode := range []ToleranceMode{ToleranceAsymmetric, ToleranceSymmetric, ToleranceCanonical} {
		parsed, err := ParseToleranceMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	parsed, err := ParseToleranceMode("")
	require.NoError(t, err)
	assert.Equal(t, ToleranceAsymmetric, parsed)

	_, err = ParseToleranceMode("lopsided")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)
}

func TestTukeyBoxPlot(t *testing.T) {
	tests := []struct {
		name       string
		population []float64
		isSample   bool
		expected   [7]float64
	}{
		{
			name:       "uniform sample",
			population: oneToTen(),
			isSample:   true,
			expected:   [7]float64{1, 1, 2.75, 5.5, 8.25, 10, 10},
		},
		{
			name:       "uniform population",
			population: oneToTen(),
			isSample:   false,
			expected:   [7]float64{1, 1, 3, 6, 8, 10, 10},
		},
		{
			name:       "high outlier shortens the upper whisker",
			population: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 50},
			isSample:   true,
			expected:   [7]float64{1, 1, 2.75, 5.5, 8.25, 9, 50},
		},
		{
			name:       "low outlier shortens the lower whisker",
			population: []float64{-40, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			isSample:   false,
			expected:   [7]float64{-40, 1, 2, 5, 7, 9, 9},
		},
		{
			name:       "clustered data uses sigma whiskers",
			population: []float64{5, 5, 5, 5, 5, 5, 5, 5, 9},
			isSample:   true,
			expected:   [7]float64{5, 5, 5, 5, 5, 5, 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewQuantileEstimator(tt.population, tt.isSample)
			require.NoError(t, err)

			box := e.TukeyBoxPlot()
			assert.InDeltaSlice(t, tt.expected[:], box[:], 1e-4)
		})
	}
}

func TestTukeyBoxPlotOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(60)
		population := make([]float64, n)
		for i := range population {
			switch rng.Intn(4) {
			case 0:
				population[i] = math.Round(rng.NormFloat64() * 3)
			case 1:
				population[i] = rng.ExpFloat64() * 10
			default:
				population[i] = rng.NormFloat64()
			}
		}

		for _, mode := range []ToleranceMode{ToleranceAsymmetric, ToleranceSymmetric, ToleranceCanonical} {
			for _, isSample := range []bool{true, false} {
				e, err := NewQuantileEstimator(population, isSample, WithToleranceMode(mode))
				require.NoError(t, err)

				box := e.TukeyBoxPlot()
				for i := 1; i < len(box); i++ {
					require.LessOrEqual(t, box[i-1], box[i], "trial %d mode %s box %v", trial, mode, box)
				}

				trunk := e.Trunk()
				require.True(t, slices.IsSorted(trunk))
				assert.Equal(t, trunk[0], e.Quantile(0))
				assert.Equal(t, trunk[len(trunk)-1], e.Quantile(1))
			}
		}
	}
}

func TestTukeyWithTolerances(t *testing.T) {
	e, err := NewQuantileEstimator([]float64{1, 2, 3, 4, 10, 20, 30, 40, 50, 60}, true)
	require.NoError(t, err)

	full := e.TukeyWithTolerances()
	box := e.TukeyBoxPlot()
	assert.Equal(t, box[:], full[:7])
	assert.InDelta(t, 12.25, full[7], 1e-4)
	assert.InDelta(t, 27.5, full[8], 1e-4)
}

func TestMoments(t *testing.T) {
	values := oneToTen()
	e, err := NewQuantileEstimator(values, true, WithPartitionSize(3))
	require.NoError(t, err)

	assert.InDelta(t, 55.0, e.Sum(), 1e-12)
	assert.InDelta(t, 5.5, e.Avg(), 1e-12)
	assert.InDelta(t, stat.StdDev(values, nil), e.Sigma(), 1e-12)

	pop, err := NewQuantileEstimator(values, false)
	require.NoError(t, err)
	assert.InDelta(t, stat.PopStdDev(values, nil), pop.Sigma(), 1e-12)
}

func TestMomentsConcurrentFirstAccess(t *testing.T) {
	values := make([]float64, 50000)
	for i := range values {
		values[i] = float64(i % 97)
	}
	e, err := NewQuantileEstimator(values, true, WithPartitionSize(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	sigmas := make([]float64, 16)
	for i := range sigmas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sigmas[i] = e.Sigma()
		}()
	}
	wg.Wait()

	for _, s := range sigmas {
		assert.Equal(t, sigmas[0], s)
	}
	assert.InDelta(t, stat.StdDev(values, nil), sigmas[0], 1e-9)
}

func TestRobustZ(t *testing.T) {
	e, err := NewQuantileEstimator([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, true)
	require.NoError(t, err)

	// median 5, absolute deviations 0,1,1,2,2,3,3,4,4 -> MAD 2
	assert.Equal(t, 2.0, e.MAD())
	assert.Equal(t, 0.0, e.RobustZ(5))
	assert.InDelta(t, math.Asinh(2/(1.4826*2)), e.RobustZ(7), 1e-12)

	flat, err := NewQuantileEstimator([]float64{2, 2, 2, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, flat.MAD())
	assert.InDelta(t, math.Asinh(3), flat.RobustZ(5), 1e-12)
}

func TestFormatCSV(t *testing.T) {
	assert.Equal(t, "", FormatCSV([]float64{}))
	assert.Equal(t, "1,2.5,-3", FormatCSV([]float64{1, 2.5, -3}))
	assert.Equal(t, "10,20", FormatCSV([]int{10, 20}))
	assert.Equal(t, "0.1", FormatCSV([]float32{0.1}))
	assert.Equal(t, "9007199254740993", FormatCSV([]int64{9007199254740993}))

	type celsius float32
	type count uint64
	assert.Equal(t, "0.1,-2.5", FormatCSV([]celsius{0.1, -2.5}))
	assert.Equal(t, "18446744073709551615", FormatCSV([]count{math.MaxUint64}))
	assert.Equal(t, "-7,3", FormatCSV([]int8{-7, 3}))
}

package analysis

import (
	"math/rand"
	"testing"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func mustPoints[T Number](t *testing.T, xs, ys []T) []DataPoint[T] {
	t.Helper()
	points, err := PointsFromPairs(xs, ys)
	require.NoError(t, err)
	return points
}

func TestTrendRegressionExactLine(t *testing.T) {
	points := mustPoints(t, []int{0, 1, 2, 3}, []int{0, 2, 4, 6})

	r, err := NewTrendRegression(points, Linear)
	require.NoError(t, err)

	assert.Equal(t, Linear, r.Mode())
	assert.Equal(t, 4, r.Size())
	assert.InDelta(t, 2.0, r.Slope(), 1e-12)
	assert.InDelta(t, 0.0, r.Intercept(), 1e-12)
	assert.InDelta(t, 1.0, r.R2(), 1e-12)
	assert.InDelta(t, 0.0, r.RSS(), 1e-12)
	assert.InDelta(t, 10.0, r.Response(5), 1e-12)
}

func TestTrendRegressionStandardErrors(t *testing.T) {
	points := mustPoints(t, []float64{0, 1, 2, 3, 4}, []float64{1, 3, 4, 8, 9})

	r, err := NewTrendRegression(points, Linear)
	require.NoError(t, err)

	assert.InDelta(t, 2.1, r.Slope(), 1e-12)
	assert.InDelta(t, 0.8, r.Intercept(), 1e-12)
	assert.InDelta(t, 1.9, r.RSS(), 1e-12)
	assert.InDelta(t, 0.9586956521739131, r.R2(), 1e-12)
	assert.InDelta(t, 0.2516611478423583, r.SlopeStdErr(), 1e-12)
	assert.InDelta(t, 0.6164414002968976, r.InterceptStdErr(), 1e-12)
}

func TestTrendRegressionMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 50; trial++ {
		n := 3 + rng.Intn(200)
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i := range xs {
			xs[i] = rng.Float64()*100 - 50
			ys[i] = 4 - 0.7*xs[i] + rng.NormFloat64()*5
		}

		r, err := NewTrendRegression(mustPoints(t, xs, ys), Linear)
		require.NoError(t, err)

		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		assert.InDelta(t, alpha, r.Intercept(), 1e-9)
		assert.InDelta(t, beta, r.Slope(), 1e-9)
		assert.InDelta(t, stat.RSquared(xs, ys, nil, alpha, beta), r.R2(), 1e-9)
	}
}

func TestTrendRegressionQuadratic(t *testing.T) {
	xs := []float64{-2, -1, 0, 1, 2, 3}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 1 + 2*x + 3*x*x
	}

	r, err := NewTrendRegression(mustPoints(t, xs, ys), Quadratic)
	require.NoError(t, err)

	gamma, err := r.Gamma()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, gamma, 1e-9)
	assert.InDelta(t, 2.0, r.Slope(), 1e-9)
	assert.InDelta(t, 1.0, r.Intercept(), 1e-9)
	assert.InDelta(t, 1.0, r.R2(), 1e-9)

	extremum, err := r.ParabolaExtremum()
	require.NoError(t, err)
	assert.InDelta(t, -1.0/3.0, extremum, 1e-9)
}

func TestTrendRegressionQuadraticOnLineHasNoCurvature(t *testing.T) {
	r, err := NewTrendRegression(mustPoints(t, []int{1, 2, 3, 4}, []int{3, 5, 7, 9}), Quadratic)
	require.NoError(t, err)

	gamma, err := r.Gamma()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, gamma, 1e-9)
	assert.InDelta(t, 2.0, r.Slope(), 1e-9)
	assert.InDelta(t, 1.0, r.Intercept(), 1e-9)
}

func TestTrendRegressionLinearRejectsQuadraticQueries(t *testing.T) {
	r, err := NewTrendRegression(mustPoints(t, []int{0, 1, 2}, []int{1, 2, 3}), Linear)
	require.NoError(t, err)

	_, err = r.Gamma()
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedOperation)

	_, err = r.ParabolaExtremum()
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedOperation)
}

func TestTrendRegressionDegenerateInputs(t *testing.T) {
	_, err := NewTrendRegression([]DataPoint[float64]{}, Linear)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPopulation)

	single, err := NewTrendRegression(mustPoints(t, []float64{2}, []float64{5}), Linear)
	require.NoError(t, err)
	assert.Equal(t, 0.0, single.Slope())
	assert.Equal(t, 5.0, single.Intercept())
	assert.Equal(t, 0.0, single.R2())
	assert.Equal(t, 0.0, single.SlopeStdErr())

	pair, err := NewTrendRegression(mustPoints(t, []float64{0, 1}, []float64{1, 3}), Linear)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pair.Slope(), 1e-12)
	assert.Equal(t, 0.0, pair.SlopeStdErr())
	assert.Equal(t, 0.0, pair.InterceptStdErr())

	vertical, err := NewTrendRegression(mustPoints(t, []float64{4, 4, 4}, []float64{1, 2, 3}), Linear)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vertical.Slope())
	assert.InDelta(t, 2.0, vertical.Intercept(), 1e-12)

	flat, err := NewTrendRegression(mustPoints(t, []float64{1, 2, 3}, []float64{7, 7, 7}), Linear)
	require.NoError(t, err)
	assert.Equal(t, 1.0, flat.R2())
}

func TestParseRegressionMode(t *testing.T) {
	mode, err := ParseRegressionMode("Quadratic")
	require.NoError(t, err)
	assert.Equal(t, Quadratic, mode)

	mode, err = ParseRegressionMode("")
	require.NoError(t, err)
	assert.Equal(t, Linear, mode)

	_, err = ParseRegressionMode("cubic")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)
}

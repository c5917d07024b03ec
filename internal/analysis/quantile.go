package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// QuartileSigmaFactor is the normal z-score enclosing the inner 50% of the mass.
const QuartileSigmaFactor = 0.674489694

// whiskerReach is Tukey's 1.5 multiplier applied to the interquartile span.
const whiskerReach = 1.5

// ToleranceMode selects how tolerance half-widths are derived from quantiles.
type ToleranceMode int

const (
	// ToleranceAsymmetric reports q2-q1 and q3-q2 separately.
	ToleranceAsymmetric ToleranceMode = iota
	// ToleranceSymmetric reports (q3-q1)/2 on both sides.
	ToleranceSymmetric
	// ToleranceCanonical reports (q3-q1)/2 on both sides and never falls back to sigma.
	ToleranceCanonical
)

func (m ToleranceMode) String() string {
	switch m {
	case ToleranceSymmetric:
		return "symmetric"
	case ToleranceCanonical:
		return "canonical"
	default:
		return "asymmetric"
	}
}

// ParseToleranceMode accepts the names produced by String. Empty selects asymmetric.
func ParseToleranceMode(s string) (ToleranceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asymmetric":
		return ToleranceAsymmetric, nil
	case "symmetric":
		return ToleranceSymmetric, nil
	case "canonical":
		return ToleranceCanonical, nil
	}
	return 0, apperrors.NewInvalidConfigurationError(
		fmt.Sprintf("unknown tolerance mode %q", s), nil)
}

type options struct {
	sigmaFactor   float64
	mode          ToleranceMode
	partitionSize int
}

// Option customizes an estimator.
type Option func(*options)

// WithSigmaFactor sets the sigma multiple used for tolerance intervals and whiskers.
func WithSigmaFactor(k float64) Option {
	return func(o *options) { o.sigmaFactor = k }
}

// WithToleranceMode selects the tolerance half-width policy.
func WithToleranceMode(m ToleranceMode) Option {
	return func(o *options) { o.mode = m }
}

// WithPartitionSize sets the partition length for the parallel moment fold.
func WithPartitionSize(n int) Option {
	return func(o *options) { o.partitionSize = n }
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		sigmaFactor:   QuartileSigmaFactor,
		mode:          ToleranceAsymmetric,
		partitionSize: DefaultPartitionSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !isFinite(o.sigmaFactor) || o.sigmaFactor <= 0 {
		return o, apperrors.NewInvalidConfigurationError("sigma factor must be positive", map[string]interface{}{
			"sigma_factor": o.sigmaFactor,
		})
	}
	return o, nil
}

// QuantileEstimator computes order statistics over a sorted, immutable trunk.
// It is safe for concurrent readers; cached moments are computed once.
type QuantileEstimator[T Number] struct {
	trunk    []T
	isSample bool
	opts     options

	momentsOnce sync.Once
	moments     VarianceAccumulator

	madOnce sync.Once
	mad     float64
}

// NewQuantileEstimator sorts a copy of population. No samples are eliminated.
func NewQuantileEstimator[T Number](population []T, isSample bool, opts ...Option) (*QuantileEstimator[T], error) {
	if len(population) == 0 {
		return nil, apperrors.NewEmptyPopulationError("population")
	}
	if err := checkFinite(population, "population"); err != nil {
		return nil, err
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	trunk := slices.Clone(population)
	slices.Sort(trunk)
	return newQuantileEstimator(trunk, isSample, o), nil
}

// newQuantileEstimator takes ownership of an already sorted, non-empty trunk.
func newQuantileEstimator[T Number](trunk []T, isSample bool, o options) *QuantileEstimator[T] {
	return &QuantileEstimator[T]{
		trunk:    trunk,
		isSample: isSample,
		opts:     o,
	}
}

func (e *QuantileEstimator[T]) Size() int { return len(e.trunk) }

func (e *QuantileEstimator[T]) IsSample() bool { return e.isSample }

func (e *QuantileEstimator[T]) SigmaFactor() float64 { return e.opts.sigmaFactor }

func (e *QuantileEstimator[T]) ToleranceMode() ToleranceMode { return e.opts.mode }

// Trunk returns a copy of the sorted working set.
func (e *QuantileEstimator[T]) Trunk() []T {
	return slices.Clone(e.trunk)
}

// Quantile returns the p-quantile of the trunk (R type 6 for samples).
func (e *QuantileEstimator[T]) Quantile(p float64) float64 {
	return quantileOf(e.trunk, p, e.isSample)
}

// quantileOf evaluates the quantile over a sorted slice.
//
// Sample: piecewise linear on (n+1)p, equivalent to R-6, SAS-4, SciPy (0,0)
// and Maple-5. Population: np, averaging the straddling pair when np is an
// even integer and taking the element at floor(np) otherwise.
func quantileOf[T Number](sorted []T, p float64, isSample bool) float64 {
	n := len(sorted)
	if math.IsNaN(p) {
		return math.NaN()
	}
	lo, hi := float64(sorted[0]), float64(sorted[n-1])
	if p <= 0 {
		return lo
	}
	if p >= 1 {
		return hi
	}

	fn := float64(n)
	if isSample {
		if p < 1/(fn+1) {
			return lo
		}
		if p >= fn/(fn+1) {
			return hi
		}
		pos := (fn + 1) * p
		k := int(math.Floor(pos))
		k = max(1, min(k, n-1))
		d := math.Max(0, math.Min(1, pos-float64(k)))
		a, b := float64(sorted[k-1]), float64(sorted[k])
		return a + d*(b-a)
	}

	pos := fn * p
	k := int(math.Floor(pos))
	if pos == float64(k) && k%2 == 0 && k >= 1 && k < n {
		return (float64(sorted[k-1]) + float64(sorted[k])) / 2
	}
	return float64(sorted[min(k, n-1)])
}

func (e *QuantileEstimator[T]) Quartile0() float64 { return float64(e.trunk[0]) }

func (e *QuantileEstimator[T]) Quartile1() float64 { return e.Quantile(0.25) }

func (e *QuantileEstimator[T]) Quartile2() float64 { return e.Quantile(0.5) }

func (e *QuantileEstimator[T]) Quartile3() float64 { return e.Quantile(0.75) }

func (e *QuantileEstimator[T]) Quartile4() float64 { return float64(e.trunk[len(e.trunk)-1]) }

// ToleranceInterval returns the lower and upper half-widths for the
// configured sigma factor.
func (e *QuantileEstimator[T]) ToleranceInterval() (lower, upper float64) {
	return e.ToleranceIntervalFor(e.opts.sigmaFactor)
}

// ToleranceIntervalFor returns the half-widths enclosing the central mass of
// a normal distribution within sigmaFactor standard deviations.
//
// When the bounding quantiles coincide but are not both zero the
// non-canonical modes fall back to sigma*sigmaFactor on both sides.
func (e *QuantileEstimator[T]) ToleranceIntervalFor(sigmaFactor float64) (lower, upper float64) {
	p := TailProbability(sigmaFactor)
	q1 := e.Quantile(p)
	q3 := e.Quantile(1 - p)
	half := (q3 - q1) / 2

	if e.opts.mode == ToleranceCanonical {
		return half, half
	}

	if fuzzyEquals(q1, q3) && !(fuzzyZero(q1) && fuzzyZero(q3)) {
		s := e.Sigma() * sigmaFactor
		slog.Debug("tolerance interval collapsed, using sigma",
			"q1", q1,
			"q3", q3,
			"sigma_factor", sigmaFactor,
			"half_width", s,
		)
		return s, s
	}

	if e.opts.mode == ToleranceSymmetric {
		return half, half
	}

	q2 := e.Quartile2()
	return q2 - q1, q3 - q2
}

// positionQuantile maps a trunk index back to a quantile probability that
// lands exactly on that element.
func (e *QuantileEstimator[T]) positionQuantile(i int) float64 {
	n := float64(len(e.trunk))
	if e.isSample {
		return float64(i+1) / (n + 1)
	}
	return (float64(i) + 0.5) / n
}

// LowerWhisker is the smallest trunk value within 1.5 doubled lower
// half-widths below the first quartile, clamped to [limit, Q1].
func (e *QuantileEstimator[T]) LowerWhisker() float64 {
	q1 := e.Quartile1()
	lower, _ := e.ToleranceInterval()
	limit := q1 - whiskerReach*2*lower

	idx := sort.Search(len(e.trunk), func(i int) bool {
		return float64(e.trunk[i]) >= limit
	})
	if idx == len(e.trunk) {
		return q1
	}

	w := e.Quantile(e.positionQuantile(idx))
	if w < limit {
		w = limit
	}
	return math.Min(w, q1)
}

// UpperWhisker mirrors LowerWhisker above the third quartile.
func (e *QuantileEstimator[T]) UpperWhisker() float64 {
	q3 := e.Quartile3()
	_, upper := e.ToleranceInterval()
	limit := q3 + whiskerReach*2*upper

	idx := sort.Search(len(e.trunk), func(i int) bool {
		return float64(e.trunk[i]) > limit
	}) - 1
	if idx < 0 {
		return q3
	}

	w := e.Quantile(e.positionQuantile(idx))
	if w > limit {
		w = limit
	}
	return math.Max(w, q3)
}

// TukeyBoxPlot returns Q0, lower whisker, Q1, Q2, Q3, upper whisker and Q4.
func (e *QuantileEstimator[T]) TukeyBoxPlot() [7]float64 {
	return [7]float64{
		e.Quartile0(),
		e.LowerWhisker(),
		e.Quartile1(),
		e.Quartile2(),
		e.Quartile3(),
		e.UpperWhisker(),
		e.Quartile4(),
	}
}

// TukeyWithTolerances appends the lower and upper tolerance half-widths to the boxplot.
func (e *QuantileEstimator[T]) TukeyWithTolerances() [9]float64 {
	box := e.TukeyBoxPlot()
	lower, upper := e.ToleranceInterval()

	var out [9]float64
	copy(out[:], box[:])
	out[7] = lower
	out[8] = upper
	return out
}

func (e *QuantileEstimator[T]) accumulated() VarianceAccumulator {
	e.momentsOnce.Do(func() {
		e.moments = AccumulateParallel(e.trunk, e.opts.partitionSize)
	})
	return e.moments
}

func (e *QuantileEstimator[T]) Sum() float64 { return e.accumulated().Sum() }

func (e *QuantileEstimator[T]) Avg() float64 { return e.accumulated().Mean() }

// Sigma is the sample or population standard deviation of the trunk.
func (e *QuantileEstimator[T]) Sigma() float64 { return e.accumulated().Sigma(e.isSample) }

// MAD is the median absolute deviation of the trunk around its median.
func (e *QuantileEstimator[T]) MAD() float64 {
	e.madOnce.Do(func() {
		med := e.Quartile2()
		dev := make([]float64, len(e.trunk))
		for i, v := range e.trunk {
			dev[i] = math.Abs(float64(v) - med)
		}
		slices.Sort(dev)
		e.mad = quantileOf(dev, 0.5, e.isSample)
	})
	return e.mad
}

// RobustZ computes asinh((x - median)/(1.4826*MAD)) against the trunk. A zero
// MAD is replaced by 1.
func (e *QuantileEstimator[T]) RobustZ(x float64) float64 {
	s := 1.4826 * e.MAD()
	if s == 0 {
		s = 1
	}
	return math.Asinh((x - e.Quartile2()) / s)
}

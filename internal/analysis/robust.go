package analysis

import (
	"log/slog"
	"slices"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// RobustEstimator removes outcasts, distance-based outliers (castaways) and
// repeated extreme artifacts (constant scraps) before exposing the
// QuantileEstimator API over the remaining trunk.
type RobustEstimator[T Number] struct {
	*QuantileEstimator[T]

	config     RobustConfig
	population []T
	outcasts   []T
	outliers   []T
	scraps     []T
	width      float64
	first      T
	last       T
}

// NewRobustEstimator builds an estimator from explicit thresholds.
func NewRobustEstimator[T Number](population []T, isSample bool, sigmaFactor, outlierFactor, constantOutlierFactor float64, outcasts []T, opts ...Option) (*RobustEstimator[T], error) {
	cfg := RobustConfig{
		SigmaFactor:           sigmaFactor,
		OutlierFactor:         outlierFactor,
		ConstantOutlierFactor: constantOutlierFactor,
	}
	return NewRobustEstimatorWithConfig(population, isSample, cfg, outcasts, opts...)
}

// NewBalancedEstimator uses quartile tolerances and eliminates nothing.
func NewBalancedEstimator[T Number](population []T, isSample bool, opts ...Option) (*RobustEstimator[T], error) {
	return NewRobustEstimatorWithConfig(population, isSample, BalancedConfig(), nil, opts...)
}

// NewCastawayEstimator removes values further than nine tolerance widths from the quartiles.
func NewCastawayEstimator[T Number](population []T, isSample bool, outcasts []T, opts ...Option) (*RobustEstimator[T], error) {
	return NewRobustEstimatorWithConfig(population, isSample, CastawayConfig(), outcasts, opts...)
}

// NewCastawayConstantEstimator additionally scraps repeated extremes beyond
// three tolerance widths when removeConstant is set.
func NewCastawayConstantEstimator[T Number](population []T, isSample, removeConstant bool, outcasts []T, opts ...Option) (*RobustEstimator[T], error) {
	return NewRobustEstimatorWithConfig(population, isSample, CastawayConstantConfig(removeConstant), outcasts, opts...)
}

// NewRobustEstimatorWithConfig runs the elimination pipeline. The sigma
// factor of cfg overrides any WithSigmaFactor option.
func NewRobustEstimatorWithConfig[T Number](population []T, isSample bool, cfg RobustConfig, outcasts []T, opts ...Option) (*RobustEstimator[T], error) {
	if len(population) == 0 {
		return nil, apperrors.NewEmptyPopulationError("population")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkFinite(population, "population"); err != nil {
		return nil, err
	}
	o, err := buildOptions(append(slices.Clone(opts), WithSigmaFactor(cfg.SigmaFactor)))
	if err != nil {
		return nil, err
	}

	r := &RobustEstimator[T]{
		config:     cfg,
		population: slices.Clone(population),
	}

	banned := make(map[T]struct{}, len(outcasts))
	for _, v := range outcasts {
		banned[v] = struct{}{}
	}

	trunk := make([]T, 0, len(population))
	for _, v := range population {
		if _, ok := banned[v]; ok {
			r.outcasts = append(r.outcasts, v)
			continue
		}
		trunk = append(trunk, v)
	}
	if len(trunk) == 0 {
		return nil, apperrors.NewEmptyTrunkError(len(population), len(r.outcasts), 0)
	}
	slices.Sort(trunk)

	trunk = r.eliminate(trunk, isSample, o.partitionSize)
	if len(trunk) == 0 {
		return nil, apperrors.NewEmptyTrunkError(len(population), len(r.outcasts)+len(r.outliers), len(r.scraps))
	}

	r.QuantileEstimator = newQuantileEstimator(trunk, isSample, o)
	r.first, r.last = r.validBounds()
	return r, nil
}

// eliminate moves castaways and constant scraps out of the sorted trunk.
func (r *RobustEstimator[T]) eliminate(trunk []T, isSample bool, partitionSize int) []T {
	if r.config.OutlierFactor == 0 {
		return trunk
	}

	p := TailProbability(r.config.SigmaFactor)
	q1 := quantileOf(trunk, p, isSample)
	q3 := quantileOf(trunk, 1-p, isSample)
	width := q3 - q1

	if fuzzyZero(width) && !(fuzzyZero(q1) && fuzzyZero(q3)) {
		width = AccumulateParallel(trunk, partitionSize).Sigma(isSample) * r.config.SigmaFactor * 2
	}
	if fuzzyZero(width) {
		slog.Debug("tolerance interval is zero, skipping elimination",
			"q1", q1,
			"q3", q3,
			"size", len(trunk),
		)
		return trunk
	}
	r.width = width

	var (
		n         = len(trunk)
		lowOuter  = q1 - width*r.config.OutlierFactor
		lowInner  = q1 - width*r.config.ConstantOutlierFactor
		highOuter = q3 + width*r.config.OutlierFactor
		highInner = q3 + width*r.config.ConstantOutlierFactor
	)

	// trunk[:a] lower castaways, trunk[a:b] lower candidates,
	// trunk[d:c] upper candidates, trunk[c:] upper castaways.
	a := 0
	for a < n && float64(trunk[a]) < lowOuter {
		a++
	}
	b := a
	for b < n && float64(trunk[b]) < lowInner {
		b++
	}
	c := n
	for c > b && float64(trunk[c-1]) > highOuter {
		c--
	}
	d := c
	for d > b && float64(trunk[d-1]) > highInner {
		d--
	}

	keepLo, keepHi := a, c

	// Castaways on a tail suppress the constant check on that tail.
	if a == 0 && b > a {
		if run := constantRun(trunk[a:b], true); run > 0 {
			r.scraps = append(r.scraps, trunk[a:a+run]...)
			keepLo = a + run
		}
	}
	if c == n && c > d {
		if run := constantRun(trunk[d:c], false); run > 0 {
			r.scraps = append(r.scraps, trunk[c-run:c]...)
			keepHi = c - run
		}
	}

	r.outliers = append(r.outliers, trunk[:a]...)
	r.outliers = append(r.outliers, trunk[c:]...)

	if len(r.outliers) > 0 || len(r.scraps) > 0 {
		slog.Debug("eliminated samples",
			"castaways", len(r.outliers),
			"constant_scraps", len(r.scraps),
			"tolerance_width", width,
		)
	}

	return slices.Clone(trunk[keepLo:keepHi])
}

// constantRun returns how many copies of the extreme candidate to scrap, or 0.
// The extreme is the first element when fromLow is set, else the last. It
// qualifies when it repeats and no other candidate value repeats more often.
func constantRun[T Number](candidates []T, fromLow bool) int {
	extreme := candidates[len(candidates)-1]
	if fromLow {
		extreme = candidates[0]
	}

	extremeRun, longest := 0, 0
	for i := 0; i < len(candidates); {
		j := i
		for j < len(candidates) && candidates[j] == candidates[i] {
			j++
		}
		run := j - i
		if candidates[i] == extreme {
			extremeRun = run
		}
		longest = max(longest, run)
		i = j
	}

	if extremeRun > 1 && extremeRun >= longest {
		return extremeRun
	}
	return 0
}

func (r *RobustEstimator[T]) removedSet() map[T]struct{} {
	removed := make(map[T]struct{}, len(r.outcasts)+len(r.outliers)+len(r.scraps))
	for _, group := range [][]T{r.outcasts, r.outliers, r.scraps} {
		for _, v := range group {
			removed[v] = struct{}{}
		}
	}
	return removed
}

// validBounds finds the first and last population members, in original order,
// that survived elimination. Elimination removes every copy of a value, so
// membership by value is exact.
func (r *RobustEstimator[T]) validBounds() (first, last T) {
	removed := r.removedSet()
	for _, v := range r.population {
		if _, ok := removed[v]; !ok {
			first = v
			break
		}
	}
	for i := len(r.population) - 1; i >= 0; i-- {
		if _, ok := removed[r.population[i]]; !ok {
			last = r.population[i]
			break
		}
	}
	return first, last
}

func (r *RobustEstimator[T]) Config() RobustConfig { return r.config }

// EliminationWidth is the tolerance width the outlier bounds were scaled by,
// or 0 when elimination did not run.
func (r *RobustEstimator[T]) EliminationWidth() float64 { return r.width }

// PopulationSize counts every member handed to the constructor.
func (r *RobustEstimator[T]) PopulationSize() int { return len(r.population) }

// Outcasts returns the population members that matched the caller's outcast list.
func (r *RobustEstimator[T]) Outcasts() []T { return slices.Clone(r.outcasts) }

// Outliers returns the castaways found by the distance rule, excluding outcasts.
func (r *RobustEstimator[T]) Outliers() []T { return slices.Clone(r.outliers) }

// Castaways returns outcasts followed by outliers.
func (r *RobustEstimator[T]) Castaways() []T {
	out := make([]T, 0, len(r.outcasts)+len(r.outliers))
	out = append(out, r.outcasts...)
	return append(out, r.outliers...)
}

func (r *RobustEstimator[T]) ConstantScraps() []T { return slices.Clone(r.scraps) }

func (r *RobustEstimator[T]) OutliersAsCSV() string { return FormatCSV(r.outliers) }

func (r *RobustEstimator[T]) ConstantScrapsAsCSV() string { return FormatCSV(r.scraps) }

func (r *RobustEstimator[T]) FirstValidElement() T { return r.first }

func (r *RobustEstimator[T]) LastValidElement() T { return r.last }

// PopulationMinFigure is the smallest observed value, including removed ones.
func (r *RobustEstimator[T]) PopulationMinFigure() float64 {
	m := r.Quartile0()
	for _, group := range [][]T{r.outcasts, r.outliers, r.scraps} {
		for _, v := range group {
			m = min(m, float64(v))
		}
	}
	return m
}

// PopulationMaxFigure is the largest observed value, including removed ones.
func (r *RobustEstimator[T]) PopulationMaxFigure() float64 {
	m := r.Quartile4()
	for _, group := range [][]T{r.outcasts, r.outliers, r.scraps} {
		for _, v := range group {
			m = max(m, float64(v))
		}
	}
	return m
}

package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// RegressionMode selects the fitted curve.
type RegressionMode int

const (
	// Linear fits y = a + b*x.
	Linear RegressionMode = iota
	// Quadratic fits y = a + b*x + c*x^2.
	Quadratic
)

func (m RegressionMode) String() string {
	if m == Quadratic {
		return "quadratic"
	}
	return "linear"
}

// ParseRegressionMode accepts "linear" or "quadratic". Empty selects linear.
func ParseRegressionMode(s string) (RegressionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "quadratic":
		return Quadratic, nil
	}
	return 0, apperrors.NewInvalidConfigurationError(
		fmt.Sprintf("unknown regression mode %q", s), nil)
}

// TrendRegression is an ordinary least squares fit over paired samples. The
// quadratic fit regresses on x and z = x^2 simultaneously.
type TrendRegression struct {
	mode RegressionMode
	xs   []float64
	ys   []float64

	xMean, yMean, zMean float64
	sxx, syy, sxy       float64
	szz, szx, szy       float64

	alpha float64
	beta  float64
	gamma float64

	rssOnce sync.Once
	rss     float64
}

// NewTrendRegression fits the points in the requested mode.
func NewTrendRegression[T Number](points []DataPoint[T], mode RegressionMode) (*TrendRegression, error) {
	if len(points) == 0 {
		return nil, apperrors.NewEmptyPopulationError("points")
	}

	r := &TrendRegression{
		mode: mode,
		xs:   make([]float64, len(points)),
		ys:   make([]float64, len(points)),
	}
	for i, p := range points {
		r.xs[i] = float64(p.X())
		r.ys[i] = float64(p.Y())
	}

	r.fit()
	return r, nil
}

func (r *TrendRegression) fit() {
	n := float64(len(r.xs))

	var sumX, sumY, sumZ float64
	for i, x := range r.xs {
		sumX += x
		sumY += r.ys[i]
		if r.mode == Quadratic {
			sumZ += x * x
		}
	}
	r.xMean = sumX / n
	r.yMean = sumY / n
	r.zMean = sumZ / n

	for i, x := range r.xs {
		dx := x - r.xMean
		dy := r.ys[i] - r.yMean
		r.sxx += dx * dx
		r.syy += dy * dy
		r.sxy += dx * dy
		if r.mode == Quadratic {
			dz := x*x - r.zMean
			r.szz += dz * dz
			r.szx += dz * dx
			r.szy += dz * dy
		}
	}

	if r.mode == Quadratic {
		num := r.szy*r.sxx - r.sxy*r.szx
		den := r.szz*r.sxx - r.szx*r.szx
		if num == 0 || den == 0 {
			slog.Debug("degenerate quadratic fit, curvature set to zero",
				"numerator", num,
				"denominator", den,
				"points", len(r.xs),
			)
		} else {
			r.gamma = num / den
		}
	}

	if len(r.xs) >= 2 && r.sxx != 0 {
		r.beta = (r.sxy - r.gamma*r.szx) / r.sxx
	}
	r.alpha = r.yMean - r.gamma*r.zMean - r.beta*r.xMean
}

func (r *TrendRegression) Mode() RegressionMode { return r.mode }

func (r *TrendRegression) Size() int { return len(r.xs) }

// Slope is the linear coefficient.
func (r *TrendRegression) Slope() float64 { return r.beta }

func (r *TrendRegression) Intercept() float64 { return r.alpha }

// Gamma is the quadratic coefficient. Linear fits have none.
func (r *TrendRegression) Gamma() (float64, error) {
	if r.mode != Quadratic {
		return 0, apperrors.NewUnsupportedOperationError("gamma", "linear regression has no curvature")
	}
	return r.gamma, nil
}

// Response evaluates the fitted curve at x.
func (r *TrendRegression) Response(x float64) float64 {
	return r.alpha + r.beta*x + r.gamma*x*x
}

// RSS is the residual sum of squares, computed on first use.
func (r *TrendRegression) RSS() float64 {
	r.rssOnce.Do(func() {
		for i, x := range r.xs {
			res := r.ys[i] - r.Response(x)
			r.rss += res * res
		}
	})
	return r.rss
}

// R2 is the coefficient of determination. A constant response is explained
// fully when the residuals vanish.
func (r *TrendRegression) R2() float64 {
	if len(r.xs) < 2 {
		return 0
	}
	rss := r.RSS()
	if r.syy == 0 {
		if fuzzyZero(rss) {
			return 1
		}
		return 0
	}
	return 1 - rss/r.syy
}

func (r *TrendRegression) residualVariance() (float64, bool) {
	if len(r.xs) <= 2 || r.sxx == 0 {
		return 0, false
	}
	return r.RSS() / float64(len(r.xs)-2), true
}

// SlopeStdErr is the standard error of the slope.
func (r *TrendRegression) SlopeStdErr() float64 {
	s2, ok := r.residualVariance()
	if !ok {
		return 0
	}
	return math.Sqrt(s2 / r.sxx)
}

// InterceptStdErr is the standard error of the intercept.
func (r *TrendRegression) InterceptStdErr() float64 {
	s2, ok := r.residualVariance()
	if !ok {
		return 0
	}
	n := float64(len(r.xs))
	return math.Sqrt(s2 * (1/n + r.xMean*r.xMean/r.sxx))
}

// ParabolaExtremum returns the x of the vertex of a quadratic fit.
func (r *TrendRegression) ParabolaExtremum() (float64, error) {
	if r.mode != Quadratic {
		return 0, apperrors.NewUnsupportedOperationError("parabola extremum", "linear regression has no extremum")
	}
	if r.gamma == 0 {
		return 0, apperrors.NewUnsupportedOperationError("parabola extremum", "fitted curvature is zero")
	}
	return -r.beta / (2 * r.gamma), nil
}

package analysis

import "math"

// Erf approximates the Gauss error function with a Chebyshev fit whose
// fractional error is below 1.2e-7 everywhere.
func Erf(z float64) float64 {
	switch {
	case math.IsNaN(z):
		return math.NaN()
	case z == 0:
		return 0
	case z > 6:
		return 1
	case z < -6:
		return -1
	}

	t := 1 / (1 + 0.5*math.Abs(z))
	ans := 1 - t*math.Exp(-z*z-1.26551223+
		t*(1.00002368+
			t*(0.37409196+
				t*(0.09678418+
					t*(-0.18628806+
						t*(0.27886807+
							t*(-1.13520398+
								t*(1.48851587+
									t*(-0.82215223+
										t*0.17087277)))))))))
	if z >= 0 {
		return ans
	}
	return -ans
}

// ProbabilityWithinSigma returns the two-sided mass of a normal distribution
// within k standard deviations of its mean.
func ProbabilityWithinSigma(k float64) float64 {
	return Erf(k / math.Sqrt2)
}

// TailProbability is the mass in one tail beyond k standard deviations.
func TailProbability(k float64) float64 {
	return (1 - ProbabilityWithinSigma(k)) / 2
}

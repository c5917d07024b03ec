package api

// BoxplotRequest is the body of POST /v1/boxplot. Omitted fields fall back to
// the engine configuration.
type BoxplotRequest struct {
	Values                []float64 `json:"values"`
	Outcasts              []float64 `json:"outcasts,omitempty"`
	IsSample              *bool     `json:"is_sample,omitempty"`
	Policy                string    `json:"policy,omitempty"`
	SigmaFactor           *float64  `json:"sigma_factor,omitempty"`
	OutlierFactor         *float64  `json:"outlier_factor,omitempty"`
	ConstantOutlierFactor *float64  `json:"constant_outlier_factor,omitempty"`
	ToleranceMode         string    `json:"tolerance_mode,omitempty"`
}

// BoxplotResponse reports the boxplot of the trunk and what was eliminated
type BoxplotResponse struct {
	Policy            string     `json:"policy"`
	BoxPlot           [7]float64 `json:"boxplot"`
	Tolerances        [2]float64 `json:"tolerances"`
	Outcasts          []float64  `json:"outcasts"`
	Outliers          []float64  `json:"outliers"`
	OutliersCSV       string     `json:"outliers_csv"`
	ConstantScraps    []float64  `json:"constant_scraps"`
	ConstantScrapsCSV string     `json:"constant_scraps_csv"`
	Sum               float64    `json:"sum"`
	Avg               float64    `json:"avg"`
	Sigma             float64    `json:"sigma"`
	Size              int        `json:"size"`
	PopulationSize    int        `json:"population_size"`
	PopulationMin     float64    `json:"population_min"`
	PopulationMax     float64    `json:"population_max"`
	FirstValid        float64    `json:"first_valid"`
	LastValid         float64    `json:"last_valid"`
}

// Point is one (x, y) observation
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrendRequest is the body of POST /v1/trend
type TrendRequest struct {
	Points []Point `json:"points"`
	Mode   string  `json:"mode,omitempty"`
}

// TrendResponse reports the fitted coefficients. Gamma and Extremum are only
// present for quadratic fits.
type TrendResponse struct {
	Mode            string   `json:"mode"`
	Size            int      `json:"size"`
	Slope           float64  `json:"slope"`
	Intercept       float64  `json:"intercept"`
	Gamma           *float64 `json:"gamma,omitempty"`
	R2              float64  `json:"r2"`
	RSS             float64  `json:"rss"`
	SlopeStdErr     float64  `json:"slope_std_err"`
	InterceptStdErr float64  `json:"intercept_std_err"`
	Extremum        *float64 `json:"extremum,omitempty"`
}

// Preset describes a named elimination policy
type Preset struct {
	Name                  string  `json:"name"`
	SigmaFactor           float64 `json:"sigma_factor"`
	OutlierFactor         float64 `json:"outlier_factor"`
	ConstantOutlierFactor float64 `json:"constant_outlier_factor"`
	Eliminates            bool    `json:"eliminates"`
}

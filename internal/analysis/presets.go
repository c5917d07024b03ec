package analysis

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

const (
	// CastawayOutlierFactor removes values beyond nine tolerance widths.
	CastawayOutlierFactor = 9.0
	// ConstantOutlierFactor bounds the band searched for repeated extremes.
	ConstantOutlierFactor = 3.0
)

// RobustConfig holds the elimination thresholds of a RobustEstimator. An
// OutlierFactor of zero disables elimination.
type RobustConfig struct {
	SigmaFactor           float64 `json:"sigma_factor" yaml:"sigma_factor"`
	OutlierFactor         float64 `json:"outlier_factor" yaml:"outlier_factor"`
	ConstantOutlierFactor float64 `json:"constant_outlier_factor" yaml:"constant_outlier_factor"`
}

// Validate checks the factor invariants.
func (c RobustConfig) Validate() error {
	details := map[string]interface{}{
		"sigma_factor":            c.SigmaFactor,
		"outlier_factor":          c.OutlierFactor,
		"constant_outlier_factor": c.ConstantOutlierFactor,
	}

	switch {
	case !isFinite(c.SigmaFactor) || c.SigmaFactor <= 0:
		return apperrors.NewInvalidConfigurationError("sigma factor must be positive", details)
	case !isFinite(c.OutlierFactor) || c.OutlierFactor < 0:
		return apperrors.NewInvalidConfigurationError("outlier factor must be non-negative", details)
	case !isFinite(c.ConstantOutlierFactor) || c.ConstantOutlierFactor < 0:
		return apperrors.NewInvalidConfigurationError("constant outlier factor must be non-negative", details)
	case c.ConstantOutlierFactor > c.OutlierFactor:
		return apperrors.NewInvalidConfigurationError("constant outlier factor exceeds outlier factor", details)
	case c.OutlierFactor > 0 && c.ConstantOutlierFactor == 0:
		return apperrors.NewInvalidConfigurationError("constant outlier factor must be nonzero when elimination is enabled", details)
	}
	return nil
}

// Eliminates reports whether the configuration removes any outliers.
func (c RobustConfig) Eliminates() bool { return c.OutlierFactor > 0 }

// BalancedConfig uses quartile tolerances without elimination.
func BalancedConfig() RobustConfig {
	return RobustConfig{SigmaFactor: QuartileSigmaFactor}
}

// CastawayConfig removes only far outliers.
func CastawayConfig() RobustConfig {
	return RobustConfig{
		SigmaFactor:           QuartileSigmaFactor,
		OutlierFactor:         CastawayOutlierFactor,
		ConstantOutlierFactor: CastawayOutlierFactor,
	}
}

// CastawayConstantConfig tightens the constant band when removeConstant is
// set and otherwise behaves like CastawayConfig.
func CastawayConstantConfig(removeConstant bool) RobustConfig {
	cfg := CastawayConfig()
	if removeConstant {
		cfg.ConstantOutlierFactor = ConstantOutlierFactor
	}
	return cfg
}

// Preset names accepted by PresetConfig.
const (
	PresetBalanced         = "balanced"
	PresetCastaway         = "castaway"
	PresetCastawayConstant = "castaway_constant"
)

var presets = map[string]RobustConfig{
	PresetBalanced:         BalancedConfig(),
	PresetCastaway:         CastawayConfig(),
	PresetCastawayConstant: CastawayConstantConfig(true),
}

// PresetConfig looks up a named elimination policy.
func PresetConfig(name string) (RobustConfig, error) {
	cfg, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return RobustConfig{}, apperrors.NewInvalidConfigurationError(
			fmt.Sprintf("unknown preset %q", name), map[string]interface{}{
				"available": strings.Join(PresetNames(), ","),
			})
	}
	return cfg, nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

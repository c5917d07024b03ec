package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/trunkstat/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TRUNKSTAT_"

// PolicyCustom selects the explicit factors of EngineConfig instead of a preset
const PolicyCustom = "custom"

// Config is the service and CLI configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	// MaxValues caps the population size accepted per request
	MaxValues int `yaml:"max_values"`
	// MaxBodyBytes caps the request body read by the JSON endpoints
	MaxBodyBytes int `yaml:"max_body_bytes"`
}

// EngineConfig holds estimator defaults applied when a request omits them
type EngineConfig struct {
	Policy                string  `yaml:"policy"`
	SigmaFactor           float64 `yaml:"sigma_factor"`
	OutlierFactor         float64 `yaml:"outlier_factor"`
	ConstantOutlierFactor float64 `yaml:"constant_outlier_factor"`
	ToleranceMode         string  `yaml:"tolerance_mode"`
	IsSample              bool    `yaml:"is_sample"`
	PartitionSize         int     `yaml:"partition_size"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxValues:       1_000_000,
			MaxBodyBytes:    32 << 20,
		},
		Engine: EngineConfig{
			Policy:        analysis.PresetCastawayConstant,
			SigmaFactor:   analysis.QuartileSigmaFactor,
			ToleranceMode: analysis.ToleranceAsymmetric.String(),
			IsSample:      true,
			PartitionSize: analysis.DefaultPartitionSize,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load layers defaults, the YAML file at path (skipped when path is empty),
// a .env file in the working directory and TRUNKSTAT_* variables, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, apperrors.NewInvalidConfigurationError(
				fmt.Sprintf("read config %s: %v", path, err), nil)
		}
		if err := decodeYAML(bytes.NewReader(data), &cfg); err != nil {
			return cfg, err
		}
	}

	// .env is optional
	_ = godotenv.Load(".env")

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewInvalidConfigurationError(fmt.Sprintf("parse config: %v", err), nil)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []string

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = b
		}
	}

	str("PORT", &cfg.Server.Port)
	integer("MAX_VALUES", &cfg.Server.MaxValues)
	integer("MAX_BODY_BYTES", &cfg.Server.MaxBodyBytes)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	str("POLICY", &cfg.Engine.Policy)
	float("SIGMA_FACTOR", &cfg.Engine.SigmaFactor)
	float("OUTLIER_FACTOR", &cfg.Engine.OutlierFactor)
	float("CONSTANT_OUTLIER_FACTOR", &cfg.Engine.ConstantOutlierFactor)
	str("TOLERANCE_MODE", &cfg.Engine.ToleranceMode)
	boolean("IS_SAMPLE", &cfg.Engine.IsSample)
	integer("PARTITION_SIZE", &cfg.Engine.PartitionSize)

	boolean("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	float("RATE_LIMIT_RPS", &cfg.RateLimit.RequestsPerSecond)
	integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	str("LOG_LEVEL", &cfg.Log.Level)

	if len(errs) > 0 {
		return apperrors.NewInvalidConfigurationError("malformed environment overrides", map[string]interface{}{
			"variables": strings.Join(errs, ","),
		})
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	if c.Server.Port == "" {
		return apperrors.NewInvalidConfigurationError("server port is required", nil)
	}
	if c.Server.MaxValues <= 0 {
		return apperrors.NewInvalidConfigurationError("max values must be positive", map[string]interface{}{
			"max_values": c.Server.MaxValues,
		})
	}
	if c.Server.MaxBodyBytes <= 0 {
		return apperrors.NewInvalidConfigurationError("max body bytes must be positive", map[string]interface{}{
			"max_body_bytes": c.Server.MaxBodyBytes,
		})
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return apperrors.NewInvalidConfigurationError("allowed origins must be * or http(s) URLs", map[string]interface{}{
				"origin": origin,
			})
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return apperrors.NewInvalidConfigurationError("rate limit needs positive rate and burst", map[string]interface{}{
			"requests_per_second": c.RateLimit.RequestsPerSecond,
			"burst":               c.RateLimit.Burst,
		})
	}
	if c.Engine.PartitionSize <= 0 {
		return apperrors.NewInvalidConfigurationError("partition size must be positive", map[string]interface{}{
			"partition_size": c.Engine.PartitionSize,
		})
	}
	if _, err := analysis.ParseToleranceMode(c.Engine.ToleranceMode); err != nil {
		return err
	}
	_, err := c.Engine.RobustConfig()
	return err
}

// RobustConfig resolves the policy into elimination factors. Named presets
// keep their own factors but adopt the configured sigma factor.
func (e EngineConfig) RobustConfig() (analysis.RobustConfig, error) {
	var cfg analysis.RobustConfig
	if strings.EqualFold(strings.TrimSpace(e.Policy), PolicyCustom) {
		cfg = analysis.RobustConfig{
			SigmaFactor:           e.SigmaFactor,
			OutlierFactor:         e.OutlierFactor,
			ConstantOutlierFactor: e.ConstantOutlierFactor,
		}
	} else {
		preset, err := analysis.PresetConfig(e.Policy)
		if err != nil {
			return cfg, err
		}
		cfg = preset
		cfg.SigmaFactor = e.SigmaFactor
	}
	return cfg, cfg.Validate()
}

// Options converts the tolerance mode and partition size into estimator options
func (e EngineConfig) Options() ([]analysis.Option, error) {
	mode, err := analysis.ParseToleranceMode(e.ToleranceMode)
	if err != nil {
		return nil, err
	}
	return []analysis.Option{
		analysis.WithToleranceMode(mode),
		analysis.WithPartitionSize(e.PartitionSize),
	}, nil
}

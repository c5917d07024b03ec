package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/trunkstat/internal/analysis"
	"github.com/ZanzyTHEbar/trunkstat/internal/config"
	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
	"github.com/ZanzyTHEbar/trunkstat/internal/monitoring"
)

// Handler serves the estimation endpoints
type Handler struct {
	engine    config.EngineConfig
	maxValues int
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger
}

// NewHandler creates a handler using cfg for request defaults and limits
func NewHandler(cfg config.Config, metrics *monitoring.Metrics, logger *monitoring.Logger) *Handler {
	return &Handler{
		engine:    cfg.Engine,
		maxValues: cfg.Server.MaxValues,
		metrics:   metrics,
		logger:    logger,
	}
}

// Register mounts the /v1 routes on r
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/boxplot", h.Boxplot)
	v1.POST("/trend", h.Trend)
	v1.GET("/presets", h.Presets)
}

// resolveEngine overlays the request's settings on the configured defaults.
// Explicit outlier factors without a policy select the custom policy.
func (h *Handler) resolveEngine(req BoxplotRequest) config.EngineConfig {
	engine := h.engine
	switch {
	case req.Policy != "":
		engine.Policy = req.Policy
	case req.OutlierFactor != nil || req.ConstantOutlierFactor != nil:
		engine.Policy = config.PolicyCustom
	}
	if req.SigmaFactor != nil {
		engine.SigmaFactor = *req.SigmaFactor
	}
	if req.OutlierFactor != nil {
		engine.OutlierFactor = *req.OutlierFactor
	}
	if req.ConstantOutlierFactor != nil {
		engine.ConstantOutlierFactor = *req.ConstantOutlierFactor
	}
	if req.ToleranceMode != "" {
		engine.ToleranceMode = req.ToleranceMode
	}
	if req.IsSample != nil {
		engine.IsSample = *req.IsSample
	}
	return engine
}

// Boxplot handles POST /v1/boxplot
func (h *Handler) Boxplot(c *gin.Context) {
	var req BoxplotRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Values) > h.maxValues {
		apperrors.Respond(c, apperrors.NewInvalidConfigurationError(
			fmt.Sprintf("at most %d values are accepted", h.maxValues), map[string]interface{}{
				"values": len(req.Values),
			}))
		return
	}

	start := time.Now()
	engine := h.resolveEngine(req)

	cfg, err := engine.RobustConfig()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	opts, err := engine.Options()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	e, err := analysis.NewRobustEstimatorWithConfig(req.Values, engine.IsSample, cfg, req.Outcasts, opts...)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	lower, upper := e.ToleranceInterval()
	resp := BoxplotResponse{
		Policy:            engine.Policy,
		BoxPlot:           e.TukeyBoxPlot(),
		Tolerances:        [2]float64{lower, upper},
		Outcasts:          orEmpty(e.Outcasts()),
		Outliers:          orEmpty(e.Outliers()),
		OutliersCSV:       e.OutliersAsCSV(),
		ConstantScraps:    orEmpty(e.ConstantScraps()),
		ConstantScrapsCSV: e.ConstantScrapsAsCSV(),
		Sum:               e.Sum(),
		Avg:               e.Avg(),
		Sigma:             e.Sigma(),
		Size:              e.Size(),
		PopulationSize:    e.PopulationSize(),
		PopulationMin:     e.PopulationMinFigure(),
		PopulationMax:     e.PopulationMaxFigure(),
		FirstValid:        e.FirstValidElement(),
		LastValid:         e.LastValidElement(),
	}

	removed := e.PopulationSize() - e.Size()
	h.metrics.RecordBoxplot(removed)
	h.logger.EstimationLogger("boxplot", engine.Policy, e.PopulationSize(), e.Size(), removed, time.Since(start))

	c.JSON(http.StatusOK, resp)
}

// Trend handles POST /v1/trend
func (h *Handler) Trend(c *gin.Context) {
	var req TrendRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Points) > h.maxValues {
		apperrors.Respond(c, apperrors.NewInvalidConfigurationError(
			fmt.Sprintf("at most %d points are accepted", h.maxValues), map[string]interface{}{
				"points": len(req.Points),
			}))
		return
	}

	mode, err := analysis.ParseRegressionMode(req.Mode)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	start := time.Now()
	points := make([]analysis.DataPoint[float64], len(req.Points))
	for i, p := range req.Points {
		dp, err := analysis.NewDataPoint(p.X, p.Y)
		if err != nil {
			apperrors.Respond(c, apperrors.WrapError(err, "point %d", i))
			return
		}
		points[i] = dp
	}

	r, err := analysis.NewTrendRegression(points, mode)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	resp := TrendResponse{
		Mode:            r.Mode().String(),
		Size:            r.Size(),
		Slope:           r.Slope(),
		Intercept:       r.Intercept(),
		R2:              r.R2(),
		RSS:             r.RSS(),
		SlopeStdErr:     r.SlopeStdErr(),
		InterceptStdErr: r.InterceptStdErr(),
	}
	if gamma, err := r.Gamma(); err == nil {
		resp.Gamma = &gamma
	}
	if extremum, err := r.ParabolaExtremum(); err == nil {
		resp.Extremum = &extremum
	}

	h.metrics.RecordTrend()
	h.logger.EstimationLogger("trend", resp.Mode, r.Size(), r.Size(), 0, time.Since(start))

	c.JSON(http.StatusOK, resp)
}

// Presets handles GET /v1/presets
func (h *Handler) Presets(c *gin.Context) {
	names := analysis.PresetNames()
	presets := make([]Preset, 0, len(names))
	for _, name := range names {
		cfg, err := analysis.PresetConfig(name)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}
		presets = append(presets, Preset{
			Name:                  name,
			SigmaFactor:           cfg.SigmaFactor,
			OutlierFactor:         cfg.OutlierFactor,
			ConstantOutlierFactor: cfg.ConstantOutlierFactor,
			Eliminates:            cfg.Eliminates(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"default_policy": h.engine.Policy,
		"presets":        presets,
	})
}

func orEmpty(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}

// bindJSON decodes the body into dst and answers 400, or 413 when the body
// exceeds the configured limit.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
	return false
}

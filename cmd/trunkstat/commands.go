package main

import (
	"fmt"
	"strconv"

	"github.com/lensesio/tableprinter"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/trunkstat/internal/analysis"
	"github.com/ZanzyTHEbar/trunkstat/internal/config"
)

type statRow struct {
	Statistic string `header:"statistic"`
	Value     string `header:"value"`
}

type presetRow struct {
	Name                  string  `header:"preset"`
	SigmaFactor           float64 `header:"sigma factor"`
	OutlierFactor         float64 `header:"outlier factor"`
	ConstantOutlierFactor float64 `header:"constant outlier factor"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func boxplotCommand() *cli.Command {
	return &cli.Command{
		Name:      "boxplot",
		Usage:     "print the Tukey boxplot of the numbers in FILE (or stdin)",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Aliases: []string{"p"}, Usage: "balanced, castaway, castaway_constant or custom"},
			&cli.Float64Flag{Name: "sigma-factor", Usage: "sigma multiple of the tolerance interval"},
			&cli.Float64Flag{Name: "outlier-factor", Usage: "castaway distance in tolerance widths (custom policy)"},
			&cli.Float64Flag{Name: "constant-outlier-factor", Usage: "constant scrap distance in tolerance widths (custom policy)"},
			&cli.StringFlag{Name: "tolerance-mode", Usage: "asymmetric, symmetric or canonical"},
			&cli.BoolFlag{Name: "population", Usage: "treat the input as a full population instead of a sample"},
			&cli.Float64SliceFlag{Name: "outcast", Usage: "value to exclude before estimation (repeatable)"},
		},
		Action: runBoxplot,
	}
}

func runBoxplot(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	engine := cfg.Engine
	if c.IsSet("policy") {
		engine.Policy = c.String("policy")
	}
	if c.IsSet("sigma-factor") {
		engine.SigmaFactor = c.Float64("sigma-factor")
	}
	if c.IsSet("outlier-factor") {
		engine.OutlierFactor = c.Float64("outlier-factor")
	}
	if c.IsSet("constant-outlier-factor") {
		engine.ConstantOutlierFactor = c.Float64("constant-outlier-factor")
	}
	if c.IsSet("tolerance-mode") {
		engine.ToleranceMode = c.String("tolerance-mode")
	}
	if c.Bool("population") {
		engine.IsSample = false
	}

	robust, err := engine.RobustConfig()
	if err != nil {
		return err
	}
	opts, err := engine.Options()
	if err != nil {
		return err
	}

	in, err := openInput(c.Args().First())
	if err != nil {
		return err
	}
	defer in.Close()

	values, err := readValues(in)
	if err != nil {
		return err
	}

	e, err := analysis.NewRobustEstimatorWithConfig(values, engine.IsSample, robust, c.Float64Slice("outcast"), opts...)
	if err != nil {
		return err
	}

	box := e.TukeyBoxPlot()
	lower, upper := e.ToleranceInterval()
	rows := []statRow{
		{"population", strconv.Itoa(e.PopulationSize())},
		{"trunk", strconv.Itoa(e.Size())},
		{"min", formatFloat(box[0])},
		{"lower whisker", formatFloat(box[1])},
		{"q1", formatFloat(box[2])},
		{"median", formatFloat(box[3])},
		{"q3", formatFloat(box[4])},
		{"upper whisker", formatFloat(box[5])},
		{"max", formatFloat(box[6])},
		{"lower tolerance", formatFloat(lower)},
		{"upper tolerance", formatFloat(upper)},
		{"avg", formatFloat(e.Avg())},
		{"sigma", formatFloat(e.Sigma())},
		{"outcasts", analysis.FormatCSV(e.Outcasts())},
		{"outliers", e.OutliersAsCSV()},
		{"constant scraps", e.ConstantScrapsAsCSV()},
	}

	tableprinter.New(c.App.Writer).Print(rows)
	return nil
}

func trendCommand() *cli.Command {
	return &cli.Command{
		Name:      "trend",
		Usage:     "fit a trend to the \"x y\" pairs in FILE (or stdin)",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "linear", Usage: "linear or quadratic"},
		},
		Action: runTrend,
	}
}

func runTrend(c *cli.Context) error {
	mode, err := analysis.ParseRegressionMode(c.String("mode"))
	if err != nil {
		return err
	}

	in, err := openInput(c.Args().First())
	if err != nil {
		return err
	}
	defer in.Close()

	points, err := readPoints(in)
	if err != nil {
		return err
	}

	r, err := analysis.NewTrendRegression(points, mode)
	if err != nil {
		return err
	}

	rows := []statRow{
		{"mode", r.Mode().String()},
		{"points", strconv.Itoa(r.Size())},
		{"intercept", formatFloat(r.Intercept())},
		{"slope", formatFloat(r.Slope())},
	}
	if gamma, err := r.Gamma(); err == nil {
		rows = append(rows, statRow{"gamma", formatFloat(gamma)})
	}
	rows = append(rows,
		statRow{"r2", formatFloat(r.R2())},
		statRow{"slope std err", formatFloat(r.SlopeStdErr())},
		statRow{"intercept std err", formatFloat(r.InterceptStdErr())},
	)
	if extremum, err := r.ParabolaExtremum(); err == nil {
		rows = append(rows, statRow{"extremum x", formatFloat(extremum)})
	}

	tableprinter.New(c.App.Writer).Print(rows)
	return nil
}

func presetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "presets",
		Usage: "list the named elimination policies",
		Action: func(c *cli.Context) error {
			rows := make([]presetRow, 0, len(analysis.PresetNames()))
			for _, name := range analysis.PresetNames() {
				cfg, err := analysis.PresetConfig(name)
				if err != nil {
					return fmt.Errorf("preset %s: %w", name, err)
				}
				rows = append(rows, presetRow{name, cfg.SigmaFactor, cfg.OutlierFactor, cfg.ConstantOutlierFactor})
			}
			tableprinter.New(c.App.Writer).Print(rows)
			return nil
		},
	}
}

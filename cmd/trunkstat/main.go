package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "trunkstat:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "trunkstat",
		Usage:     "robust quantiles, Tukey boxplots and trend fits",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"TRUNKSTAT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			boxplotCommand(),
			trendCommand(),
			presetsCommand(),
		},
	}
}

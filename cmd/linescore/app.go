package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"

	linescorer "github.com/JohnPlummer/line-scorer"
	"github.com/JohnPlummer/line-scorer/internal/config"
)

// Flags shared by run and worker. Values given here override the config
// file and LINESCORE_* environment variables.
func scorerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML config file",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "URL lines are POSTed to for scoring",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "scoring provider: http or openai",
		},
		&cli.IntFlag{
			Name:  "max-concurrent",
			Usage: "maximum in-flight scoring requests per chunk",
		},
		&cli.BoolFlag{
			Name:  "circuit-breaker",
			Usage: "stop calling the endpoint while it keeps failing",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "text or json",
		},
	}
}

func runFlags() []cli.Flag {
	return append(scorerFlags(),
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "file whose lines are scored",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "number of chunks and concurrent workers",
		},
		&cli.IntFlag{
			Name:  "total-lines",
			Usage: "declared line count; must match the input when set",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "worker backend: local or process",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve Prometheus metrics on this address, e.g. :9090",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "write logs to a rotating file instead of stderr",
		},
	)
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "linescore",
		Usage:     "score every line of a file against a remote endpoint",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "score an input file and print the total",
				UsageText: "linescore run --input FILE [options]",
				Flags:     runFlags(),
				Action:    runAction,
			},
			{
				Name:   "worker",
				Usage:  "score one chunk read from stdin (process backend)",
				Hidden: true,
				Flags:  scorerFlags(),
				Action: workerAction,
			},
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					v := linescorer.GetVersion()
					_, err := fmt.Fprintf(cmd.Root().Writer, "%s %s\n", v.Name, v.Version)
					return err
				},
			},
		},
	}
}

// loadConfig reads the config file and applies explicitly set flags on top
func loadConfig(cmd *cli.Command) (*config.AppConfig, error) {
	app, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	setString := func(flag string, dst *string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	setInt := func(flag string, dst *int) {
		if cmd.IsSet(flag) {
			*dst = cmd.Int(flag)
		}
	}

	setString("endpoint", &app.Scorer.Endpoint)
	setString("provider", &app.Scorer.Provider)
	setInt("max-concurrent", &app.Scorer.MaxConcurrent)
	if cmd.IsSet("circuit-breaker") {
		app.Scorer.CircuitBreaker = cmd.Bool("circuit-breaker")
	}
	setString("log-level", &app.Logger.Level)
	setString("log-format", &app.Logger.Format)

	// run-only flags; IsSet is false for flags a command does not define
	setString("input", &app.Input.File)
	setInt("workers", &app.Scorer.Workers)
	setInt("total-lines", &app.Scorer.TotalLines)
	setString("backend", &app.Scorer.Backend)
	setString("metrics-addr", &app.Metrics.Address)
	setString("log-file", &app.Logger.File)

	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return app, nil
}

// workerArgs are the arguments after the executable that start a worker
// configured like the current run. Secrets are left to the inherited
// environment and the config file.
func workerArgs(cmd *cli.Command, app *config.AppConfig) []string {
	args := []string{"worker"}
	if path := cmd.String("config"); path != "" {
		args = append(args, "--config", path)
	}
	args = append(args,
		"--endpoint", app.Scorer.Endpoint,
		"--provider", app.Scorer.Provider,
		"--max-concurrent", strconv.Itoa(app.Scorer.MaxConcurrent),
		"--log-level", app.Logger.Level,
		"--log-format", app.Logger.Format,
	)
	if app.Scorer.CircuitBreaker {
		args = append(args, "--circuit-breaker")
	}
	return args
}

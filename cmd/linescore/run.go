package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/JohnPlummer/line-scorer/internal/input"
	"github.com/JohnPlummer/line-scorer/internal/logging"
	"github.com/JohnPlummer/line-scorer/scorer"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := logging.Setup(app.LoggingOptions())
	if err != nil {
		return err
	}
	defer closer.Close()

	if app.Input.File == "" {
		return errors.New("an input file is required (--input or input.file)")
	}

	lines, err := input.ReadLines(app.Input.File)
	if err != nil {
		return err
	}

	cfg := app.ToScorerConfig()
	if cfg.Backend == scorer.BackendProcess {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate worker executable: %w", err)
		}
		cfg = cfg.WithProcessBackend(append([]string{exe}, workerArgs(cmd, app)...)...)
	}

	engine, err := scorer.New(cfg)
	if err != nil {
		return err
	}

	if app.Metrics.Address != "" {
		srv := startMetricsServer(app.Metrics.Address, engine)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	result, err := engine.Run(ctx, lines)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Total Score: %s\n", humanize.Comma(result.Total))
	fmt.Fprintf(w, "Elapsed Time: %s seconds\n", humanize.FormatFloat("#,###.##", result.Elapsed.Seconds()))
	return nil
}

func workerAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := logging.Setup(app.LoggingOptions())
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg := app.ToScorerConfig()
	cfg.Backend = scorer.BackendLocal
	cfg.EnableMetrics = false

	engine, err := scorer.New(cfg)
	if err != nil {
		return err
	}

	return scorer.ServeWorker(ctx, cmd.Root().Reader, cmd.Root().Writer, engine.Processor())
}

func startMetricsServer(addr string, engine *scorer.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", scorer.GetMetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := engine.GetHealth()
		w.Header().Set("Content-Type", "application/json")
		if !health.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

// Command draino copies stdin to stdout through a bounded pool of pages,
// reading ahead on one goroutine while another writes behind.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/sushant-115/draino/core/drain"
	internaltelemetry "github.com/sushant-115/draino/internal/telemetry"
	"github.com/sushant-115/draino/pkg/logger"
	"github.com/sushant-115/draino/pkg/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout io.Writer, stderr io.Writer) int {
	cfg, err := parseConfig(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "draino: %v\n", err)
		return 2
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "draino: can't initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = zlogger.Sync() }()

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlogger.Error("CRITICAL: failed to initialize telemetry", zap.Error(err))
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			zlogger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := internaltelemetry.NewPipelineMetrics(tel.Meter)
	if err != nil {
		zlogger.Error("CRITICAL: failed to create pipeline metrics", zap.Error(err))
		return 1
	}

	pipeline, err := drain.New(cfg.Pipeline,
		drain.WithLogger(zlogger.Named("pipeline")),
		drain.WithMetrics(metrics),
		drain.WithTracer(tel.Tracer),
	)
	if err != nil {
		zlogger.Error("CRITICAL: failed to initialize pipeline", zap.Error(err))
		return 1
	}

	adviseSequential(stdin, zlogger)

	out := bufio.NewWriterSize(stdout, pipeline.Config().PageSize)
	report, err := pipeline.Run(context.Background(), stdin, out)
	if report.WriteErr != nil {
		zlogger.Warn("output was incomplete",
			zap.Int64("shortWrites", report.ShortWrites),
			zap.Error(report.WriteErr),
		)
	}
	if err != nil {
		zlogger.Error("drain failed", zap.String("runID", report.RunID), zap.Error(err))
		return 1
	}
	return 0
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sushant-115/draino/core/drain"
	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
	"github.com/sushant-115/draino/pkg/logger"
	"github.com/sushant-115/draino/pkg/telemetry"
)

// Config is the root of the YAML config file.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Pipeline  drain.Config     `yaml:"pipeline"`
}

func defaultConfig() Config {
	return Config{
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stderr",
		},
		Telemetry: telemetry.Config{
			ServiceName: "draino",
		},
		Pipeline: drain.DefaultConfig(),
	}
}

// loadConfigFile overlays the YAML file at path onto cfg. Unknown keys are
// rejected so typos do not pass silently.
func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// parseConfig builds the effective config: defaults, then the config file,
// then any flag given explicitly on the command line.
func parseConfig(args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet("draino", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: draino [flags] < input > output")
		fs.PrintDefaults()
	}

	def := defaultConfig()
	var (
		configPath  = fs.String("config", "", "YAML config file")
		logLevel    = fs.String("log-level", def.Logger.Level, "log level: debug, info, warn, error")
		logFormat   = fs.String("log-format", def.Logger.Format, "log format: console or json")
		logOutput   = fs.String("log-output", def.Logger.OutputFile, "log destination: stderr, discard or a file path")
		numPages    = fs.Int("pages", def.Pipeline.NumPages, "number of pages in the pool")
		pageSize    = fs.Int("page-size", def.Pipeline.PageSize, "page size in bytes")
		queueKind   = fs.String("queue", string(def.Pipeline.QueueKind), "queue container: ring or list")
		writeRate   = fs.Int64("rate", 0, "throttle output to this many bytes per second (0 = unlimited)")
		metricsPort = fs.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 = disabled)")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := def
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Logger.Level = *logLevel
		case "log-format":
			cfg.Logger.Format = *logFormat
		case "log-output":
			cfg.Logger.OutputFile = *logOutput
		case "pages":
			cfg.Pipeline.NumPages = *numPages
		case "page-size":
			cfg.Pipeline.PageSize = *pageSize
		case "queue":
			kind, err := transferqueue.ParseKind(*queueKind)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Pipeline.QueueKind = kind
		case "rate":
			cfg.Pipeline.WriteRateBytesPerSec = *writeRate
		case "metrics-port":
			cfg.Telemetry.Enabled = *metricsPort > 0
			cfg.Telemetry.PrometheusPort = *metricsPort
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

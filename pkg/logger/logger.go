// Package logger provides the standard zap setup for draino. Logs default to
// stderr because stdout carries the relayed data.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "draino"

// Config holds the logger settings.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	// Unknown values fall back to info.
	Level string `yaml:"level"`
	// Format is "json" (default) or "console".
	Format string `yaml:"format"`
	// OutputFile is a path, "stderr" (default) or "discard". "stdout" is
	// refused since it would interleave logs with data.
	OutputFile string `yaml:"output_file"`
}

// New builds a zap.Logger from config. Call it once at startup.
func New(config Config) (*zap.Logger, error) {
	// Parse and set the log level. Defaults to "info".
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(config.Level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	// Configure the output writer. stdout is never a valid choice here.
	writeSyncer, err := getWriteSyncer(config.OutputFile)
	if err != nil {
		return nil, err
	}

	// Combine level, encoder and writer, then tag every entry with the service.
	core := zapcore.NewCore(getEncoder(config.Format), writeSyncer, logLevel)
	logger := zap.New(core, zap.AddCaller()).
		WithOptions(zap.Fields(zap.String("service", ServiceName)))

	return logger, nil
}

// getEncoder selects the log encoder based on the configured format.
func getEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// JSON for machines, console for a human watching stderr.
	if strings.ToLower(format) == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// getWriteSyncer selects the output destination for the logs.
func getWriteSyncer(outputFile string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(outputFile) {
	case "stderr", "":
		return zapcore.Lock(zapcore.AddSync(os.Stderr)), nil
	case "discard":
		return zapcore.AddSync(discard{}), nil
	case "stdout":
		return nil, fmt.Errorf("stdout is reserved for relayed data, log to stderr or a file")
	default:
		// Append to the file if it exists, or create it.
		file, err := os.OpenFile(outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", outputFile, err)
		}
		return zapcore.Lock(zapcore.AddSync(file)), nil
	}
}

// discard drops every entry; used when logging is switched off.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

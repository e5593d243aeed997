// Package logging builds the zap logger of the saori commands.
package logging

import (
	"fmt"

	"github.com/pior/saori/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger writing to stderr.
func New(cfg config.Log) (*zap.Logger, error) {
	zc, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	return zc.Build()
}

func buildConfig(cfg config.Log) (zap.Config, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("log level: %w", err)
	}

	var encoderConfig zapcore.EncoderConfig
	switch cfg.Format {
	case "", "json":
		cfg.Format = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return zap.Config{}, fmt.Errorf("log format: unsupported %q", cfg.Format)
	}

	return zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}, nil
}

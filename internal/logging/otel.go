package logging

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName identifies codeindex log records in OpenTelemetry.
const instrumentationName = "github.com/fyrsmithlabs/codeindex"

// newCore tees the enabled sinks and wraps the result in the sampler.
func newCore(cfg *Config, otelProvider log.LoggerProvider, sink zapcore.WriteSyncer) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stderr {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc, sink, cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider))
		cores = append(cores, &levelFilterCore{Core: otelCore, min: cfg.Level, max: zapcore.FatalLevel})
	}

	if len(cores) == 0 {
		return nil, errors.New("at least one output must be enabled and available")
	}

	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}

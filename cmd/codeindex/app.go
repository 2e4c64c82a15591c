package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/config"
	"github.com/fyrsmithlabs/codeindex/internal/embeddings"
	"github.com/fyrsmithlabs/codeindex/internal/logging"
	"github.com/fyrsmithlabs/codeindex/internal/telemetry"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// app holds the dependencies a command runs with.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     vectorstore.VectorDatabase
	embedder  embeddings.Provider
}

// newApp loads configuration and connects to the vector database. The
// embedding provider is only built when withEmbedder is set.
//
// Initialization order:
//  1. configuration (file, then environment)
//  2. logger, then telemetry, then the logger again with the OTEL sink
//  3. vector store
//  4. embedding provider
func newApp(ctx context.Context, opts *rootOptions, withEmbedder bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	a := &app{cfg: cfg}
	if a.logger, err = newLogger(cfg, nil); err != nil {
		return nil, err
	}

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), a.logger.Underlying())
	if err != nil {
		return nil, err
	}
	if provider := a.telemetry.LoggerProvider(); provider != nil {
		withOTEL, err := newLogger(cfg, provider)
		if err != nil {
			a.logger.Warn(ctx, "otel log bridge unavailable", zap.Error(err))
		} else {
			a.logger = withOTEL
		}
	}

	a.store, err = vectorstore.NewStore(storeConfig(cfg.VectorDB), a.logger.Named("vectorstore").Underlying())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if withEmbedder {
		a.embedder, err = embeddings.NewProvider(embeddings.FromAppConfig(cfg.Embeddings), a.logger.Named("embeddings").Underlying())
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	a.logger.Debug(ctx, "codeindex initialized",
		zap.String("vectordb", cfg.VectorDB.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("telemetry", a.telemetry.IsEnabled()))
	return a, nil
}

func newLogger(cfg *config.Config, provider log.LoggerProvider) (*logging.Logger, error) {
	lc, err := logging.FromAppConfig(cfg.Logging, provider != nil)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lc, provider)
}

// Close releases everything newApp opened, in reverse order. It still flushes
// telemetry when ctx has been cancelled by a signal.
func (a *app) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// storeConfig maps the vectordb config section onto the backend configs.
func storeConfig(c config.VectorDBConfig) vectorstore.StoreConfig {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
		if c.UseTLS {
			scheme = "https"
		}
	}
	var client *http.Client
	if d := c.Timeout.Duration(); d > 0 {
		client = &http.Client{Timeout: d}
	}
	return vectorstore.StoreConfig{
		Provider: c.Provider,
		REST: vectorstore.RESTConfig{
			URL:        c.URL,
			Scheme:     scheme,
			Host:       c.Host,
			Port:       c.Port,
			APIKey:     c.APIKey.Value(),
			HTTPClient: client,
			BatchSize:  c.BatchSize,
		},
		GRPC: vectorstore.GRPCConfig{
			Host:           c.Host,
			Port:           c.Port,
			UseTLS:         c.UseTLS,
			APIKey:         c.APIKey.Value(),
			MaxMessageSize: c.MaxMessageSize,
			BatchSize:      c.BatchSize,
		},
		Chromem: vectorstore.ChromemConfig{
			Path:      c.Chromem.Path,
			Compress:  c.Chromem.Compress,
			BatchSize: c.BatchSize,
		},
	}
}

// requireCollection returns an error naming the flag when name is empty.
func requireCollection(name string) error {
	if name == "" {
		return fmt.Errorf("--collection is required")
	}
	return nil
}

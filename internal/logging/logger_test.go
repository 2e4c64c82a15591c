package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/codeindex/internal/config"
)

// bufferLogger returns a logger writing JSON to the returned buffer.
func bufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	l, err := newLogger(cfg, nil, zapcore.AddSync(&buf))
	require.NoError(t, err)
	return l, &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	l, buf := bufferLogger(t, nil)

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithCollection(ctx, "code_chunks_ab12")
	ctx = WithOperation(ctx, "search")
	l.Info(ctx, "search finished", zap.Int("results", 3))

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "search finished", got[0]["msg"])
	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "codeindex", got[0]["service"])
	assert.Equal(t, "req-42", got[0]["request_id"])
	assert.Equal(t, "code_chunks_ab12", got[0]["collection"])
	assert.Equal(t, "search", got[0]["operation"])
	assert.EqualValues(t, 3, got[0]["results"])
	assert.Contains(t, got[0], "caller")
}

func TestLogger_TraceLevel(t *testing.T) {
	l, buf := bufferLogger(t, nil)
	l.Trace(context.Background(), "request body")

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "trace", got[0]["level"])

	l, buf = bufferLogger(t, func(c *Config) { c.Level = zapcore.DebugLevel })
	l.Trace(context.Background(), "dropped")
	assert.False(t, l.Enabled(TraceLevel))
	assert.Zero(t, buf.Len())
}

func TestLogger_Redaction(t *testing.T) {
	l, buf := bufferLogger(t, nil)

	l.With(zap.String("api_key", "with-field-secret")).Info(context.Background(), "child")
	l.Info(context.Background(), "entry",
		zap.String("Authorization", "Bearer abc"),
		zap.String("header", "bearer xyz123"),
		zap.String("path", "main.go"),
		Secret("token_ref", config.Secret("hunter2")),
	)
	l.Warn(context.Background(), "called with api_key=sk-abcdefghijklmnopqrstu")

	got := entries(t, buf)
	require.Len(t, got, 3)
	assert.Equal(t, redactedValue, got[0]["api_key"])
	assert.Equal(t, redactedValue, got[1]["Authorization"])
	assert.Equal(t, redactedPattern, got[1]["header"])
	assert.Equal(t, "main.go", got[1]["path"])
	assert.Equal(t, "[REDACTED:7]", got[1]["token_ref"])
	assert.Equal(t, redactedPattern, got[2]["msg"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestLogger_RedactionDisabled(t *testing.T) {
	l, buf := bufferLogger(t, func(c *Config) { c.Redaction.Enabled = false })
	l.Info(context.Background(), "entry", zap.String("api_key", "visible"))

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "visible", got[0]["api_key"])
}

func TestLogger_Sampling(t *testing.T) {
	l, buf := bufferLogger(t, func(c *Config) {
		c.Sampling = SamplingConfig{Enabled: true, Tick: time.Hour, Initial: 5, Thereafter: 10}
	})
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		l.Info(ctx, "repeated")
	}
	for i := 0; i < 25; i++ {
		l.Error(ctx, "failure")
	}

	var info, errs int
	for _, e := range entries(t, buf) {
		switch e["msg"] {
		case "repeated":
			info++
		case "failure":
			errs++
		}
	}
	// First 5 pass, then the 15th and 25th.
	assert.Equal(t, 7, info)
	assert.Equal(t, 25, errs)
}

func TestLogger_NamedAndWith(t *testing.T) {
	l, buf := bufferLogger(t, nil)
	l.Named("vectorstore").With(zap.String("backend", "chromem")).Debug(context.Background(), "ready")

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "vectorstore", got[0]["logger"])
	assert.Equal(t, "chromem", got[0]["backend"])
}

func TestContextFields_Trace(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(tracetest.NewInMemoryExporter()),
	)
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	m := zapcore.NewMapObjectEncoder()
	for _, f := range ContextFields(ctx) {
		f.AddTo(m)
	}
	assert.Equal(t, span.SpanContext().TraceID().String(), m.Fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m.Fields["span_id"])
	assert.Equal(t, true, m.Fields["trace_sampled"])
}

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		id   string
		kept bool
	}{
		{"3f2a9c1e-0b7d-4e3a-9f51-2c6d8e0a1b4c", true},
		{"req_1.2:3", true},
		{"", false},
		{"has space", false},
		{"line\nbreak", false},
		{string(bytes.Repeat([]byte("a"), maxRequestIDLen+1)), false},
	}
	for _, tt := range tests {
		ctx := WithRequestID(context.Background(), tt.id)
		if tt.kept {
			assert.Equal(t, tt.id, RequestIDFromContext(ctx))
		} else {
			assert.Empty(t, RequestIDFromContext(ctx), "%q", tt.id)
		}
	}
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()).Underlying())

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "slow query", zap.String("collection", "c"))

	tl.AssertLogged(t, zapcore.WarnLevel, "slow")
	tl.AssertField(t, "slow query", "collection", "c")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }, "at least one output"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "tick"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }, "invalid redaction pattern"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "constant field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger_OTELWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LoggingConfig{Level: "trace", Format: "console"}, true)
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.OTEL)

	_, err = FromAppConfig(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"trace": TraceLevel,
		"TRACE": TraceLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

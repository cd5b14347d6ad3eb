package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	// Skip if no context
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	// Extract span from context
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	// Add trace context to log
	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for discovery and allocation flows

func (l *Logger) LogRegionError(ctx context.Context, region, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("region", region).
		Str("operation", operation).
		Msg("region query failed, skipping region")
}

func (l *Logger) LogAccountError(ctx context.Context, accountID, stage string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("account_id", accountID).
		Str("stage", stage).
		Msg("account processing failed, skipping account")
}

func (l *Logger) LogCostMiss(ctx context.Context, hostID, region, family string) {
	l.WithContext(ctx).Warn().
		Str("host_id", hostID).
		Str("region", region).
		Str("host_family", family).
		Msg("no cost found for host, excluding from output")
}

func (l *Logger) LogVCPUFallback(ctx context.Context, instanceType, region string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("instance_type", instanceType).
		Str("region", region).
		Msg("could not get vCPU count, using size-name fallback")
}

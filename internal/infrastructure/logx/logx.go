package logx

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevel()
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	traceIDKey
)

func init() {
	_ = SetLevel(os.Getenv("LOG_LEVEL"))
	var err error
	logger, err = build(level)
	if err != nil {
		panic(err)
	}
}

// New builds a production JSON logger at the given level (info when empty or unknown).
func New(lvl string) (*zap.Logger, error) {
	atom := zap.NewAtomicLevel()
	if lvl != "" {
		_ = atom.UnmarshalText([]byte(strings.ToLower(lvl)))
	}
	return build(atom)
}

func build(atom zap.AtomicLevel) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atom
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build(zap.AddCaller())
}

// SetLevel changes the level of the package logger and everything derived
// from it. An empty level leaves it unchanged.
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return fmt.Errorf("log level %q: %w", lvl, err)
	}
	return nil
}

// L returns the package-level logger instance.
func L() *zap.Logger {
	return logger
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithFields enriches the package logger with request and trace ids from ctx.
func WithFields(ctx context.Context) *zap.Logger {
	return Enrich(logger, ctx)
}

// Enrich adds request_id / trace_id fields from ctx to log, when present.
func Enrich(log *zap.Logger, ctx context.Context) *zap.Logger {
	if log == nil {
		log = logger
	}
	var fields []zap.Field
	if rid := RequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if tid := TraceID(ctx); tid != "" {
		fields = append(fields, zap.String("trace_id", tid))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// Package logging provides structured logging for the GreonXpert console.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Field represents a log field.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain fields used across the wizards and the relay.

func Component(name string) Field { return String("component", name) }
func Step(name string) Field      { return String("step", name) }
func Room(name string) Field      { return String("room", name) }
func Slot(name string) Field      { return String("slot", name) }

// SlogLogger implements Logger using slog.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

type options struct {
	level     slog.Level
	output    io.Writer
	json      bool
	addSource bool
}

// Option configures the logger.
type Option func(*options)

// WithLevel sets the log level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithJSON enables JSON output.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithSource adds source location to logs.
func WithSource() Option {
	return func(o *options) { o.addSource = true }
}

// New creates a slog-based logger. Output defaults to stderr so that
// terminal front ends keep stdout to themselves.
func New(opts ...Option) *SlogLogger {
	o := &options{level: slog.LevelInfo, output: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{Level: o.level, AddSource: o.addSource}
	var handler slog.Handler
	if o.json {
		handler = slog.NewJSONHandler(o.output, hopts)
	} else {
		handler = slog.NewTextHandler(o.output, hopts)
	}

	return &SlogLogger{logger: slog.New(handler), ctx: context.Background()}
}

// ParseLevel maps a config string to a slog level. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

func (l *SlogLogger) Debug(msg string, fields ...Field) {
	l.logger.DebugContext(l.ctx, msg, attrs(fields)...)
}

func (l *SlogLogger) Info(msg string, fields ...Field) {
	l.logger.InfoContext(l.ctx, msg, attrs(fields)...)
}

func (l *SlogLogger) Warn(msg string, fields ...Field) {
	l.logger.WarnContext(l.ctx, msg, attrs(fields)...)
}

func (l *SlogLogger) Error(msg string, fields ...Field) {
	l.logger.ErrorContext(l.ctx, msg, attrs(fields)...)
}

// With returns a logger with additional fields.
func (l *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{logger: l.logger.With(attrs(fields)...), ctx: l.ctx}
}

// WithContext returns a logger bound to ctx.
func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

type ctxKey struct{}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// L returns the logger stored in ctx, or Default.
func L(ctx context.Context) Logger {
	if logger, ok := ctx.Value(ctxKey{}).(Logger); ok && logger != nil {
		return logger
	}
	return Default
}

// Default is the process-wide logger.
var Default Logger = New()

// SetDefault replaces the process-wide logger.
func SetDefault(logger Logger) {
	Default = logger
}

// Nop is a logger that discards everything.
type Nop struct{}

func (Nop) Debug(string, ...Field)               {}
func (Nop) Info(string, ...Field)                {}
func (Nop) Warn(string, ...Field)                {}
func (Nop) Error(string, ...Field)               {}
func (n Nop) With(...Field) Logger               { return n }
func (n Nop) WithContext(context.Context) Logger { return n }

// RequestLogger logs HTTP requests. It expects chi's RequestID middleware
// to run first; without it a timestamp id is used.
func RequestLogger(logger Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			if reqID == "" {
				reqID = fmt.Sprintf("%d", start.UnixNano())
			}

			reqLogger := logger.With(
				String("request_id", reqID),
				String("method", r.Method),
				String("path", r.URL.Path),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ContextWithLogger(r.Context(), reqLogger)))

			reqLogger.Info("request completed",
				Int("status", ww.Status()),
				Int("bytes", ww.BytesWritten()),
				Duration("duration", time.Since(start)),
			)
		})
	}
}

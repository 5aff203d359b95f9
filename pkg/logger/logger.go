// Package logger wraps zerolog with a request scoped context logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	// RequestIDKey carries the request id in a context.
	RequestIDKey contextKey = "request_id"
	// LoggerKey carries the derived *zerolog.Logger in a context.
	LoggerKey contextKey = "logger"
)

var (
	mu           sync.RWMutex
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	globalWriter *SmartWriter
)

// Config selects level (debug, info, warn, error), format (json, console)
// and the output. A nil Output means stdout.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// InitWithFile logs to a rotated file, and to stdout as well when console
// is set. Background daemons pass console=false.
func InitWithFile(filename, level, format string, console bool) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	var out io.Writer = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	if console {
		out = io.MultiWriter(os.Stdout, out)
	}
	Init(Config{Level: level, Format: format, Output: out})
	return nil
}

// Init replaces the global logger. Output is always buffered through a
// SmartWriter; call Close before exiting.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.CallerMarshalFunc = shortCaller

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	sw := NewSmartWriter(out, time.Second)

	var l zerolog.Logger
	if cfg.Format == "console" {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        sw,
			TimeFormat: "2006-01-02 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-7s", i))
			},
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		})
	} else {
		l = zerolog.New(sw)
	}
	l = l.With().Timestamp().Caller().Logger()

	mu.Lock()
	prev := globalWriter
	globalLogger, globalWriter = l, sw
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}

// shortCaller keeps the last two path elements, e.g. usecase/settlement_uc.go:42.
func shortCaller(_ uintptr, file string, line int) string {
	seen := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			seen++
			if seen == 2 {
				file = file[i+1:]
				break
			}
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Flush writes out whatever the global writer has buffered.
func Flush() {
	mu.RLock()
	w := globalWriter
	mu.RUnlock()
	if w != nil {
		_ = w.Sync()
	}
}

// Close flushes and stops the global writer.
func Close() {
	mu.Lock()
	w := globalWriter
	globalWriter = nil
	mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func global() *zerolog.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	return &l
}

// WithRequestID stores the id and a logger tagged with it in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := FromContext(ctx).With().Str("request_id", requestID).Logger()
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	return context.WithValue(ctx, LoggerKey, &l)
}

// FromContext returns the logger stored in ctx, or the global one.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return global()
	}
	if l, ok := ctx.Value(LoggerKey).(*zerolog.Logger); ok && l != nil {
		return l
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		l := global().With().Str("request_id", id).Logger()
		return &l
	}
	return global()
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithFields returns a ctx whose logger carries the extra fields.
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := FromContext(ctx).With()
	for k, v := range fields {
		lc = lc.Interface(k, v)
	}
	l := lc.Logger()
	return context.WithValue(ctx, LoggerKey, &l)
}

func Debug(ctx context.Context) *zerolog.Event { return FromContext(ctx).Debug() }
func Info(ctx context.Context) *zerolog.Event  { return FromContext(ctx).Info() }
func Warn(ctx context.Context) *zerolog.Event  { return FromContext(ctx).Warn() }
func Error(ctx context.Context) *zerolog.Event { return FromContext(ctx).Error() }
func Fatal(ctx context.Context) *zerolog.Event { return FromContext(ctx).Fatal() }

// Global variants for code without a context, mostly startup and shutdown.
func DebugGlobal() *zerolog.Event { return global().Debug() }
func InfoGlobal() *zerolog.Event  { return global().Info() }
func WarnGlobal() *zerolog.Event  { return global().Warn() }
func ErrorGlobal() *zerolog.Event { return global().Error() }
func FatalGlobal() *zerolog.Event { return global().Fatal() }

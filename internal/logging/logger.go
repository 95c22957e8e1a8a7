// Package logging provides structured logging for pagedb.
package logging

import (
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatText
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithRequestID returns a new logger with the given request ID.
	WithRequestID(requestID string) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
	// Close flushes buffered entries and closes a log file opened by New.
	// Derived loggers share the output; close only the root.
	Close() error
}

// logger is the zap-backed implementation of Logger.
type logger struct {
	sugar *zap.SugaredLogger
	file  io.Closer // log file opened by New, nil otherwise
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	Output string
}

// New creates a new Logger with the given configuration.
func New(cfg Config) Logger {
	level, format := ParseLevel(cfg.Level), ParseFormat(cfg.Format)

	switch cfg.Output {
	case "", "stdout":
		return NewWithWriter(level, format, consoleWriter{os.Stdout})
	case "stderr":
		return NewWithWriter(level, format, consoleWriter{os.Stderr})
	}

	// Try to open file, fall back to stdout on error
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return NewWithWriter(level, format, consoleWriter{os.Stdout})
	}
	l := NewWithWriter(level, format, f).(*logger)
	l.file = f
	return l
}

// consoleWriter hides the Sync method of stdout and stderr, which fails on
// terminals and pipes.
type consoleWriter struct {
	io.Writer
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(level Level, format Format, w io.Writer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = "level"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	encCfg.StacktraceKey = zapcore.OmitKey

	var enc zapcore.Encoder
	if format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level.zapLevel())
	return &logger{sugar: zap.New(core).Sugar()}
}

// NewDefault creates a new Logger with default settings.
func NewDefault() Logger {
	return NewWithWriter(LevelInfo, FormatText, consoleWriter{os.Stdout})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return &nopLogger{}
}

// Debug logs a debug message.
func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message.
func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// WithRequestID returns a new logger with the given request ID.
func (l *logger) WithRequestID(requestID string) Logger {
	return &logger{sugar: l.sugar.With("request_id", requestID), file: l.file}
}

// WithFields returns a new logger with the given fields.
// Pairs whose key is not a string are dropped.
func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	fields := make([]interface{}, 0, len(keysAndValues))
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if _, ok := keysAndValues[i].(string); ok {
			fields = append(fields, keysAndValues[i], keysAndValues[i+1])
		}
	}
	return &logger{sugar: l.sugar.With(fields...), file: l.file}
}

// Close syncs the zap core and closes the log file, if any.
func (l *logger) Close() error {
	err := l.sugar.Sync()
	if l.file != nil {
		err = multierr.Append(err, l.file.Close())
	}
	return err
}

// nopLogger is a no-op logger that discards all output.
type nopLogger struct{}

func (n *nopLogger) Debug(_ string, _ ...interface{})   {}
func (n *nopLogger) Info(_ string, _ ...interface{})    {}
func (n *nopLogger) Warn(_ string, _ ...interface{})    {}
func (n *nopLogger) Error(_ string, _ ...interface{})   {}
func (n *nopLogger) WithRequestID(_ string) Logger      { return n }
func (n *nopLogger) WithFields(_ ...interface{}) Logger { return n }
func (n *nopLogger) Close() error                       { return nil }

// Package log provides structured logging with stream context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the ingestion path (structured fields)
//   - SugaredLogger: printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StreamMeta identifies the stream a logger reports on.
type StreamMeta struct {
	// StreamID is the unique id of one decode run.
	StreamID string
	// Source names where the stream came from (file path, "stdin", ...).
	Source string
}

// Logger provides structured logging with stream context.
// Every entry carries stream_id and, when set, source.
type Logger struct {
	zap   *zap.Logger
	meta  StreamMeta
	out   io.Writer
	level zapcore.Level
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger with stream context writing to os.Stderr.
func NewLogger(meta StreamMeta) *Logger {
	return newLoggerWithWriter(meta, os.Stderr, zapcore.DebugLevel)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), out: io.Discard}
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.meta, w, l.level)
}

// WithLevel returns a new logger that drops entries below level.
// Unknown level names leave the level unchanged.
func (l *Logger) WithLevel(level string) *Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return l
	}
	return newLoggerWithWriter(l.meta, l.out, lvl)
}

func newEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
}

func contextFields(meta StreamMeta) []zap.Field {
	fields := []zap.Field{zap.String("stream_id", meta.StreamID)}
	if meta.Source != "" {
		fields = append(fields, zap.String("source", meta.Source))
	}
	return fields
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(meta StreamMeta, w io.Writer, level zapcore.Level) *Logger {
	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(w), level)
	return &Logger{
		zap:   zap.New(core).With(contextFields(meta)...),
		meta:  meta,
		out:   w,
		level: level,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}

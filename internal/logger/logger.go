package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log severity. The four levels map onto zap's.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var zapLevels = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

// String returns the upper-case level name, or UNKNOWN.
func (l Level) String() string {
	if z, ok := zapLevels[l]; ok {
		return z.CapitalString()
	}
	return "UNKNOWN"
}

func (l Level) zapLevel() zapcore.Level {
	if z, ok := zapLevels[l]; ok {
		return z
	}
	return zapcore.InfoLevel
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (Level, error) {
	for l, z := range zapLevels {
		if strings.EqualFold(s, z.String()) {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// Logger is a leveled logger backed by zap. The terminal belongs to the TUI,
// so output goes to a file (or nowhere) rather than stderr.
type Logger struct {
	mu    sync.Mutex
	level zap.AtomicLevel
	out   zapcore.WriteSyncer
	sugar *zap.SugaredLogger
	file  *os.File
}

// Default is the process-wide logger used by the package-level helpers.
var Default *Logger

func init() {
	Default = New()
}

// New creates a logger, reading DEALERDESK_LOG_LEVEL and DEALERDESK_LOG_FILE.
// Without a log file output is discarded.
func New() *Logger {
	l := &Logger{
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
		out:   zapcore.AddSync(io.Discard),
	}

	if levelStr := os.Getenv("DEALERDESK_LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLevel(levelStr); err == nil {
			l.level.SetLevel(level.zapLevel())
		}
	}

	if logFile := os.Getenv("DEALERDESK_LOG_FILE"); logFile != "" {
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			l.file = f
			l.out = zapcore.AddSync(f)
		}
	}

	l.rebuild()
	return l
}

// rebuild recreates the zap core after the output changes. Caller holds mu
// or is the constructor.
func (l *Logger) rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), l.out, l.level)
	l.sugar = zap.New(core).Sugar()
}

// Close flushes buffered entries and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.sugar.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// SetLevel changes the minimum level; it is safe to call concurrently.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// SetOutput sends entries to w, used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = zapcore.AddSync(w)
	l.rebuild()
}

// SetFile redirects output to the named file, replacing any file opened from
// the environment.
func (l *Logger) SetFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = f
	l.out = zapcore.AddSync(f)
	l.rebuild()
	return nil
}

func (l *Logger) Debug(format string, v ...interface{}) { l.logger().Debugf(format, v...) }
func (l *Logger) Info(format string, v ...interface{}) { l.logger().Infof(format, v...) }
func (l *Logger) Warn(format string, v ...interface{}) { l.logger().Warnf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.logger().Errorf(format, v...) }

// With returns a zap logger carrying the given key/value pairs, for call sites
// that want structured fields rather than a formatted line.
func (l *Logger) With(kv ...interface{}) *zap.SugaredLogger {
	return l.logger().With(kv...)
}

func (l *Logger) logger() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

// The package-level helpers log through Default.

func Debug(format string, v ...interface{}) { Default.Debug(format, v...) }
func Info(format string, v ...interface{}) { Default.Info(format, v...) }
func Warn(format string, v ...interface{}) { Default.Warn(format, v...) }
func Error(format string, v ...interface{}) { Default.Error(format, v...) }

// With returns a structured logger derived from Default.
func With(kv ...interface{}) *zap.SugaredLogger { return Default.With(kv...) }

// Close flushes Default and closes its log file.
func Close() error { return Default.Close() }

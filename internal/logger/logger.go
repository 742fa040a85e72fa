// Package logger is the process-wide zap logger. The terminal belongs to
// the pager, so everything goes to a file.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	base    *zap.Logger
	logFile *os.File
)

// Init opens the log file, truncating the previous run's log, and installs
// the global logger. Debug messages are dropped unless debug is set.
func Init(debug bool) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	install(New(f, level), f)
	Info("logger initialized", "path", path, "debug", debug)
	return nil
}

// New builds a console-encoded logger writing to w. Callers of the package
// helpers are reported as the call site.
func New(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = "ts"
	enc.FunctionKey = zapcore.OmitKey
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2), zap.AddStacktrace(zapcore.ErrorLevel))
}

func install(l *zap.Logger, f *os.File) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
	logFile = f
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	l, f := base, logFile
	base, sugar, logFile = nil, nil, nil
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
	if f != nil {
		_ = f.Close()
	}
}

// Path returns the log file location: $KIT_LOG_FILE, else kit.log in
// $KIT_CONFIG_HOME, $XDG_CONFIG_HOME/kit or ~/.config/kit.
func Path() (string, error) {
	if v := os.Getenv("KIT_LOG_FILE"); v != "" {
		return v, nil
	}
	if v := os.Getenv("KIT_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "kit.log"), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "kit", "kit.log"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kit", "kit.log"), nil
}

// Helpers are no-ops until Init has run, so packages can log from tests.

func Debug(msg string, keysAndValues ...interface{}) { logw(zapcore.DebugLevel, msg, keysAndValues) }

func Info(msg string, keysAndValues ...interface{}) { logw(zapcore.InfoLevel, msg, keysAndValues) }

func Warn(msg string, keysAndValues ...interface{}) { logw(zapcore.WarnLevel, msg, keysAndValues) }

func Error(msg string, keysAndValues ...interface{}) { logw(zapcore.ErrorLevel, msg, keysAndValues) }

func logw(level zapcore.Level, msg string, kv []interface{}) {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		s.Logw(level, msg, kv...)
	}
}

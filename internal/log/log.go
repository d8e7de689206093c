package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yanmxa/finsight/internal/config"
)

var (
	logger      *zap.Logger
	debug       bool
	initialized bool
	mu          sync.Mutex
	turnCount   int // Track model rounds across requests
)

// Init initializes the process logger from the log configuration.
// Console output goes to stderr; when File is set a rotated JSON log is
// written as well.
func Init(cfg config.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	debug = level == zapcore.DebugLevel

	consoleConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "M",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		// Use lumberjack for log rotation
		writeSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // Days
			Compress:   cfg.Compress,
		})
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), writeSyncer, level))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	initialized = true

	logger.Debug("Logging started", zap.String("level", level.String()), zap.String("file", cfg.File))
	return nil
}

// SetLogger replaces the process logger. Tests use it with zaptest or
// observer loggers.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	debug = l.Core().Enabled(zapcore.DebugLevel)
	initialized = true
}

// IsDebug returns whether verbose request logging is enabled
func IsDebug() bool {
	mu.Lock()
	defer mu.Unlock()
	return debug
}

// Logger returns the underlying zap logger
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Sync flushes any buffered log entries
func Sync() error {
	l := Logger()
	return l.Sync()
}

// NextTurn increments and returns the round counter
func NextTurn() int {
	mu.Lock()
	defer mu.Unlock()
	turnCount++
	return turnCount
}

// CurrentTurn returns the current round number
func CurrentTurn() int {
	mu.Lock()
	defer mu.Unlock()
	return turnCount
}

// escapeForLog escapes newlines and tabs for single-line log output
func escapeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// truncate shortens s to n runes for log output
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// LogStreamDone logs stream completion stats
func LogStreamDone(provider string, duration time.Duration, chunks int) {
	Logger().Debug("stream done",
		zap.String("provider", provider),
		zap.Duration("duration", duration.Round(time.Millisecond)),
		zap.Int("chunks", chunks))
}

// LogTool logs tool execution with timing
func LogTool(name, id string, durationMs int64, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	Logger().Info(fmt.Sprintf("[tool] %s id=%s %dms %s", name, id, durationMs, status))
}

// internal/logging/logger.go
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance.
// Before Init is called it falls back to a development console logger,
// so early startup code and tests can log without wiring.
func GetLogger() *zap.Logger {
	loggerOnce.Do(func() {
		if globalLogger == nil {
			l, err := zap.NewDevelopment()
			if err != nil {
				l = zap.NewNop()
			}
			globalLogger = l
		}
	})
	return globalLogger
}

// Init initializes the global logger writing JSON to logDir/server.log
// and human-readable output to stderr. debug toggles the level.
func Init(logDir string, debug bool) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logFile, err := os.OpenFile(
		filepath.Join(logDir, "server.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0644,
	)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
	)

	logger := zap.New(core, zap.AddCaller())

	globalLogger = logger
	loggerOnce.Do(func() {}) // mark initialized so GetLogger keeps this instance
	return nil
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

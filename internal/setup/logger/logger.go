// Package logger builds the application's zap loggers. The main logger
// and the database logger write to separate files so chatty query logs
// never bury application events.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robalyx/guildxp/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the main and database loggers. Both log to the console;
// when a log directory is configured they also log to timestamped files,
// keeping at most MaxLogsToKeep runs.
func New(debug *config.Debug) (*zap.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(debug.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level)

	if debug.LogDir == "" {
		logger := zap.New(consoleCore)
		return logger, logger.Named("database"), nil
	}

	runDir := filepath.Join(debug.LogDir, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	pruneOldRuns(debug.LogDir, debug.MaxLogsToKeep)

	mainCore, err := fileCore(filepath.Join(runDir, "main.log"), level)
	if err != nil {
		return nil, nil, err
	}

	dbCore, err := fileCore(filepath.Join(runDir, "database.log"), level)
	if err != nil {
		return nil, nil, err
	}

	mainLogger := zap.New(zapcore.NewTee(consoleCore, mainCore))
	dbLogger := zap.New(dbCore).Named("database")

	return mainLogger, dbLogger, nil
}

func fileCore(path string, level zapcore.Level) (zapcore.Core, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return zapcore.NewCore(encoder, zapcore.Lock(f), level), nil
}

// pruneOldRuns removes the oldest run directories beyond the configured
// retention count. Failures are ignored; stale logs are not worth
// failing startup over.
func pruneOldRuns(logDir string, keep int) {
	if keep <= 0 {
		return
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	var runs []string

	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, entry.Name())
		}
	}

	if len(runs) <= keep {
		return
	}

	sort.Strings(runs)

	for _, name := range runs[:len(runs)-keep] {
		os.RemoveAll(filepath.Join(logDir, name))
	}
}

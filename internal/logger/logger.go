package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"potholeserver/internal/config"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to rotated files and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		log:    logrus.New(),
		logDir: cfg.LogDirectory,
	}
	l.log.SetOutput(os.Stdout)
	l.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.log.SetLevel(ParseLevel(cfg.LogLevel))
	l.setupHooks()

	return l, nil
}

// NewDiscard returns a Logger that writes nowhere. Used by tests.
func NewDiscard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{log: log}
}

// setupHooks routes each level to its own rotating file.
func (l *Logger) setupHooks() {
	infoWriter := l.rotating(InfoFile)
	warningWriter := l.rotating(WarningFile)
	errorWriter := l.rotating(ErrorFile)

	fileFmt := &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	l.log.AddHook(lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: infoWriter,
		logrus.InfoLevel:  infoWriter,
		logrus.WarnLevel:  warningWriter,
		logrus.ErrorLevel: errorWriter,
		logrus.FatalLevel: errorWriter,
		logrus.PanicLevel: errorWriter,
	}, fileFmt))
}

func (l *Logger) rotating(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, name),
		MaxSize:    50,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch level {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// Dir returns the directory level files are written to.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil && !os.IsNotExist(err) {
		l.Error("Error truncating log file %s: %v", fileName, err)
		return err
	}

	l.Info("File content has been cleared: %s", fileName)
	return nil
}

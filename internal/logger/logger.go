package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"yolodetect/internal/config"
)

// LogFileName is the file inside the log directory that receives every entry.
const LogFileName = "server.log"

// Logger provides leveled logging (info/warning/error) to a file and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
	file   *os.File
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: config.LogDirectory}

	file, err := l.openLogFile(filepath.Join(l.logDir, LogFileName))
	if err != nil {
		return nil, err
	}
	l.file = file
	l.log = newLogrus(io.MultiWriter(os.Stdout, file))

	return l, nil
}

// New returns a Logger that writes only to w. Used by tools and tests.
func New(w io.Writer) *Logger {
	return &Logger{log: newLogrus(w)}
}

func newLogrus(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	return log
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Errorf(format, v...)
}

// WithFields starts a structured entry, e.g. for per-request logs.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// LogFile returns the path of the log file, empty for writer-only loggers.
func (l *Logger) LogFile() string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, LogFileName)
}

// CleanLogs truncates the log file.
func (l *Logger) CleanLogs() error {
	if l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}
	return nil
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

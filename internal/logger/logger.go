package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Level represents the severity of a log message
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelPrefixes = map[Level]string{
	DebugLevel: "[DEBUG] ",
	InfoLevel:  "[INFO]  ",
	WarnLevel:  "[WARN]  ",
	ErrorLevel: "[ERROR] ",
	FatalLevel: "[FATAL] ",
}

// DefaultLogger implements the Logger interface on top of the standard
// library log package. Output always goes to stderr; when a log
// directory is configured it is teed into a per-run file as well.
type DefaultLogger struct {
	logger *log.Logger
	file   *os.File
	level  Level
}

// New creates a logger writing to stderr only.
func New() *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile),
		level:  InfoLevel,
	}
}

// NewWithFile creates a logger that writes to stderr and to a
// timestamped file under logDir.
func NewWithFile(appName, logDir string) (*DefaultLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15_04")
	logPath := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", appName, timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	multiWriter := io.MultiWriter(file, os.Stderr)

	return &DefaultLogger{
		logger: log.New(multiWriter, "", log.Ldate|log.Ltime|log.Lshortfile),
		file:   file,
		level:  InfoLevel,
	}, nil
}

func (l *DefaultLogger) log(level Level, format string, v ...interface{}) {
	if level >= l.level {
		msg := fmt.Sprintf(format, v...)
		l.logger.Output(3, levelPrefixes[level]+msg)
	}
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.level = level
}

func (l *DefaultLogger) Debug(format string, v ...interface{}) {
	l.log(DebugLevel, format, v...)
}

func (l *DefaultLogger) Info(format string, v ...interface{}) {
	l.log(InfoLevel, format, v...)
}

func (l *DefaultLogger) Warn(format string, v ...interface{}) {
	l.log(WarnLevel, format, v...)
}

func (l *DefaultLogger) Error(format string, v ...interface{}) {
	l.log(ErrorLevel, format, v...)
}

func (l *DefaultLogger) Fatal(format string, v ...interface{}) {
	l.log(FatalLevel, format, v...)
	os.Exit(1)
}

// Close closes the log file if one is open.
func (l *DefaultLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Nop is a Logger that discards everything. Useful as a default when
// callers pass nil.
type Nop struct{}

func (Nop) Debug(format string, v ...interface{}) {}
func (Nop) Info(format string, v ...interface{})  {}
func (Nop) Warn(format string, v ...interface{})  {}
func (Nop) Error(format string, v ...interface{}) {}
func (Nop) Fatal(format string, v ...interface{}) {}

// Package logger provides a simple logging utility for the persistence layer.
// It wraps the standard `log` package and filters and outputs messages based on log levels.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is the log level used for detailed debugging information.
	// Smaller numbers indicate more detailed log levels.
	LevelDebug LogLevel = iota
	// LevelInfo is the log level used for general informational messages.
	LevelInfo
	// LevelWarn is the log level used for potential issues or warning messages.
	LevelWarn
	// LevelError is the log level used for error messages.
	LevelError
	// LevelFatal is the log level used for fatal error messages that cause application termination.
	LevelFatal
	// LevelSilent disables all output except Fatalf.
	LevelSilent
)

var (
	mu       sync.RWMutex
	logLevel = LevelInfo
	out      = log.New(os.Stderr, "", log.LstdFlags)
)

// SetLogLevel sets the global log level.
// Only log messages at or above the specified level will be output.
// Valid string values are "DEBUG", "TRACE", "INFO", "WARN", "ERROR", "FATAL", "SILENT" (case-insensitive).
// If an invalid value is specified, the default "INFO" level is used, and a warning is printed to standard output.
func SetLogLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToUpper(level) {
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	case "SILENT":
		logLevel = LevelSilent
	case "DEBUG", "TRACE":
		logLevel = LevelDebug
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// SetLevel sets the global log level directly.
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// Level returns the current log level.
func Level() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// SetOutput redirects log output to w and returns the previous writer's logger so callers
// (typically tests) can restore it.
func SetOutput(w io.Writer) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = log.New(w, "", 0)
	return prev
}

// RestoreOutput reinstates a logger returned by SetOutput.
func RestoreOutput(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	out = l
}

func emit(level LogLevel, prefix, format string, v ...interface{}) {
	mu.RLock()
	enabled := logLevel <= level
	l := out
	mu.RUnlock()
	if enabled {
		l.Printf(prefix+format, v...)
	}
}

// Debugf formats and outputs a DEBUG level log message.
// It is only output if the current log level is DEBUG.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Debugf(format string, v ...interface{}) {
	emit(LevelDebug, "[DEBUG] ", format, v...)
}

// Infof formats and outputs an INFO level log message.
// It is only output if the current log level is INFO or lower.
//
// format: A format string in the same format as `fmt.Printf`.
// v: Arguments to pass to the format string.
func Infof(format string, v ...interface{}) {
	emit(LevelInfo, "[INFO] ", format, v...)
}

// Warnf formats and outputs a WARN level log message.
// It is only output if the current log level is WARN or lower.
func Warnf(format string, v ...interface{}) {
	emit(LevelWarn, "[WARN] ", format, v...)
}

// Errorf formats and outputs an ERROR level log message.
// It is only output if the current log level is ERROR or lower.
func Errorf(format string, v ...interface{}) {
	emit(LevelError, "[ERROR] ", format, v...)
}

// Fatalf formats and outputs a FATAL level log message,
// then terminates the program by calling os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	l := out
	mu.RUnlock()
	l.Fatalf("[FATAL] "+format, v...)
}

package internal

import (
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel orders verbosity from ERROR (least) to TRACE (most).
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var levelTags = [...]string{"ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l LogLevel) String() string {
	if l < LogLevelError || int(l) >= len(levelTags) {
		return "OFF"
	}
	return levelTags[l]
}

// Logger is a leveled printf logger. It satisfies ports.Logger.
type Logger struct {
	level LogLevel
	out   *log.Logger
}

// NewLogger writes to stderr with the standard log flags.
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level, out: log.Default()}
}

// NewLoggerTo writes bare lines to w.
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0)}
}

// NewDefaultLogger reads its level from LOG_LEVEL.
func NewDefaultLogger() *Logger {
	level, _ := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	return NewLogger(level)
}

// NewNopLogger drops every message, errors included.
func NewNopLogger() *Logger {
	return &Logger{level: LogLevelError - 1, out: log.New(io.Discard, "", 0)}
}

// ParseLogLevel maps ERROR|WARN|INFO|DEBUG|TRACE (case-insensitive) to a level.
// Unknown or empty values fall back to INFO and report false.
func ParseLogLevel(s string) (LogLevel, bool) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	for i, t := range levelTags {
		if t == tag {
			return LogLevel(i), true
		}
	}
	return LogLevelInfo, false
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l.level >= level {
		l.out.Printf("["+levelTags[level]+"] "+format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) { l.logf(LogLevelError, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(LogLevelWarn, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(LogLevelInfo, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(LogLevelDebug, format, args...) }
func (l *Logger) Trace(format string, args ...interface{}) { l.logf(LogLevelTrace, format, args...) }

func (l *Logger) Level() LogLevel { return l.level }

// DefaultLogger is used by components constructed without a logger.
var DefaultLogger = NewDefaultLogger()

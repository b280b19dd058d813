package console

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

var logger = newLogger(os.Stderr, false)

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}

// InitLogger replaces the package logger. Verbose enables debug output.
func InitLogger(w io.Writer, verbose bool) {
	logger = newLogger(w, verbose)
}

// Logger exposes the structured logger for key/value logging.
func Logger() *log.Logger {
	return logger
}

var tagPattern = regexp.MustCompile(`^\[([^\]]+)\]\s*`)

// splitTag moves a leading "[TAG]" marker into a prefix key so the message stays clean.
func splitTag(msg string) (string, string) {
	m := tagPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", msg
	}
	return m[1], strings.TrimPrefix(msg, m[0])
}

// Logv logs at debug level when v is set.
func Logv(v bool, f string, a ...any) {
	if !v {
		return
	}
	tag, msg := splitTag(fmt.Sprintf(f, a...))
	if tag != "" {
		logger.Debug(msg, "src", tag)
		return
	}
	logger.Debug(msg)
}

// LogErr logs an error-level line. A leading "[!]" marker is dropped.
func LogErr(f string, a ...any) {
	_, msg := splitTag(fmt.Sprintf(f, a...))
	logger.Error(msg)
}

// Warn logs a warning with structured context.
func Warn(msg string, keyvals ...any) {
	logger.Warn(msg, keyvals...)
}

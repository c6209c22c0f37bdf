// Package logger provides leveled logging for the ragchat CLI.
// Warnings and errors are always printed to stderr; debug and info messages
// only when verbose mode is enabled via the --verbose flag. Anything that
// looks like an API key is masked before it is written.
package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Level is a log severity.
type Level int

// Log levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level tag used in output.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelWarn, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu     sync.RWMutex
	level            = LevelWarn
	output io.Writer = os.Stderr
)

// secretPattern matches OpenAI, Anthropic and Pinecone style keys and bearer tokens.
var secretPattern = regexp.MustCompile(`(sk-(?:ant-)?[A-Za-z0-9_\-]{8,}|pcsk_[A-Za-z0-9_]{8,}|Bearer\s+[A-Za-z0-9._\-]{8,})`)

// SetLevel sets the minimum level that is printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLevel returns the minimum level that is printed.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetVerbose enables debug output, or restores the default warn level.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
		return
	}
	SetLevel(LevelWarn)
}

// IsVerbose returns true if debug output is enabled.
func IsVerbose() bool {
	return GetLevel() <= LevelDebug
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Redact masks API keys and bearer tokens in s.
func Redact(s string) string {
	return secretPattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m, "Bearer") {
			return "Bearer ****"
		}
		if len(m) <= 8 {
			return "****"
		}
		return m[:4] + "****"
	})
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", l, Redact(fmt.Sprintf(format, args...)))
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if level <= LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

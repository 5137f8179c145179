package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/systmms/snowcred/internal/secure"
)

// Logger provides leveled, line-oriented logging with redaction support
type Logger struct {
	debug   bool
	noColor bool

	mu      sync.Mutex
	out     io.Writer
	secrets []*secure.Secret
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     os.Stderr,
	}
}

// WithWriter redirects output, mainly for tests and for hosts that collect the
// plugin log themselves.
func (l *Logger) WithWriter(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	return l
}

// Protect registers a secret whose value must never appear in output. Every line
// is scrubbed against the registered secrets before it is written.
func (l *Logger) Protect(s *secure.Secret) {
	if s == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.secrets = append(l.secrets, s)
}

// IsDebug reports whether debug output is enabled
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("\033[32m✓\033[0m ", "✓ ", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("\033[33m⚠\033[0m ", "⚠ ", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("\033[31m✗\033[0m ", "✗ ", format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("\033[36m[DEBUG]\033[0m ", "[DEBUG] ", format, args...)
}

// MethodStart traces entry into a protocol step at debug level.
func (l *Logger) MethodStart(name string) {
	l.Debug("%s: start", name)
}

// MethodEnd traces exit from a protocol step at debug level.
func (l *Logger) MethodEnd(name string) {
	l.Debug("%s: end", name)
}

func (l *Logger) write(colorPrefix, plainPrefix, format string, args ...interface{}) {
	msg := l.scrub(fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.noColor {
		fmt.Fprintf(l.out, "%s%s\n", plainPrefix, msg)
		return
	}
	fmt.Fprintf(l.out, "%s%s\n", colorPrefix, msg)
}

// scrub replaces any registered secret value found in msg.
func (l *Logger) scrub(msg string) string {
	l.mu.Lock()
	secrets := append([]*secure.Secret(nil), l.secrets...)
	l.mu.Unlock()

	if len(secrets) == 0 {
		return msg
	}
	return secure.Scrub(msg, secrets...)
}

// Package logger implements a namespaced debug logger in the style of the
// npm "debug" package, gated by the DEBUG environment variable, plus a
// coarse severity filter gated by GARDEN_LOG_LEVEL.
package logger

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level is a coarse severity used to filter log calls independently of the
// namespace matcher. Every Logger call site picks a Level; that Level must
// be at or above the effective GARDEN_LOG_LEVEL for the line to print.
type Level int

const (
	LevelSilly Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silly":
		return LevelSilly
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "info", "":
		return LevelInfo
	default:
		return LevelInfo
	}
}

// Logger represents a debug logger for a specific namespace.
type Logger struct {
	namespace string
	enabled   bool
	lastLog   time.Time
	mu        sync.Mutex
	color     string
}

var (
	// DEBUG environment variable value, read once at initialization
	debugEnv = os.Getenv("DEBUG")

	// GARDEN_LOG_LEVEL sets the minimum severity that is ever printed,
	// independent of which DEBUG namespaces are enabled.
	gardenLevel = parseLevel(os.Getenv("GARDEN_LOG_LEVEL"))

	// DEBUG_COLORS environment variable to control color output
	debugColors = os.Getenv("DEBUG_COLORS") != "0"

	// Check if stderr is a terminal (for color support)
	isTTY = isatty.IsTerminal(os.Stderr.Fd())

	// Color palette - chosen to be readable on both light and dark backgrounds
	colorPalette = []string{
		"\033[38;5;33m",  // Blue
		"\033[38;5;35m",  // Green
		"\033[38;5;166m", // Orange
		"\033[38;5;125m", // Purple
		"\033[38;5;37m",  // Cyan
		"\033[38;5;161m", // Magenta
		"\033[38;5;136m", // Yellow
		"\033[38;5;124m", // Red
		"\033[38;5;28m",  // Dark green
		"\033[38;5;63m",  // Light blue
		"\033[38;5;95m",  // Brown
		"\033[38;5;21m",  // Dark blue
	}

	colorReset = "\033[0m"
)

// New creates a new Logger for the given namespace.
//
// DEBUG syntax follows https://www.npmjs.com/package/debug patterns:
//
//	DEBUG=*              - enables all loggers
//	DEBUG=namespace:*    - enables all loggers in a namespace
//	DEBUG=ns1,ns2        - enables specific namespaces
//	DEBUG=ns:*,-ns:skip  - enables namespace but excludes specific patterns
//
// GARDEN_LOG_LEVEL (error|warn|info|debug|silly, default info) additionally
// gates the leveled helpers (Errorf/Warnf/Infof/Debugf/Sillyf); Print/Printf
// remain unconditionally at debug-or-below severity for parity with the
// namespace-only style used throughout the solver and graph packages.
func New(namespace string) *Logger {
	enabled := computeEnabled(namespace)
	color := selectColor(namespace)
	return &Logger{
		namespace: namespace,
		enabled:   enabled,
		lastLog:   time.Now(),
		color:     color,
	}
}

func selectColor(namespace string) string {
	if !debugColors || !isTTY {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(namespace))
	hash := h.Sum32()
	return colorPalette[hash%uint32(len(colorPalette))]
}

// Enabled returns whether this logger's namespace matches DEBUG.
func (l *Logger) Enabled() bool {
	return l.enabled
}

func (l *Logger) write(message string) {
	l.mu.Lock()
	now := time.Now()
	diff := now.Sub(l.lastLog)
	l.lastLog = now
	l.mu.Unlock()

	if l.color != "" {
		fmt.Fprintf(os.Stderr, "%s%s%s %s +%s\n", l.color, l.namespace, colorReset, message, formatDuration(diff))
	} else {
		fmt.Fprintf(os.Stderr, "%s %s +%s\n", l.namespace, message, formatDuration(diff))
	}
}

// Printf prints a formatted message if the logger's namespace is enabled.
func (l *Logger) Printf(format string, args ...interface{}) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Print prints a message if the logger's namespace is enabled.
func (l *Logger) Print(args ...interface{}) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprint(args...))
}

// LazyPrintf only evaluates fn() when the logger is enabled, so callers can
// defer expensive formatting work (e.g. serializing a graph) to the cold path.
func (l *Logger) LazyPrintf(fn func() string) {
	if !l.enabled {
		return
	}
	l.write(fn())
}

func (l *Logger) leveled(level Level, format string, args ...interface{}) {
	if !l.enabled || level < gardenLevel {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.leveled(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.leveled(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.leveled(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.leveled(LevelDebug, format, args...) }
func (l *Logger) Sillyf(format string, args ...interface{}) { l.leveled(LevelSilly, format, args...) }

func formatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

func computeEnabled(namespace string) bool {
	patterns := strings.Split(debugEnv, ",")
	enabled := false

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)

		if strings.HasPrefix(pattern, "-") {
			excludePattern := strings.TrimPrefix(pattern, "-")
			if matchPattern(namespace, excludePattern) {
				return false
			}
			continue
		}

		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}

	return enabled
}

func matchPattern(namespace, pattern string) bool {
	if pattern == "*" || pattern == namespace {
		return true
	}

	if strings.Contains(pattern, "*") {
		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			return strings.HasPrefix(namespace, prefix)
		}
		if strings.HasPrefix(pattern, "*") {
			suffix := strings.TrimPrefix(pattern, "*")
			return strings.HasSuffix(namespace, suffix)
		}
		parts := strings.SplitN(pattern, "*", 2)
		if len(parts) == 2 {
			return strings.HasPrefix(namespace, parts[0]) && strings.HasSuffix(namespace, parts[1])
		}
	}

	return false
}

// Package log is the host-side structured logger for the simulator and the
// command line tools. It wraps log/slog with a component attribute and a
// shared level; the usartx driver itself never logs.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentSim       Component = "sim"
	ComponentCLI       Component = "cli"
	ComponentBridge    Component = "bridge"
	ComponentIntegrity Component = "integrity"
	ComponentFirmware  Component = "firmware"
)

// Format selects the handler used by the default logger.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	// DefaultLogger receives every component message.
	DefaultLogger *slog.Logger

	level = new(slog.LevelVar)
	mu    sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) { level.Set(l) }

// Level returns the current minimum level.
func Level() slog.Level { return level.Level() }

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log: invalid level %q", s)
	}
	return l, nil
}

// ParseFormat accepts text or json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("log: invalid format %q", s)
}

// SetOutput rebuilds the default logger writing to w in the given format.
func SetOutput(w io.Writer, f Format) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if f == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	SetLogger(slog.New(h))
}

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = l
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return DefaultLogger
}

// For returns the default logger tagged with c.
func For(c Component) *slog.Logger {
	return logger().With("component", string(c))
}

func Debug(c Component, msg string, args ...any) {
	logger().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

func Info(c Component, msg string, args ...any) {
	logger().Info(msg, append([]any{"component", string(c)}, args...)...)
}

func Warn(c Component, msg string, args ...any) {
	logger().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

func Error(c Component, msg string, args ...any) {
	logger().Error(msg, append([]any{"component", string(c)}, args...)...)
}

// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger initialisation.
type Options struct {
	// Level is a zerolog level name; empty falls back to LOG_LEVEL, then info.
	Level   string
	Verbose bool
	// Output defaults to stderr so logs never mix with command output.
	Output io.Writer
	// Console forces the human-readable writer. When nil it is chosen for
	// terminals only.
	Console *bool
}

var (
	mu      sync.RWMutex
	base    = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	initted bool
)

// Init replaces the base logger. It is safe to call more than once.
func Init(opts Options) zerolog.Logger {
	out := resolveOutput(opts)

	console := isTerminal(out)
	if opts.Console != nil {
		console = *opts.Console
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(resolveLevel(opts))

	mu.Lock()
	base = l
	initted = true
	mu.Unlock()

	return l
}

// Get returns the base logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// For returns a child logger tagged with a component name.
func For(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

// Initialized reports whether Init has been called.
func Initialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initted
}

func resolveOutput(opts Options) io.Writer {
	if opts.Output == nil {
		return os.Stderr
	}
	return opts.Output
}

func resolveLevel(opts Options) zerolog.Level {
	if opts.Verbose {
		return zerolog.DebugLevel
	}
	name := strings.TrimSpace(opts.Level)
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Init must be called once before
// use; every worker process calls it at the start of its lifecycle with
// that worker's configured level and format.
var Logger zerolog.Logger

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Because each worker is a distinct
// OS process rather than a goroutine inside one long-lived manager, every
// event emitted through Logger is stamped with this process's pid via a
// hook, so interleaved stdout from several workers can still be told
// apart without relying on per-call WithWorker fields being present.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var base zerolog.Logger
	if cfg.JSONOutput {
		base = zerolog.New(output).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	Logger = base.Hook(pidHook{pid: os.Getpid()})
}

// pidHook stamps every log event with the emitting process's pid.
type pidHook struct {
	pid int
}

func (h pidHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	e.Int("pid", h.pid)
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorker creates a child logger with worker_id field, for log lines
// tied to one worker process's lifecycle.
func WithWorker(workerID int) zerolog.Logger {
	return Logger.With().Int("worker_id", workerID).Logger()
}

// WithPath creates a child logger with actor_path field, for log lines
// tied to a specific actor's spawn or mailbox activity.
func WithPath(path string) zerolog.Logger {
	return Logger.With().Str("actor_path", path).Logger()
}

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	WithCaller bool
	Level      string
	// Format is text, json or auto. Auto picks text when stderr is a terminal.
	Format string
	File   string
}

// InitLogger configures the global zerolog logger.
func InitLogger(config *Config) error {
	var logWriter io.Writer
	switch resolveFormat(config.Format, os.Stderr) {
	case "text":
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		logWriter = os.Stderr
	}

	if config.File != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.File,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	logger := zerolog.New(logWriter).With().Timestamp()
	if config.WithCaller {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()

	level, err := ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// ParseLevel accepts the usual level names. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	}
	return zerolog.InfoLevel, errors.Errorf("unknown log level %q", level)
}

func resolveFormat(format string, out *os.File) string {
	switch strings.ToLower(format) {
	case "text", "json":
		return strings.ToLower(format)
	}
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return "text"
	}
	return "json"
}

package log

import (
	stdlog "log"
)

// Config declares a logger in terms of level, format and destination.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	// FilePath, when set, routes entries to the named file instead of stdout.
	FilePath string
}

// ApplyConfig builds a Logger from a declarative Config. Unknown level or
// format names fall back to info/text rather than failing, so a logger is
// always available; file-open errors are returned.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = InfoLevel
	}

	var formatter Formatter
	switch cfg.Format {
	case "json":
		formatter = &JSONFormatter{}
	default:
		formatter = &TextFormatter{}
	}

	var output Output
	if cfg.FilePath != "" {
		fo, err := NewFileOutput(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		output = fo
	} else {
		output = NewConsoleOutput()
	}

	return NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(output),
	), nil
}

// stdWriter adapts a Logger to io.Writer for the standard library log package.
type stdWriter struct{ logger Logger }

func (w stdWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.logger.Info(msg, Component("stdlog"))
	return len(p), nil
}

// RedirectStdLog routes standard library log output (used by Pebble and
// other dependencies) through the given logger.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{logger: logger})
}

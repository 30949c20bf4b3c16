package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is a log record encoding.
type Format string

const (
	// FormatJSON writes one slog JSON object per record. It is the serve
	// default so the API and proxy logs can be shipped as is.
	FormatJSON Format = "json"

	// FormatPretty writes colorized charmbracelet/log lines for terminals.
	FormatPretty Format = "pretty"

	// FormatText writes slog key=value lines.
	FormatText Format = "text"
)

// Formats lists the accepted --log-format values.
func Formats() []Format {
	return []Format{FormatJSON, FormatPretty, FormatText}
}

// ParseFormat resolves a --log-format value. An empty value selects def.
func ParseFormat(s string, def Format) (Format, error) {
	if s == "" {
		return def, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown log format %q (want json, pretty or text)", s)
}

// Option configures a Logger created with New.
type Option func(*config)

// ForService selects JSON records on stdout, used by the serve commands.
func ForService() Option {
	return func(c *config) {
		c.format = FormatJSON
		c.writers = []io.Writer{os.Stdout}
	}
}

// ForCLI selects pretty records on stderr so logs never interleave with the
// streamed reasoning and plans a client command prints on stdout.
func ForCLI() Option {
	return func(c *config) {
		c.format = FormatPretty
		c.writers = []io.Writer{os.Stderr}
	}
}

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithFormat overrides the record encoding chosen by a profile.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter overrides the output. Several writers are combined with
// io.MultiWriter.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithComponent tags every record with component=name, for example "api",
// "proxy" or "careplan".
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
